package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"gorm.io/gorm"

	signDB "sign-scheduler-service/internal/sign-manager/db"
	"sign-scheduler-service/internal/sign-manager/services"
)

// scheduleDatetimeLayout is the wire format for one-shot timestamps,
// interpreted in local time.
const scheduleDatetimeLayout = "2006-01-02 15:04:05"

type ScheduleHandler struct {
	DB        *gorm.DB
	Scheduler *services.SchedulerService
}

func NewScheduleHandler(db *gorm.DB, scheduler *services.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{DB: db, Scheduler: scheduler}
}

type CreateScheduleRequest struct {
	Name              string `json:"name"`
	ScheduledDatetime string `json:"scheduled_datetime"`
	IsRecurring       bool   `json:"is_recurring"`
	Weekdays          []int  `json:"weekdays"`       // 0=Monday..6=Sunday
	RecurringTime     string `json:"recurring_time"` // "HH:MM"
	TemplateID        *uint  `json:"template_id"`
	CustomText        string `json:"custom_text"`
	CustomColor       string `json:"custom_color"` // "#rrggbb", defaults to yellow
}

// ScheduleResponse decorates a schedule row with readable weekday names for
// listing.
type ScheduleResponse struct {
	signDB.ScheduleItem
	WeekdayNames string `json:"weekday_names,omitempty"`
}

func (h *ScheduleHandler) CreateSchedule(ctx context.Context, c *app.RequestContext) {
	var req CreateScheduleRequest
	if err := c.Bind(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Schedule name cannot be empty"})
		return
	}

	item := signDB.ScheduleItem{
		Name:        req.Name,
		IsRecurring: req.IsRecurring,
	}

	if req.IsRecurring {
		if len(req.Weekdays) == 0 || req.RecurringTime == "" {
			c.JSON(http.StatusBadRequest, utils.H{"error": "Recurring schedules need weekdays and a time"})
			return
		}
		parts := make([]string, len(req.Weekdays))
		for i, day := range req.Weekdays {
			if day < 0 || day > 6 {
				c.JSON(http.StatusBadRequest, utils.H{"error": fmt.Sprintf("Weekday %d out of range 0-6", day)})
				return
			}
			parts[i] = strconv.Itoa(day)
		}
		item.RecurringWeekdays = strings.Join(parts, ",")
		item.RecurringTime = req.RecurringTime
	} else {
		if req.ScheduledDatetime == "" {
			c.JSON(http.StatusBadRequest, utils.H{"error": "One-time schedules need a date and time"})
			return
		}
		when, err := time.ParseInLocation(scheduleDatetimeLayout, req.ScheduledDatetime, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid scheduled_datetime, expected YYYY-MM-DD HH:MM:SS"})
			return
		}
		item.ScheduledDatetime = &when
	}

	templateID, err := h.resolveTemplateID(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}
	item.TemplateID = &templateID

	if result := h.DB.Create(&item); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to create schedule: " + result.Error.Error()})
		return
	}

	// Register the timer. Past one-shots stay unregistered; the sweep will
	// collect them at the next restart.
	if item.IsRecurring || (item.ScheduledDatetime != nil && item.ScheduledDatetime.After(time.Now())) {
		trigger, err := services.ResolveTrigger(&item)
		if err == nil {
			err = h.Scheduler.Register(item.ID, item.Name, trigger)
		}
		if err != nil {
			log.Printf("Schedule ID %d created but not registered: %v", item.ID, err)
			c.JSON(http.StatusCreated, utils.H{"schedule": item, "schedule_warning": err.Error()})
			return
		}
	}

	c.JSON(http.StatusCreated, item)
}

// resolveTemplateID returns the referenced template's id, creating a
// synthetic single-item static template from the ad-hoc text/color when the
// request names none.
func (h *ScheduleHandler) resolveTemplateID(req *CreateScheduleRequest) (uint, error) {
	if req.TemplateID != nil {
		var tmpl signDB.Template
		if err := h.DB.First(&tmpl, *req.TemplateID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return 0, fmt.Errorf("template %d not found", *req.TemplateID)
			}
			return 0, fmt.Errorf("error verifying template: %v", err)
		}
		return tmpl.ID, nil
	}

	if req.CustomText == "" {
		return 0, fmt.Errorf("either template_id or custom_text is required")
	}
	colorHex := req.CustomColor
	if colorHex == "" {
		colorHex = "#ffff00"
	}
	color, err := signDB.ParseHexColor(colorHex)
	if err != nil {
		return 0, err
	}

	payload := signDB.TemplatePayload{
		Name: "Custom_" + req.Name,
		Items: []signDB.PayloadItem{{
			Type:    signDB.ItemStatic,
			Content: req.CustomText,
			X:       0,
			Y:       10,
			Color:   color,
		}},
	}
	raw, err := signDB.EncodePayload(&payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode custom template: %v", err)
	}
	tmpl := signDB.Template{Name: payload.Name, Payload: raw}
	if err := h.DB.Create(&tmpl).Error; err != nil {
		return 0, fmt.Errorf("failed to create custom template: %v", err)
	}
	return tmpl.ID, nil
}

func (h *ScheduleHandler) GetSchedules(ctx context.Context, c *app.RequestContext) {
	var items []signDB.ScheduleItem
	if result := h.DB.Order("scheduled_datetime").Find(&items); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch schedules: " + result.Error.Error()})
		return
	}
	responses := make([]ScheduleResponse, len(items))
	for i, item := range items {
		responses[i] = ScheduleResponse{ScheduleItem: item}
		if item.RecurringWeekdays != "" {
			responses[i].WeekdayNames = signDB.WeekdayNames(item.RecurringWeekdays)
		}
	}
	c.JSON(http.StatusOK, responses)
}

// DeleteSchedule cancels the schedule's timer, then removes the row. Cancel
// first: a timer must never fire for a row that is about to disappear.
func (h *ScheduleHandler) DeleteSchedule(ctx context.Context, c *app.RequestContext) {
	id, err := parseIDParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid ID format"})
		return
	}

	h.Scheduler.Cancel(id)

	result := h.DB.Delete(&signDB.ScheduleItem{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to delete schedule: " + result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, utils.H{"error": "Schedule not found"})
		return
	}
	log.Printf("Schedule ID %d deleted and its timer cancelled.", id)
	c.JSON(http.StatusOK, utils.H{"message": "Schedule deleted successfully"})
}
