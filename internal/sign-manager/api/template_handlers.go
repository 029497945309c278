package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"gorm.io/gorm"

	signDB "sign-scheduler-service/internal/sign-manager/db"
	"sign-scheduler-service/pkg/validation"
)

type TemplateHandler struct {
	DB *gorm.DB
}

func NewTemplateHandler(db *gorm.DB) *TemplateHandler {
	return &TemplateHandler{DB: db}
}

type TemplateItemRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Color   string `json:"color"` // "#rrggbb"
	Speed   int    `json:"speed"`
}

type CreateTemplateRequest struct {
	Name  string                `json:"name"`
	Items []TemplateItemRequest `json:"items"`
}

// buildPayloadItem validates one request item and converts it to the
// canonical payload form. Nothing is persisted until every item passes.
func buildPayloadItem(item TemplateItemRequest) (signDB.PayloadItem, error) {
	var out signDB.PayloadItem
	if item.Type != signDB.ItemStatic && item.Type != signDB.ItemScroll {
		return out, fmt.Errorf("item type must be %q or %q, got %q", signDB.ItemStatic, signDB.ItemScroll, item.Type)
	}
	if item.Content == "" {
		return out, fmt.Errorf("item content cannot be empty")
	}
	if item.X < 0 || item.Y < 0 {
		return out, fmt.Errorf("position values must be non-negative")
	}
	color, err := signDB.ParseHexColor(item.Color)
	if err != nil {
		return out, err
	}
	out = signDB.PayloadItem{
		Type:    item.Type,
		Content: item.Content,
		X:       item.X,
		Y:       item.Y,
		Color:   color,
	}
	if item.Type == signDB.ItemScroll {
		out.Speed = item.Speed
		if out.Speed <= 0 {
			out.Speed = 1
		}
	}
	return out, nil
}

func (h *TemplateHandler) CreateTemplate(ctx context.Context, c *app.RequestContext) {
	var req CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Template name cannot be empty"})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Template must have at least one item"})
		return
	}

	payload := signDB.TemplatePayload{Name: req.Name}
	for i, item := range req.Items {
		payloadItem, err := buildPayloadItem(item)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.H{"error": fmt.Sprintf("Invalid item %d: %v", i, err)})
			return
		}
		payload.Items = append(payload.Items, payloadItem)
	}

	raw, err := signDB.EncodePayload(&payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to encode template payload: " + err.Error()})
		return
	}
	if err := validation.ValidateJSONWithSchema(signDB.PayloadSchema, raw); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Template payload failed validation: " + err.Error()})
		return
	}

	tmpl := signDB.Template{Name: req.Name, Payload: raw}
	if result := h.DB.Create(&tmpl); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to create template: " + result.Error.Error()})
		return
	}
	log.Printf("Template ID %d (%s) created with %d item(s).", tmpl.ID, tmpl.Name, len(payload.Items))
	c.JSON(http.StatusCreated, tmpl)
}

func (h *TemplateHandler) GetTemplates(ctx context.Context, c *app.RequestContext) {
	var templates []signDB.Template
	if result := h.DB.Order("name").Find(&templates); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch templates: " + result.Error.Error()})
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *TemplateHandler) GetTemplateByID(ctx context.Context, c *app.RequestContext) {
	id, err := parseIDParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid ID format"})
		return
	}
	var tmpl signDB.Template
	if result := h.DB.First(&tmpl, id); result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Template not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch template: " + result.Error.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate removes a template unless a schedule row still references
// it. Cascade would silently drop schedules whose timers are live, so a
// referenced template is rejected instead.
func (h *TemplateHandler) DeleteTemplate(ctx context.Context, c *app.RequestContext) {
	id, err := parseIDParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid ID format"})
		return
	}

	var tmpl signDB.Template
	if findResult := h.DB.First(&tmpl, id); findResult.Error != nil {
		if findResult.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Template not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Error finding template: " + findResult.Error.Error()})
		}
		return
	}

	var refs int64
	if err := h.DB.Model(&signDB.ScheduleItem{}).Where("template_id = ?", id).Count(&refs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Error checking template references: " + err.Error()})
		return
	}
	if refs > 0 {
		c.JSON(http.StatusConflict, utils.H{"error": fmt.Sprintf("Template is referenced by %d schedule(s)", refs)})
		return
	}

	if result := h.DB.Delete(&signDB.Template{}, id); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to delete template: " + result.Error.Error()})
		return
	}
	log.Printf("Template ID %d deleted.", id)
	c.JSON(http.StatusOK, utils.H{"message": "Template deleted successfully"})
}

func parseIDParam(c *app.RequestContext) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}
