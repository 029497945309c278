package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	signDB "sign-scheduler-service/internal/sign-manager/db"
	"sign-scheduler-service/internal/sign-manager/events"
	"sign-scheduler-service/pkg/signwire"
)

// DeviceSender is the seam to the sign channel. signwire.Client implements
// it; tests substitute a capture.
type DeviceSender interface {
	Send(command string) string
}

// ExecutorService resolves a due schedule into a device command and
// transmits it. The last-run marker is written only after a successful
// transmission, so crash recovery retries a failed send instead of
// skipping it.
type ExecutorService struct {
	DB         *gorm.DB
	Device     DeviceSender
	Producer   *kafka.Writer // nil disables display events
	appContext context.Context
}

func NewExecutorService(ctx context.Context, db *gorm.DB, device DeviceSender, producer *kafka.Writer) *ExecutorService {
	return &ExecutorService{DB: db, Device: device, Producer: producer, appContext: ctx}
}

// ExecuteScheduledItem runs one firing of a schedule. The name is for logs
// only; the row is always reloaded by id. Every failure aborts this
// invocation alone and is logged, never raised: the scheduler must keep
// running when the store or the sign misbehaves.
func (e *ExecutorService) ExecuteScheduledItem(scheduleID uint, name string) {
	log.Printf("Executing schedule ID %d (%s)", scheduleID, name)

	var item signDB.ScheduleItem
	if err := e.DB.First(&item, scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Schedule ID %d no longer exists, skipping execution.", scheduleID)
		} else {
			log.Printf("Error loading schedule ID %d: %v", scheduleID, err)
		}
		return
	}
	if item.TemplateID == nil {
		log.Printf("Schedule ID %d has no template, skipping execution.", scheduleID)
		return
	}

	var tmpl signDB.Template
	if err := e.DB.First(&tmpl, *item.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Template ID %d not found for schedule ID %d.", *item.TemplateID, scheduleID)
		} else {
			log.Printf("Error loading template ID %d: %v", *item.TemplateID, err)
		}
		return
	}

	payload, err := signDB.DecodePayload(tmpl.Payload)
	if err != nil {
		log.Printf("Invalid payload for template ID %d: %v", tmpl.ID, err)
		return
	}

	command := signwire.EncodeSet(wireItems(payload.Items))
	response := e.Device.Send(command)
	log.Printf("Sign response for schedule ID %d: %s", scheduleID, response)
	if signwire.IsErrorResponse(response) {
		// Marker deliberately untouched: recovery retries this job.
		return
	}

	if err := e.recordLastRun(scheduleID); err != nil {
		log.Printf("Error updating last-run marker for schedule ID %d: %v", scheduleID, err)
	}
	e.publishDisplayEvent(scheduleID, item.Name, command, response)
}

// SetText pushes a single static text straight to the sign, bypassing the
// scheduler and the store. Used by the manual control endpoint.
func (e *ExecutorService) SetText(text string, x, y int, color [3]int) string {
	command := signwire.EncodeSet([]signwire.Item{{
		Kind:  signwire.KindStatic,
		Text:  text,
		X:     x,
		Y:     y,
		Color: color,
	}})
	return e.Device.Send(command)
}

// ClearSign wipes the display.
func (e *ExecutorService) ClearSign() string {
	return e.Device.Send(signwire.CommandClear)
}

func (e *ExecutorService) recordLastRun(scheduleID uint) error {
	marker := signDB.LastRun{
		ID:              signDB.LastRunID,
		LastRunDatetime: time.Now(),
		ScheduleID:      scheduleID,
	}
	return e.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&marker).Error
}

func (e *ExecutorService) publishDisplayEvent(scheduleID uint, name, command, response string) {
	if e.Producer == nil {
		return
	}
	event := events.DisplayExecutedEvent{
		ScheduleID: scheduleID,
		Name:       name,
		Command:    command,
		Response:   response,
		ExecutedAt: time.Now(),
	}
	payloadBytes, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling display event for schedule ID %d: %v", scheduleID, err)
		return
	}
	writeCtx, cancel := context.WithTimeout(e.appContext, 10*time.Second)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(scheduleID), 10)),
		Value: payloadBytes,
	}
	if err := e.Producer.WriteMessages(writeCtx, msg); err != nil {
		log.Printf("Error publishing display event for schedule ID %d: %v", scheduleID, err)
	}
}

func wireItems(items []signDB.PayloadItem) []signwire.Item {
	out := make([]signwire.Item, 0, len(items))
	for _, item := range items {
		kind := ""
		switch item.Type {
		case signDB.ItemStatic:
			kind = signwire.KindStatic
		case signDB.ItemScroll:
			kind = signwire.KindScroll
		default:
			// Unknown kinds are forward-compatibility noise, not errors.
			log.Printf("Skipping item with unrecognized type %q", item.Type)
			continue
		}
		out = append(out, signwire.Item{
			Kind:  kind,
			Text:  item.Content,
			X:     item.X,
			Y:     item.Y,
			Color: item.Color,
			Speed: item.Speed,
		})
	}
	return out
}
