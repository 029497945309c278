package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	signDB "sign-scheduler-service/internal/sign-manager/db"
)

// Reconcile rebuilds the in-memory timer set from the schedule store. It
// runs once at startup, after RecoverLastRun and before Start.
//
// Expired one-shot rows are garbage and are swept first; recurring rows are
// never swept no matter what their scheduled_datetime says. A row that fails
// to resolve or register is logged and left unscheduled; the rest of the
// batch still loads.
func (s *SchedulerService) Reconcile() {
	now := time.Now()

	sweep := s.DB.Where("is_recurring = ? AND scheduled_datetime < ?", false, now).
		Delete(&signDB.ScheduleItem{})
	if sweep.Error != nil {
		log.Printf("Error sweeping expired one-shot schedules: %v", sweep.Error)
	} else if sweep.RowsAffected > 0 {
		log.Printf("Swept %d expired one-shot schedule(s).", sweep.RowsAffected)
	}

	var items []signDB.ScheduleItem
	if err := s.DB.Find(&items).Error; err != nil {
		log.Printf("Error loading schedule rows: %v", err)
		return
	}

	registered := 0
	for i := range items {
		item := items[i]

		// A one-shot already in the past can still be here if it was
		// created in the past or raced the sweep. Never skip recurring rows.
		if !item.IsRecurring && item.ScheduledDatetime != nil && item.ScheduledDatetime.Before(now) {
			continue
		}

		trigger, err := ResolveTrigger(&item)
		if err != nil {
			log.Printf("Schedule ID %d (%s) left unscheduled: %v", item.ID, item.Name, err)
			continue
		}
		if err := s.Register(item.ID, item.Name, trigger); err != nil {
			log.Printf("Schedule ID %d (%s) left unscheduled: %v", item.ID, item.Name, err)
			continue
		}
		registered++
	}
	log.Printf("Reconciliation complete: %d of %d schedule row(s) registered.", registered, len(items))
}

// RecoverLastRun replays the most recently executed schedule after a
// restart, on the assumption that the process may have died mid-display.
// The replay is unconditional: there is no freshness check on the marker,
// so a job that completed normally before a clean restart is shown again.
// Best-effort throughout; nothing here is fatal.
func (s *SchedulerService) RecoverLastRun() {
	var marker signDB.LastRun
	err := s.DB.First(&marker, signDB.LastRunID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		log.Printf("Error reading last-run marker: %v", err)
		return
	}

	var item signDB.ScheduleItem
	err = s.DB.First(&item, marker.ScheduleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Last-run marker points at deleted schedule ID %d, skipping recovery.", marker.ScheduleID)
		return
	}
	if err != nil {
		log.Printf("Error loading schedule ID %d for recovery: %v", marker.ScheduleID, err)
		return
	}

	log.Printf("Re-executing last run: schedule ID %d (%s), last ran %s",
		item.ID, item.Name, marker.LastRunDatetime.Format(time.RFC3339))
	s.Executor.ExecuteScheduledItem(item.ID, item.Name)
}
