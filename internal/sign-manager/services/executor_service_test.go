package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	signDB "sign-scheduler-service/internal/sign-manager/db"
)

func newTestExecutor(t *testing.T) (*ExecutorService, *fakeDevice, *gorm.DB, func()) {
	gormDB, cleanup := setupServiceTestDB(t)
	device := newFakeDevice()
	executor := NewExecutorService(context.Background(), gormDB, device, nil)
	return executor, device, gormDB, cleanup
}

func lastRunMarker(gormDB *gorm.DB) (*signDB.LastRun, error) {
	var marker signDB.LastRun
	err := gormDB.First(&marker, signDB.LastRunID).Error
	if err != nil {
		return nil, err
	}
	return &marker, nil
}

func TestExecuteProducesExactCommand(t *testing.T) {
	executor, device, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	item := seedSchedule(t, gormDB, "greeting", func(s *signDB.ScheduleItem) {
		s.ScheduledDatetime = futureTime(time.Hour)
	})

	executor.ExecuteScheduledItem(item.ID, item.Name)

	commands := device.commandLog()
	assert.Len(t, commands, 1)
	assert.Equal(t, "SETSTATIC;HI;0;10;(255,0,0);END;", commands[0])

	marker, err := lastRunMarker(gormDB)
	assert.NoError(t, err)
	assert.Equal(t, item.ID, marker.ScheduleID)
	assert.WithinDuration(t, time.Now(), marker.LastRunDatetime, 5*time.Second)
}

func TestExecuteMissingScheduleAborts(t *testing.T) {
	executor, device, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	executor.ExecuteScheduledItem(12345, "ghost")

	assert.Empty(t, device.commandLog())
	_, err := lastRunMarker(gormDB)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExecuteMissingTemplateAborts(t *testing.T) {
	executor, device, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	danglingTemplate := uint(777)
	item := signDB.ScheduleItem{Name: "orphan", TemplateID: &danglingTemplate}
	assert.NoError(t, gormDB.Create(&item).Error)

	executor.ExecuteScheduledItem(item.ID, item.Name)

	assert.Empty(t, device.commandLog())
	_, err := lastRunMarker(gormDB)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExecuteInvalidPayloadAborts(t *testing.T) {
	executor, device, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	tmpl := signDB.Template{Name: "drifted", Payload: `{"items": "not an array"}`}
	assert.NoError(t, gormDB.Create(&tmpl).Error)
	item := signDB.ScheduleItem{Name: "drifted", TemplateID: &tmpl.ID}
	assert.NoError(t, gormDB.Create(&item).Error)

	executor.ExecuteScheduledItem(item.ID, item.Name)

	assert.Empty(t, device.commandLog())
}

func TestExecuteChannelErrorSkipsMarker(t *testing.T) {
	executor, device, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	device.response = "ERROR: sign server not reachable: connection refused"
	item := seedSchedule(t, gormDB, "unreachable", func(s *signDB.ScheduleItem) {
		s.ScheduledDatetime = futureTime(time.Hour)
	})

	executor.ExecuteScheduledItem(item.ID, item.Name)

	// The send was attempted but the marker must stay absent so recovery
	// retries this job.
	assert.Len(t, device.commandLog(), 1)
	_, err := lastRunMarker(gormDB)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExecuteSkipsUnknownItemKinds(t *testing.T) {
	executor, device, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	payload := `{"name":"fwd","items":[` +
		`{"type":"blink","content":"SKIP","x":0,"y":0,"color":[1,2,3]},` +
		`{"type":"static","content":"KEEP","x":2,"y":4,"color":[9,8,7]}]}`
	tmpl := signDB.Template{Name: "fwd", Payload: payload}
	assert.NoError(t, gormDB.Create(&tmpl).Error)
	item := signDB.ScheduleItem{Name: "fwd", TemplateID: &tmpl.ID}
	assert.NoError(t, gormDB.Create(&item).Error)

	executor.ExecuteScheduledItem(item.ID, item.Name)

	commands := device.commandLog()
	assert.Len(t, commands, 1)
	assert.Equal(t, "SETSTATIC;KEEP;2;4;(9,8,7);END;", commands[0])
}

func TestExecuteForwardsAllItemsInOrder(t *testing.T) {
	executor, device, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	payload := `{"name":"multi","items":[` +
		`{"type":"static","content":"FIRST","x":0,"y":10,"color":[255,0,0]},` +
		`{"type":"scroll","content":"SECOND","x":0,"y":20,"color":[0,255,0],"speed":40}]}`
	tmpl := signDB.Template{Name: "multi", Payload: payload}
	assert.NoError(t, gormDB.Create(&tmpl).Error)
	item := signDB.ScheduleItem{Name: "multi", TemplateID: &tmpl.ID}
	assert.NoError(t, gormDB.Create(&item).Error)

	executor.ExecuteScheduledItem(item.ID, item.Name)

	commands := device.commandLog()
	assert.Len(t, commands, 1)
	assert.Equal(t,
		"SETSTATIC;FIRST;0;10;(255,0,0);END;SCROLL;SECOND;0;20;(0,255,0);40;END;",
		commands[0])
}

func TestMarkerOverwrittenOnEachExecution(t *testing.T) {
	executor, _, gormDB, cleanup := newTestExecutor(t)
	defer cleanup()

	first := seedSchedule(t, gormDB, "first", func(s *signDB.ScheduleItem) {
		s.ScheduledDatetime = futureTime(time.Hour)
	})
	second := seedSchedule(t, gormDB, "second", func(s *signDB.ScheduleItem) {
		s.ScheduledDatetime = futureTime(2 * time.Hour)
	})

	executor.ExecuteScheduledItem(first.ID, first.Name)
	executor.ExecuteScheduledItem(second.ID, second.Name)

	marker, err := lastRunMarker(gormDB)
	assert.NoError(t, err)
	assert.Equal(t, second.ID, marker.ScheduleID)

	var markers []signDB.LastRun
	assert.NoError(t, gormDB.Find(&markers).Error)
	assert.Len(t, markers, 1)
}

func TestSetTextAndClear(t *testing.T) {
	executor, device, _, cleanup := newTestExecutor(t)
	defer cleanup()

	executor.SetText("HI", 0, 10, [3]int{255, 0, 0})
	executor.ClearSign()

	commands := device.commandLog()
	assert.Equal(t, []string{
		"SETSTATIC;HI;0;10;(255,0,0);END;",
		"CLEAR",
	}, commands)
}
