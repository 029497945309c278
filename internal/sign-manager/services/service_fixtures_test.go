package services

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	signDB "sign-scheduler-service/internal/sign-manager/db"
)

// fakeDevice records every command it receives and answers with a canned
// response. Fired commands are also pushed to a channel so tests can wait
// for timer-driven sends.
type fakeDevice struct {
	mu          sync.Mutex
	commands    []string
	response    string
	delay       time.Duration
	fired       chan string
	inFlight    int32
	maxInFlight int32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{response: "OK displaying", fired: make(chan string, 32)}
}

func (d *fakeDevice) Send(command string) string {
	current := atomic.AddInt32(&d.inFlight, 1)
	defer atomic.AddInt32(&d.inFlight, -1)
	for {
		max := atomic.LoadInt32(&d.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&d.maxInFlight, max, current) {
			break
		}
	}

	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	d.commands = append(d.commands, command)
	response := d.response
	d.mu.Unlock()

	select {
	case d.fired <- command:
	default:
	}
	return response
}

func (d *fakeDevice) commandLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

func setupServiceTestDB(t *testing.T) (*gorm.DB, func()) {
	dbFilePath := "test_services_" + strconv.FormatInt(time.Now().UnixNano(), 10) + ".db"
	_ = os.Remove(dbFilePath)

	gormDB, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database '%s': %v", dbFilePath, err)
	}
	if err := gormDB.AutoMigrate(&signDB.Template{}, &signDB.ScheduleItem{}, &signDB.LastRun{}); err != nil {
		t.Fatalf("Failed to migrate test database '%s': %v", dbFilePath, err)
	}

	cleanup := func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			t.Logf("Warning: could not remove test DB file '%s': %v", dbFilePath, err)
		}
	}
	return gormDB, cleanup
}

func newTestScheduler(t *testing.T) (*SchedulerService, *fakeDevice, *gorm.DB, func()) {
	gormDB, cleanup := setupServiceTestDB(t)
	device := newFakeDevice()
	executor := NewExecutorService(context.Background(), gormDB, device, nil)
	scheduler, err := NewSchedulerService(gormDB, executor)
	if err != nil {
		cleanup()
		t.Fatalf("Failed to create scheduler service: %v", err)
	}
	stop := func() {
		scheduler.Stop()
		cleanup()
	}
	return scheduler, device, gormDB, stop
}

// seedSchedule creates a template and a schedule row pointing at it.
func seedSchedule(t *testing.T, gormDB *gorm.DB, name string, mutate func(*signDB.ScheduleItem)) *signDB.ScheduleItem {
	payload := &signDB.TemplatePayload{
		Name: name,
		Items: []signDB.PayloadItem{
			{Type: signDB.ItemStatic, Content: "HI", X: 0, Y: 10, Color: [3]int{255, 0, 0}},
		},
	}
	raw, err := signDB.EncodePayload(payload)
	if err != nil {
		t.Fatalf("Failed to encode payload: %v", err)
	}
	tmpl := signDB.Template{Name: name, Payload: raw}
	if err := gormDB.Create(&tmpl).Error; err != nil {
		t.Fatalf("Failed to create template: %v", err)
	}

	item := signDB.ScheduleItem{Name: name, TemplateID: &tmpl.ID}
	if mutate != nil {
		mutate(&item)
	}
	if err := gormDB.Create(&item).Error; err != nil {
		t.Fatalf("Failed to create schedule row: %v", err)
	}
	return &item
}

func futureTime(d time.Duration) *time.Time {
	when := time.Now().Add(d)
	return &when
}
