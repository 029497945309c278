package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// SchedulerService owns the in-memory timer set. Durability lives in the
// schedule store; this service only mirrors it. Registration is keyed by
// schedule id through gocron tags, so a second Register for the same id
// replaces the first and Cancel is a no-op for unknown ids.
type SchedulerService struct {
	DB        *gorm.DB
	Scheduler gocron.Scheduler
	Executor  *ExecutorService

	mu sync.Mutex
}

func NewSchedulerService(db *gorm.DB, executor *ExecutorService) (*SchedulerService, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &SchedulerService{DB: db, Scheduler: s, Executor: executor}, nil
}

// Start begins clock-driven dispatch. Call only after RecoverLastRun and
// Reconcile; reconciliation assumes no timers are dispatching yet.
func (s *SchedulerService) Start() {
	s.Scheduler.Start()
	log.Printf("SchedulerService started, %d jobs scheduled.", len(s.Scheduler.Jobs()))
}

func (s *SchedulerService) Stop() {
	log.Println("SchedulerService stopping...")
	if err := s.Scheduler.Shutdown(); err != nil {
		log.Printf("Error shutting down gocron scheduler: %v", err)
	}
}

func scheduleTag(scheduleID uint) string {
	return fmt.Sprintf("schedule_id:%d", scheduleID)
}

// Register installs a timer for a schedule row, replacing any existing timer
// for the same id. The executor is invoked with the row's id and name on
// every firing. Singleton mode keeps a slow execution from overlapping its
// own next firing; a firing that lands mid-execution is coalesced into one
// rescheduled run.
func (s *SchedulerService) Register(scheduleID uint, name string, trigger Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Scheduler.RemoveByTags(scheduleTag(scheduleID))

	job, err := s.Scheduler.NewJob(
		trigger.JobDefinition(),
		gocron.NewTask(
			func(id uint, scheduleName string) {
				s.Executor.ExecuteScheduledItem(id, scheduleName)
			},
			scheduleID, name,
		),
		gocron.WithName(fmt.Sprintf("schedule_%d", scheduleID)),
		gocron.WithTags("schedule", scheduleTag(scheduleID)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register schedule ID %d: %w", scheduleID, err)
	}

	if nextRun, errNextRun := job.NextRun(); errNextRun == nil {
		log.Printf("Registered schedule ID %d (%s), next run %s", scheduleID, name, nextRun.Format(time.RFC3339))
	} else {
		log.Printf("Registered schedule ID %d (%s)", scheduleID, name)
	}
	return nil
}

// Cancel removes the timer for a schedule id if one exists. Unknown ids are
// not an error: the store and the timer set can legitimately diverge.
func (s *SchedulerService) Cancel(scheduleID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scheduler.RemoveByTags(scheduleTag(scheduleID))
}

// jobCountByTag reports how many live jobs carry a schedule id tag.
func (s *SchedulerService) jobCountByTag(scheduleID uint) int {
	tag := scheduleTag(scheduleID)
	count := 0
	for _, job := range s.Scheduler.Jobs() {
		for _, t := range job.Tags() {
			if t == tag {
				count++
			}
		}
	}
	return count
}
