package scheduler

import (
	"context"
	"log"
	"price-checker/internal/models"
	"price-checker/internal/services"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the two independent check cadences. An interval of 0
// pauses that cadence; the other is unaffected.
type Scheduler struct {
	cron    *cron.Cron
	monitor *services.MonitorService

	mu        sync.Mutex
	entries   map[models.CheckKind]cron.EntryID
	intervals map[models.CheckKind]int

	// Per-kind batch guard. SkipIfStillRunning protects a single cron
	// entry, but Reconfigure replaces entries, so two entries for the
	// same kind could briefly coexist without this.
	running map[models.CheckKind]*sync.Mutex
}

// NewScheduler creates a new scheduler
func NewScheduler(monitor *services.MonitorService) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		monitor:   monitor,
		entries:   make(map[models.CheckKind]cron.EntryID),
		intervals: make(map[models.CheckKind]int),
		running: map[models.CheckKind]*sync.Mutex{
			models.KindAvailability: {},
			models.KindPrice:        {},
		},
	}
}

// Start starts both cadences with the given intervals in minutes
func (s *Scheduler) Start(availabilityMinutes, priceMinutes int) {
	s.Reconfigure(models.KindAvailability, availabilityMinutes)
	s.Reconfigure(models.KindPrice, priceMinutes)
	s.cron.Start()
}

// Reconfigure sets a cadence's interval. 0 pauses the cadence. Safe to
// call while a batch is running; the in-flight batch completes and the
// new interval applies from the next scheduling decision.
func (s *Scheduler) Reconfigure(kind models.CheckKind, minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[kind]; ok {
		s.cron.Remove(id)
		delete(s.entries, kind)
	}
	s.intervals[kind] = minutes

	if minutes <= 0 {
		log.Printf("Scheduled %s checks are paused (interval set to 0)", kind)
		return
	}

	interval := time.Duration(minutes) * time.Minute
	s.entries[kind] = s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		s.runBatch(kind)
	}))

	log.Printf("Checking %s every %d minute(s)", kind, minutes)
}

// Interval returns a cadence's current interval in minutes (0 = paused)
func (s *Scheduler) Interval(kind models.CheckKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervals[kind]
}

// Stop stops the scheduler and waits for in-flight batches to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) runBatch(kind models.CheckKind) {
	guard := s.running[kind]
	if !guard.TryLock() {
		log.Printf("Previous %s batch still running, skipping tick", kind)
		return
	}
	defer guard.Unlock()

	if err := s.monitor.CheckAllProducts(context.Background(), kind); err != nil {
		log.Printf("Scheduled %s check failed: %v", kind, err)
	}
}
