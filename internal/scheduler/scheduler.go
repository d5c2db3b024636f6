package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer      = otel.Tracer("banksync/scheduler")
	jobMeter       = otel.Meter("banksync/scheduler")
	jobDuration, _ = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _    = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
)

// ScheduleTime represents a specific time of day when the scheduler should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// resolveLocation loads a named IANA timezone, falling back to UTC when the
// name does not resolve. A bad timezone must not keep the nightly sync from
// running at all.
func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Scheduler: unknown timezone %q, falling back to UTC: %v", name, err)
		return time.UTC
	}
	return loc
}

// Scheduler runs jobs once per day at a configured local time.
type Scheduler struct {
	scheduleTime ScheduleTime
	location     *time.Location
	runOnStartup bool
	jobs         []Job
	jobTimeout   time.Duration

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastRunKey string
	mu         sync.Mutex
}

// Config holds configuration for the scheduler.
type Config struct {
	// ScheduleTime is the daily trigger in HH:MM format.
	ScheduleTime string
	// Timezone is the IANA name the trigger is interpreted in. Unknown
	// names fall back to UTC.
	Timezone     string
	RunOnStartup bool
	JobTimeout   time.Duration
	Jobs         []Job
}

// New creates a new scheduler with the given configuration.
func New(config Config) (*Scheduler, error) {
	st, err := ParseScheduleTime(config.ScheduleTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule time %q: %w", config.ScheduleTime, err)
	}

	jobTimeout := config.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}

	location := resolveLocation(config.Timezone)
	ctx, cancel := context.WithCancel(context.Background())

	log.Printf("Scheduler initialized: daily at %s (%s), %d jobs", st, location, len(config.Jobs))

	return &Scheduler{
		scheduleTime: st,
		location:     location,
		runOnStartup: config.RunOnStartup,
		jobs:         config.Jobs,
		jobTimeout:   jobTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	if s.runOnStartup {
		log.Println("Scheduler: Running initial job batch on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobs()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Println("Scheduler started")
}

// scheduleLoop is the main scheduling loop.
func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	log.Println("Scheduler loop started, checking every minute")

	for {
		select {
		case <-s.ctx.Done():
			log.Println("Scheduler loop: Context cancelled, shutting down")
			return

		case now := <-ticker.C:
			if s.shouldRun(now) {
				log.Printf("Scheduler: Triggered at %s", now.In(s.location).Format("15:04"))
				s.runJobs()
			}
		}
	}
}

// shouldRun checks whether the current wall clock, in the configured
// timezone, matches the daily trigger. The lastRunKey guard keeps multiple
// ticks inside the same minute from double-firing.
func (s *Scheduler) shouldRun(now time.Time) bool {
	local := now.In(s.location)
	if local.Hour() != s.scheduleTime.Hour || local.Minute() != s.scheduleTime.Minute {
		return false
	}

	currentKey := local.Format("2006-01-02 15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRunKey == currentKey {
		return false
	}
	s.lastRunKey = currentKey
	return true
}

// runJobs executes all configured jobs sequentially.
func (s *Scheduler) runJobs() {
	for _, job := range s.jobs {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		s.processJob(job)
	}
}

// processJob executes a single job with error handling, logging, and telemetry.
func (s *Scheduler) processJob(job Job) {
	log.Printf("Scheduler: Processing %s", job.Description())

	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(attribute.String("job.description", job.Description())),
	)
	defer span.End()

	start := time.Now()

	if err := job.Execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		jobDuration.Record(ctx, time.Since(start).Seconds())
		log.Printf("Scheduler: Error processing %s: %v", job.Description(), err)
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	jobDuration.Record(ctx, time.Since(start).Seconds())
	log.Printf("Scheduler: Successfully completed %s", job.Description())
}

// TriggerNow manually triggers a job run immediately.
func (s *Scheduler) TriggerNow() {
	log.Println("Scheduler: Manual trigger")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJobs()
	}()
}

// NextScheduledTime returns the next scheduled run after now.
func (s *Scheduler) NextScheduledTime(now time.Time) time.Time {
	local := now.In(s.location)
	next := time.Date(local.Year(), local.Month(), local.Day(),
		s.scheduleTime.Hour, s.scheduleTime.Minute, 0, 0, s.location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Shutdown gracefully stops the scheduler, waiting up to timeout for any
// running job batch to finish.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: Initiating graceful shutdown...")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Scheduler: Stopped gracefully")
	case <-time.After(timeout):
		log.Println("Scheduler: Timeout waiting for jobs to stop")
	}

	log.Println("Scheduler: Shutdown complete")
}
