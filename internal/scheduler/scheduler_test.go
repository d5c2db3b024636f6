package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	syncdomain "banksync/internal/domain/sync"
)

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		input   string
		want    ScheduleTime
		wantErr bool
	}{
		{"02:00", ScheduleTime{2, 0}, false},
		{"23:59", ScheduleTime{23, 59}, false},
		{"0:5", ScheduleTime{0, 5}, false},
		{"24:00", ScheduleTime{}, true},
		{"12:60", ScheduleTime{}, true},
		{"noon", ScheduleTime{}, true},
		{"", ScheduleTime{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseScheduleTime(%q) should fail", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScheduleTime(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveLocation(t *testing.T) {
	if loc := resolveLocation("America/New_York"); loc.String() != "America/New_York" {
		t.Errorf("resolveLocation() = %v, want America/New_York", loc)
	}
	if loc := resolveLocation("Not/AZone"); loc != time.UTC {
		t.Errorf("unknown timezone should fall back to UTC, got %v", loc)
	}
	if loc := resolveLocation(""); loc != time.UTC {
		t.Errorf("empty timezone should fall back to UTC, got %v", loc)
	}
}

func TestShouldRun(t *testing.T) {
	s, err := New(Config{ScheduleTime: "02:00", Timezone: "America/Chicago"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Shutdown(time.Second)

	chicago, _ := time.LoadLocation("America/Chicago")

	// 02:00 in Chicago should trigger regardless of the tick's own zone.
	trigger := time.Date(2024, 3, 5, 2, 0, 30, 0, chicago)
	if !s.shouldRun(trigger.UTC()) {
		t.Error("shouldRun() = false at the scheduled local time")
	}

	// A second tick in the same minute must not double-fire.
	if s.shouldRun(trigger.UTC().Add(10 * time.Second)) {
		t.Error("shouldRun() fired twice within the same minute")
	}

	// The next day it fires again.
	if !s.shouldRun(trigger.AddDate(0, 0, 1).UTC()) {
		t.Error("shouldRun() = false on the following day")
	}

	if s.shouldRun(time.Date(2024, 3, 5, 14, 30, 0, 0, chicago)) {
		t.Error("shouldRun() = true outside the scheduled time")
	}
}

func TestNextScheduledTime(t *testing.T) {
	s, err := New(Config{ScheduleTime: "02:00", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Shutdown(time.Second)

	before := time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)
	if got := s.NextScheduledTime(before); !got.Equal(time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("NextScheduledTime(before) = %v", got)
	}

	after := time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)
	if got := s.NextScheduledTime(after); !got.Equal(time.Date(2024, 3, 6, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("NextScheduledTime(after) = %v", got)
	}
}

func TestNew_InvalidScheduleTime(t *testing.T) {
	if _, err := New(Config{ScheduleTime: "25:00"}); err == nil {
		t.Error("New() should fail on an invalid schedule time")
	}
}

type mockSyncer struct {
	summary *syncdomain.Summary
	err     error
}

func (m *mockSyncer) SyncAllConnections(ctx context.Context) (*syncdomain.Summary, error) {
	return m.summary, m.err
}

func TestSyncAllJob_Execute(t *testing.T) {
	job := NewSyncAllJob(&mockSyncer{summary: &syncdomain.Summary{ConnectionsProcessed: 2, SuccessCount: 2}})
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	failing := NewSyncAllJob(&mockSyncer{err: errors.New("database down")})
	if err := failing.Execute(context.Background()); err == nil {
		t.Error("Execute() should surface a failed sync pass")
	}
}

func TestScheduler_RunOnStartup(t *testing.T) {
	done := make(chan struct{})
	job := jobFunc(func(ctx context.Context) error {
		close(done)
		return nil
	})

	s, err := New(Config{ScheduleTime: "02:00", RunOnStartup: true, Jobs: []Job{job}})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	s.Start()
	defer s.Shutdown(time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("startup job did not run")
	}
}

type jobFunc func(ctx context.Context) error

func (f jobFunc) Execute(ctx context.Context) error { return f(ctx) }
func (f jobFunc) Description() string               { return "test job" }
