// Package services – ReminderService
//
// This file implements the ReminderService, which owns two pieces of state
// the rest of the system deliberately does not persist: the session-scoped
// dismissal set (cleared on process restart) and the background polling loop
// that periodically sweeps every user's schedule for doses entering the
// look-ahead window.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/repo"
	"github.com/pilltrack/go-adherence-backend/internal/schedule"
)

// NotifyFunc receives the occurrences that entered a user's reminder window.
// Implementations must be fast; the poller calls them inline.
type NotifyFunc func(userID string, due []schedule.Occurrence)

// ReminderService evaluates the look-ahead window on demand and runs the
// background sweep. Dismissals live in memory only: restarting the process
// re-arms every reminder, which is the intended failure mode.
type ReminderService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Clock supplies "now" for window evaluation.
	Clock schedule.Clock
	// LookAheadMinutes is the reminder window size.
	LookAheadMinutes int
	// Interval is the background sweep period.
	Interval time.Duration
	// Notify is invoked by the sweep for each user with due doses. Optional.
	Notify NotifyFunc
	// Log receives sweep diagnostics.
	Log zerolog.Logger

	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	dismissed map[string]struct{}
}

// NewReminderService constructs a ReminderService with the default window
// and a 30 second sweep interval.
func NewReminderService(db *gorm.DB, clk schedule.Clock, log zerolog.Logger) *ReminderService {
	return &ReminderService{
		DB:               db,
		Clock:            clk,
		LookAheadMinutes: schedule.DefaultLookAheadMinutes,
		Interval:         30 * time.Second,
		Log:              log,
		stopCh:           make(chan struct{}),
		dismissed:        make(map[string]struct{}),
	}
}

// DueSoon returns the user's occurrences inside the look-ahead window right
// now: scheduled today, not yet taken, not dismissed this session, and due
// within LookAheadMinutes. Sorted soonest first.
func (s *ReminderService) DueSoon(ctx context.Context, userID string) ([]schedule.Occurrence, error) {
	now := s.Clock.Now()
	dateKey := schedule.DateKey(now)

	meds, err := repo.ListMedications(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	taken, err := repo.TakenOn(ctx, s.DB, userID, dateKey)
	if err != nil {
		return nil, err
	}

	var occs []schedule.Occurrence
	for i := range meds {
		def := meds[i].Definition()
		if schedule.LifecycleOn(def, now) != schedule.LifecycleActive {
			continue
		}
		day := schedule.DayOccurrences(def, now)
		for j := range day {
			day[j].State.IsTaken = taken[def.ID]
		}
		occs = append(occs, day...)
	}

	return schedule.SelectDue(occs, now, s.LookAheadMinutes, func(o schedule.Occurrence) bool {
		return s.IsDismissed(userID, o.Key())
	}), nil
}

// Dismiss silences one occurrence for the rest of the session. The key is
// the occurrence identity triple medicationID|date|HH:MM.
func (s *ReminderService) Dismiss(userID, occurrenceKey string) {
	s.mu.Lock()
	s.dismissed[userID+"|"+occurrenceKey] = struct{}{}
	s.mu.Unlock()
}

// IsDismissed reports whether the occurrence was dismissed this session.
func (s *ReminderService) IsDismissed(userID, occurrenceKey string) bool {
	s.mu.RLock()
	_, ok := s.dismissed[userID+"|"+occurrenceKey]
	s.mu.RUnlock()
	return ok
}

// Start launches the background sweep. It returns an error when the loop is
// already running.
func (s *ReminderService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("reminder sweep already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.Log.Info().Dur("interval", s.Interval).Msg("starting reminder sweep")

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop halts the background sweep and waits for the loop to exit. Calling
// Stop on a stopped service is a no-op.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.Log.Info().Msg("reminder sweep stopped")
}

// IsRunning reports whether the background sweep is active.
func (s *ReminderService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// run is the sweep loop. It fires once immediately so a freshly started
// process does not sit silent for a full interval.
func (s *ReminderService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep evaluates the window for every user with live medications.
func (s *ReminderService) sweep(ctx context.Context) {
	userIDs, err := repo.ListUserIDs(ctx, s.DB)
	if err != nil {
		s.Log.Error().Err(err).Msg("reminder sweep: list users")
		return
	}
	for _, uid := range userIDs {
		due, err := s.DueSoon(ctx, uid)
		if err != nil {
			s.Log.Error().Err(err).Str("user_id", uid).Msg("reminder sweep: evaluate window")
			continue
		}
		if len(due) == 0 {
			continue
		}
		s.Log.Debug().Str("user_id", uid).Int("due", len(due)).Msg("reminder sweep: doses due")
		if s.Notify != nil {
			s.Notify(uid, due)
		}
	}
}
