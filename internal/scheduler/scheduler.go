// Package scheduler owns the dispatch loop: a single background sweeper
// that selects due notifications, renders and delivers them, and retires
// the ones that reached at least one recipient.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/models"
	"github.com/ivzakh/termkeeper/internal/render"
	"github.com/ivzakh/termkeeper/internal/transport"
)

// Store is the slice of the record store the sweeper needs.
type Store interface {
	ListDue(ctx context.Context, today clock.Date) ([]*models.DueNotification, error)
	MarkSent(ctx context.Context, notificationID int) error
}

// Transport delivers one rendered message to one recipient.
type Transport interface {
	Send(ctx context.Context, recipientID int64, text string) transport.Result
}

type Scheduler struct {
	store     Store
	transport Transport
	clock     clock.Clock
	log       *logrus.Logger
	period    time.Duration
	notifyCh  chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func New(store Store, tp Transport, clk clock.Clock, log *logrus.Logger, period time.Duration) *Scheduler {
	if period < time.Minute {
		period = time.Minute
	}
	return &Scheduler{
		store:     store,
		transport: tp,
		clock:     clk,
		log:       log,
		period:    period,
		notifyCh:  make(chan struct{}, 1),
	}
}

// Notify triggers an immediate sweep. Non-blocking if one is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Start launches the sweep loop. Idempotent while running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.run(ctx, s.done)
}

// Stop signals the sweeper and waits for it to exit. An in-flight send
// is allowed to finish; the loop observes the signal within a second.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.log.Info("scheduler started")

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.notifyCh:
			s.sweep(ctx)
		}
	}
}

// sweep runs one dispatch tick. It never lets a fault escape to the
// loop: store errors end the tick early, per-notification faults skip
// that notification only.
func (s *Scheduler) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("sweep panicked")
		}
	}()

	today := s.clock.Today()
	due, err := s.store.ListDue(ctx, today)
	if err != nil {
		s.log.WithError(err).Error("failed to list due notifications")
		return
	}

	sent := 0
	for _, d := range due {
		if ctx.Err() != nil {
			break
		}
		if s.dispatch(ctx, d) {
			sent++
		}
	}

	entry := s.log.WithFields(logrus.Fields{
		"due":        len(due),
		"sent_count": sent,
		"date":       today.String(),
	})
	if len(due) == 0 {
		entry.Debug("sweep completed")
	} else {
		entry.Info("sweep completed")
	}
}

// dispatch delivers one notification to its recipients. Delivery to any
// one recipient is enough to mark it sent; if every attempt fails it is
// left for the next tick. A crash between send and mark means the next
// sweep may deliver the same notification again.
func (s *Scheduler) dispatch(ctx context.Context, d *models.DueNotification) (marked bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"notification_id": d.NotificationID,
				"panic":           r,
			}).Error("dispatch panicked")
		}
	}()

	text := render.Message(d)

	delivered := false
	for _, recipient := range d.Recipients {
		switch s.transport.Send(ctx, recipient, text) {
		case transport.Delivered:
			delivered = true
		case transport.TransientFailure:
			s.log.WithFields(logrus.Fields{
				"notification_id": d.NotificationID,
				"recipient":       recipient,
			}).Warn("transient delivery failure")
		case transport.PermanentFailure:
			s.log.WithFields(logrus.Fields{
				"notification_id": d.NotificationID,
				"recipient":       recipient,
			}).Warn("permanent delivery failure")
		}
	}

	if !delivered {
		return false
	}

	if err := s.store.MarkSent(ctx, d.NotificationID); err != nil {
		// The notification stays due; the next sweep may deliver it again.
		s.log.WithFields(logrus.Fields{
			"notification_id": d.NotificationID,
		}).WithError(err).Error("failed to mark notification sent")
		return false
	}
	return true
}
