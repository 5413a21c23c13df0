// Package tick implements the single periodic timer that drives aging and
// snapshot publication.
package tick

import (
	"time"
)

// Scheduler fires C once per Interval until Stop is called. The fabric task
// selects over its channel alongside the frame and command channels.
type Scheduler struct {
	Interval time.Duration

	ticker *time.Ticker
	done   chan struct{}
	c      chan time.Time
}

// NewScheduler builds and starts a Scheduler firing every interval.
func NewScheduler(interval time.Duration) *Scheduler {
	s := &Scheduler{
		Interval: interval,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		c:        make(chan time.Time, 1),
	}
	go s.run()
	return s
}

// C is the channel the fabric task selects on for tick events.
func (s *Scheduler) C() <-chan time.Time {
	return s.c
}

func (s *Scheduler) run() {
	defer s.ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-s.ticker.C:
			// Non-blocking send: a tick is never worth blocking capture
			// or command processing for.
			select {
			case s.c <- now:
			default:
			}
		}
	}
}

// Stop cancels the scheduler; safe to call once.
func (s *Scheduler) Stop() {
	close(s.done)
}
