package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"flightbook/internal/logging"

	"github.com/rs/zerolog"
)

// HealthChecker is the part of the backend the monitor checks.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ConnectivityMonitor checks the backend and reports offline/online
// transitions. It starts offline, so the first successful check is reported
// as a transition to online.
type ConnectivityMonitor struct {
	checker     HealthChecker
	interval    time.Duration
	backoff     Backoff
	online      atomic.Bool
	transitions chan bool
	logger      *zerolog.Logger

	mu          sync.Mutex
	subscribers []chan bool
}

func NewConnectivityMonitor(checker HealthChecker, interval, maxBackoff time.Duration, logger *zerolog.Logger) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ConnectivityMonitor{
		checker:     checker,
		interval:    interval,
		backoff:     Backoff{InitialDelay: interval, MaxDelay: maxBackoff, BackoffFactor: 2},
		transitions: make(chan bool, 8),
		logger:      logging.Component(logger, "connectivity"),
	}
}

func (m *ConnectivityMonitor) Online() bool {
	return m.online.Load()
}

// Transitions delivers the new state on every change.
func (m *ConnectivityMonitor) Transitions() <-chan bool {
	return m.transitions
}

// Subscribe returns a new channel that receives every later transition, for
// consumers other than the one reading Transitions.
func (m *ConnectivityMonitor) Subscribe() <-chan bool {
	ch := make(chan bool, 8)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

func (m *ConnectivityMonitor) notify(up bool) {
	select {
	case m.transitions <- up:
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- up:
		default:
		}
	}
}

// Check runs one health check and records the result.
func (m *ConnectivityMonitor) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.checker.Health(checkCtx)
	up := err == nil
	if prev := m.online.Swap(up); prev != up {
		if up {
			m.logger.Info().Msg("backend reachable, going online")
		} else {
			m.logger.Warn().Err(err).Msg("backend unreachable, going offline")
		}
		m.notify(up)
	}
	return up
}

// Run checks until ctx is done. While offline the delay between checks grows
// up to the configured maximum.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	failures := 0
	for {
		delay := m.interval
		if m.Check(ctx) {
			failures = 0
		} else {
			failures++
			delay = m.backoff.NextDelay(failures)
		}
		if !sleepCtx(ctx.Done(), delay) {
			return
		}
	}
}
