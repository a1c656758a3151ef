// Package ticker provides cancellable periodic ticks. A tick source is a
// scoped resource: Start acquires it and the returned stop func releases it.
package ticker

import (
	"sync"
	"time"
)

// Source starts periodic calls to fire until the returned stop func is called.
type Source interface {
	Start(interval time.Duration, fire func()) (stop func())
}

// Clock is the wall-clock Source.
type Clock struct{}

// Start calls fire every interval on a dedicated goroutine. Stop is
// idempotent and fire is never called after stop returns.
func (Clock) Start(interval time.Duration, fire func()) func() {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case <-t.C:
				select {
				case <-done:
					return
				default:
				}
				fire()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
		<-exited
	}
}

// Manual is a Source driven by hand, for tests.
type Manual struct {
	mu     sync.Mutex
	fire   func()
	starts int
}

// Start records fire as the active callback.
func (m *Manual) Start(_ time.Duration, fire func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fire = fire
	m.starts++
	current := m.starts
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.starts == current {
			m.fire = nil
		}
	}
}

// Tick invokes the active callback n times and reports whether one was active.
func (m *Manual) Tick(n int) bool {
	m.mu.Lock()
	fire := m.fire
	m.mu.Unlock()
	if fire == nil {
		return false
	}
	for i := 0; i < n; i++ {
		fire()
	}
	return true
}

// Active reports whether a started source has not been stopped.
func (m *Manual) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fire != nil
}

// Starts returns how many times Start was called.
func (m *Manual) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}
