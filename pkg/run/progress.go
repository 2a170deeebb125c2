package run

import (
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultTickInterval is the cadence of simulated progress updates.
const DefaultTickInterval = 500 * time.Millisecond

// UniformIncrement draws a progress increment uniformly from [0, MaxIncrement).
func UniformIncrement() float64 {
	return rand.Float64() * MaxIncrement
}

// progressTicker calls tick on a fixed interval until released or until
// tick returns false. It is acquired when a run enters Running and released
// on every exit path.
type progressTicker struct {
	stop chan struct{}
	once sync.Once
}

func startProgressTicker(interval time.Duration, tick func() bool, done func()) *progressTicker {
	t := &progressTicker{stop: make(chan struct{})}
	go func() {
		defer done()
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				if !tick() {
					return
				}
			}
		}
	}()
	return t
}

// Release stops the ticker. It does not wait for the goroutine: a tick
// already in flight is rejected by the state machine once the run has left
// Running. Safe to call more than once.
func (t *progressTicker) Release() {
	t.once.Do(func() { close(t.stop) })
}
