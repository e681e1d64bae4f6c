package process

import "time"

// DefaultReductionInterval is the nominal cadence described in spec §4.6:
// "a cyclic timer (nominally every 10 min)".
const DefaultReductionInterval = 10 * time.Minute

// StartReductionMaintenance launches a goroutine that stores a provisional
// reduction every interval, under the lock protecting the live app (spec
// §4.6). It returns a stop function; calling it terminates the goroutine.
// Errors from individual snapshot attempts are logged, not propagated —
// a failed snapshot only means restore falls back to a longer replay, it
// never corrupts durable state.
func (p *Process) StartReductionMaintenance(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultReductionInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, err := p.StoreReductionRecordForCurrentState(); err != nil && p.logger != nil {
					p.logger.Printf("⚠️ reduction maintenance snapshot failed: %v", err)
				}
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
	}
}
