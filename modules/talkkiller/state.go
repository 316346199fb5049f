package talkkiller

import "time"

// hysteresis accumulates consecutive speech-classified ticks. A single
// non-speech tick resets the counter to zero; there is no decay. The hard
// reset is intentional: it keeps failover timing predictable at the cost of
// restarting the count when a music transient lands mid-speech.
type hysteresis struct {
	accumulated time.Duration
}

// observe advances the accumulator by one tick and returns the new total.
func (h *hysteresis) observe(speech bool, step time.Duration) time.Duration {
	if speech {
		h.accumulated += step
	} else {
		h.accumulated = 0
	}
	return h.accumulated
}

func (h *hysteresis) reset() {
	h.accumulated = 0
}

// failover tracks the cooldown between automatic station switches. The
// cooldown runs from the last fired trigger, independent of the
// hysteresis accumulator: accumulation can pass the threshold while still in
// cooldown and fires on the first tick after the cooldown clears.
type failover struct {
	lastSwitch time.Time
}

// cleared reports whether enough time has passed since the last switch.
func (f *failover) cleared(now time.Time, cooldown time.Duration) bool {
	if f.lastSwitch.IsZero() {
		return true
	}
	return now.Sub(f.lastSwitch) >= cooldown
}

// fired records a trigger firing, whether or not a switch followed.
func (f *failover) fired(now time.Time) {
	f.lastSwitch = now
}
