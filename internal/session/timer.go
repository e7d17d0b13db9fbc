package session

// Timer counts down a fixed budget of foreground-visible wall time.
// Visibility transitions freeze and resume consumption; backgrounded
// seconds never count against the limit. A zero limit means untimed.
//
// Elapsed time is client-reported and trusted. That is a known trust
// boundary of the design, not something this layer second-guesses.
type Timer struct {
	limitSec    int
	consumedSec int
	visible     bool
	fired       bool
}

func NewTimer(limitSec int) *Timer {
	if limitSec < 0 {
		limitSec = 0
	}
	return &Timer{limitSec: limitSec, visible: true}
}

// Restore rebuilds a timer that has already consumed some of its budget,
// used when resuming an attempt from its durable row.
func Restore(limitSec, consumedSec int) *Timer {
	t := NewTimer(limitSec)
	if consumedSec > 0 {
		t.consumedSec = consumedSec
	}
	if t.Timed() && t.consumedSec >= t.limitSec {
		t.consumedSec = t.limitSec
		t.fired = true
	}
	return t
}

func (t *Timer) Timed() bool {
	return t.limitSec > 0
}

// Hide freezes consumption while the owning tab is backgrounded.
func (t *Timer) Hide() { t.visible = false }

// Show resumes consumption.
func (t *Timer) Show() { t.visible = true }

func (t *Timer) Visible() bool { return t.visible }

// Advance consumes up to sec seconds of foreground time. It returns
// true exactly once: on the call that exhausts the budget. Hidden
// intervals and ticks after exhaustion consume nothing.
func (t *Timer) Advance(sec int) bool {
	if sec <= 0 || !t.visible || t.fired {
		return false
	}
	t.consumedSec += sec
	if !t.Timed() {
		return false
	}
	if t.consumedSec >= t.limitSec {
		t.consumedSec = t.limitSec
		t.fired = true
		return true
	}
	return false
}

func (t *Timer) Expired() bool { return t.fired }

func (t *Timer) ConsumedSec() int { return t.consumedSec }

func (t *Timer) RemainingSec() int {
	if !t.Timed() {
		return 0
	}
	return t.limitSec - t.consumedSec
}
