package session

import "testing"

func TestTimerPausesWhileHidden(t *testing.T) {
	timer := NewTimer(60)

	timer.Advance(20)
	if got := timer.ConsumedSec(); got != 20 {
		t.Fatalf("ConsumedSec() = %d, want 20", got)
	}

	// Backgrounded for 30 seconds: none of it counts.
	timer.Hide()
	if timer.Advance(30) {
		t.Error("hidden interval fired expiry")
	}
	if got := timer.ConsumedSec(); got != 20 {
		t.Errorf("ConsumedSec() after hidden interval = %d, want 20", got)
	}
	if timer.Expired() {
		t.Error("timer expired during hidden interval")
	}

	timer.Show()
	if !timer.Advance(40) {
		t.Error("Advance(40) should exhaust the budget")
	}
	if got := timer.RemainingSec(); got != 0 {
		t.Errorf("RemainingSec() = %d, want 0", got)
	}
}

func TestTimerFiresExactlyOnce(t *testing.T) {
	timer := NewTimer(10)

	if !timer.Advance(15) {
		t.Fatal("first exhausting Advance should return true")
	}
	if timer.Advance(5) {
		t.Error("second Advance after expiry returned true again")
	}
	if got := timer.ConsumedSec(); got != 10 {
		t.Errorf("ConsumedSec() = %d, want clamped 10", got)
	}
}

func TestUntimedAccumulatesWithoutFiring(t *testing.T) {
	timer := NewTimer(0)

	for i := 0; i < 100; i++ {
		if timer.Advance(60) {
			t.Fatal("untimed timer fired")
		}
	}
	if got := timer.ConsumedSec(); got != 6000 {
		t.Errorf("ConsumedSec() = %d, want 6000", got)
	}
	if timer.Expired() {
		t.Error("untimed timer reports expired")
	}
}

func TestRestoreExhaustedBudget(t *testing.T) {
	timer := Restore(60, 75)

	if !timer.Expired() {
		t.Error("restored over-budget timer should be expired")
	}
	if got := timer.ConsumedSec(); got != 60 {
		t.Errorf("ConsumedSec() = %d, want clamped 60", got)
	}
	if timer.Advance(1) {
		t.Error("Advance on exhausted restore returned true")
	}
}

func TestRestorePartialBudget(t *testing.T) {
	timer := Restore(600, 250)

	if timer.Expired() {
		t.Error("restored mid-budget timer should not be expired")
	}
	if got := timer.RemainingSec(); got != 350 {
		t.Errorf("RemainingSec() = %d, want 350", got)
	}
}
