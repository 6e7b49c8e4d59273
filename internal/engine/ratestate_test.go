package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRateState_SuccessArmsCooldownAtLimit(t *testing.T) {
	rs := &RateState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if _, armed := rs.Success(now, 5, time.Minute); armed {
			t.Fatalf("cooldown armed after %d messages, limit is 5", i+1)
		}
	}
	until, armed := rs.Success(now, 5, time.Minute)
	if !armed {
		t.Fatal("cooldown not armed at the message limit")
	}
	if !until.Equal(now.Add(time.Minute)) {
		t.Errorf("cooldown until %v, want %v", until, now.Add(time.Minute))
	}
	if got := rs.Snapshot().MessagesSent; got != 0 {
		t.Errorf("messagesSent = %d after arming, want 0", got)
	}
	if !rs.InCooldown(now) {
		t.Error("InCooldown = false right after arming")
	}
}

func TestRateState_CooldownClearsLazily(t *testing.T) {
	rs := &RateState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rs.Arm(now.Add(time.Minute))

	if !rs.InCooldown(now.Add(30 * time.Second)) {
		t.Error("InCooldown = false mid-cooldown")
	}
	if rs.InCooldown(now.Add(2 * time.Minute)) {
		t.Error("InCooldown = true after the deadline passed")
	}
	// Cleared state must stay cleared.
	if rs.InCooldown(now.Add(3 * time.Minute)) {
		t.Error("cooldown came back after clearing")
	}
}

func TestRateState_Flood(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("small flood is inline", func(t *testing.T) {
		rs := &RateState{}
		if inline := rs.Flood(now, 10, 60, 3, 30*time.Minute); !inline {
			t.Error("Flood(10) inline = false, want true")
		}
		if rs.InCooldown(now) {
			t.Error("small flood armed a cooldown")
		}
	})

	t.Run("large flood arms cooldown", func(t *testing.T) {
		rs := &RateState{}
		if inline := rs.Flood(now, 300, 60, 3, 30*time.Minute); inline {
			t.Error("Flood(300) inline = true, want false")
		}
		if !rs.InCooldown(now.Add(299 * time.Second)) {
			t.Error("cooldown not active before the flood wait elapsed")
		}
		if rs.InCooldown(now.Add(301 * time.Second)) {
			t.Error("cooldown still active after the flood wait elapsed")
		}
	})

	t.Run("flood count threshold freezes", func(t *testing.T) {
		rs := &RateState{}
		rs.Flood(now, 5, 60, 3, 30*time.Minute)
		rs.Flood(now, 5, 60, 3, 30*time.Minute)
		if inline := rs.Flood(now, 5, 60, 3, 30*time.Minute); inline {
			t.Error("third flood still inline, want freeze")
		}
		if !rs.InCooldown(now.Add(29 * time.Minute)) {
			t.Error("freeze cooldown not active")
		}
		if got := rs.Snapshot().FloodCount; got != 3 {
			t.Errorf("floodCount = %d, want 3", got)
		}
	})
}

func TestRateState_TransientStreak(t *testing.T) {
	rs := &RateState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		rs.Transient(now, 5, time.Minute)
	}
	if rs.InCooldown(now) {
		t.Fatal("cooldown armed before the streak threshold")
	}
	rs.Transient(now, 5, time.Minute)
	if !rs.InCooldown(now) {
		t.Fatal("cooldown not armed at the streak threshold")
	}
	if got := rs.Snapshot().ConsecutiveErrors; got != 0 {
		t.Errorf("consecutiveErrors = %d after arming, want 0", got)
	}
}

func TestRateState_SuccessResetsStreak(t *testing.T) {
	rs := &RateState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rs.Transient(now, 5, time.Minute)
	rs.Transient(now, 5, time.Minute)
	rs.Success(now, 100, time.Minute)
	if got := rs.Snapshot().ConsecutiveErrors; got != 0 {
		t.Errorf("consecutiveErrors = %d after success, want 0", got)
	}
}

func TestRateState_ArmNeverShortens(t *testing.T) {
	rs := &RateState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rs.Arm(now.Add(time.Hour))
	rs.Arm(now.Add(time.Minute))
	if !rs.InCooldown(now.Add(30 * time.Minute)) {
		t.Error("a later shorter Arm shortened the cooldown")
	}
}

func TestRateRegistry_GetCreatesOnce(t *testing.T) {
	reg := NewRateRegistry()
	id := uuid.Must(uuid.NewV7())

	a := reg.Get(id)
	b := reg.Get(id)
	if a != b {
		t.Error("Get returned different entries for the same session")
	}
	if other := reg.Get(uuid.Must(uuid.NewV7())); other == a {
		t.Error("Get returned the same entry for different sessions")
	}
}
