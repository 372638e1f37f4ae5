package budget

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAllowUnderLimit(t *testing.T) {
	tr, err := NewTracker(filepath.Join(t.TempDir(), "budget.json"), 1000)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}

	if !tr.Allow() {
		t.Fatal("fresh tracker should allow calls")
	}

	tr.Record("gemini-2.0-flash", 400, 300)
	if !tr.Allow() {
		t.Error("700/1000 spent, should still allow")
	}

	tr.Record("gemini-2.0-flash", 200, 200)
	if tr.Allow() {
		t.Error("1100/1000 spent, should deny")
	}
}

func TestZeroLimitMeansUnlimited(t *testing.T) {
	tr, err := NewTracker(filepath.Join(t.TempDir(), "budget.json"), 0)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	tr.Record("m", 1<<20, 1<<20)
	if !tr.Allow() {
		t.Error("limit 0 must never deny")
	}
}

func TestPersistenceAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.json")

	tr, err := NewTracker(path, 100)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	tr.Record("m", 80, 40)
	if err := tr.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := NewTracker(path, 100)
	if err != nil {
		t.Fatalf("NewTracker reload failed: %v", err)
	}
	if reloaded.SpentToday() != 120 {
		t.Errorf("expected 120 tokens spent today, got %d", reloaded.SpentToday())
	}
	if reloaded.Allow() {
		t.Error("reloaded tracker over limit should deny")
	}
}

func TestDayRollover(t *testing.T) {
	tr, err := NewTracker(filepath.Join(t.TempDir(), "budget.json"), 100)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}

	yesterday := time.Now().Add(-24 * time.Hour)
	tr.now = func() time.Time { return yesterday }
	tr.Record("m", 90, 90)
	if tr.Allow() {
		t.Fatal("yesterday's spend should deny yesterday")
	}

	tr.now = time.Now
	if !tr.Allow() {
		t.Error("a new day resets the daily gate")
	}
}
