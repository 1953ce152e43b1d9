package decay

import (
	"testing"
	"time"

	"github.com/pmos/brain/internal/entity"
)

func TestEffectiveFourteenWeeks(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ref := now.Add(-14 * 7 * 24 * time.Hour)
	rel := entity.Relationship{Confidence: 1.0, LastVerified: &ref}
	got := Effective(rel, Options{DecayRate: 0.01, Floor: 0.3, Now: now})
	if diff := got - 0.86; diff < -1e-9 || diff > 1e-9 {
		t.Fatalf("expected 0.86, got %v", got)
	}
}

func TestEffectiveFloorAtHundredWeeks(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ref := now.Add(-100 * 7 * 24 * time.Hour)
	rel := entity.Relationship{Confidence: 1.0, LastVerified: &ref}
	got := Effective(rel, Options{DecayRate: 0.01, Floor: 0.3, Now: now})
	if got != 0.3 {
		t.Fatalf("expected floor 0.3, got %v", got)
	}
}

func TestIsStaleUsesPerTypeThreshold(t *testing.T) {
	now := time.Now().UTC()
	ref := now.Add(-20 * 24 * time.Hour)
	blocks := entity.Relationship{Type: "blocks", LastVerified: &ref}
	reportsTo := entity.Relationship{Type: "reports_to", LastVerified: &ref}
	if !IsStale(blocks, now) {
		t.Fatal("expected blocks at 20d to be stale (threshold 14d)")
	}
	if IsStale(reportsTo, now) {
		t.Fatal("expected reports_to at 20d to not be stale (threshold 90d)")
	}
}
