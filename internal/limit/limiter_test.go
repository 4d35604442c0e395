package limit

import (
	"errors"
	"testing"
)

func TestAllow_BurstThenLimited(t *testing.T) {
	l := NewDrawLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if err := l.Allow("p1"); err != nil {
			t.Fatalf("draw %d within burst: %v", i, err)
		}
	}
	if err := l.Allow("p1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after burst, got %v", err)
	}
}

func TestAllow_PlayersIndependent(t *testing.T) {
	l := NewDrawLimiter(1, 1)

	if err := l.Allow("p1"); err != nil {
		t.Fatalf("p1 first draw: %v", err)
	}
	if err := l.Allow("p1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("p1 should be limited, got %v", err)
	}
	if err := l.Allow("p2"); err != nil {
		t.Fatalf("p2 must have its own bucket: %v", err)
	}
}

func TestNewDrawLimiter_ClampsConfig(t *testing.T) {
	l := NewDrawLimiter(-5, 0)
	if err := l.Allow("p1"); err != nil {
		t.Fatalf("clamped limiter should allow one draw: %v", err)
	}
}
