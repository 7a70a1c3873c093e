package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	interval := 20 * time.Millisecond
	lim := NewLimiter(1, 100, Every(interval))
	defer lim.Stop()

	tooshort := 1 * time.Millisecond

	client := "client-a"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := lim.Allow(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	lim := NewLimiter(2, 100, Every(time.Hour))
	defer lim.Stop()

	for i := 0; i < 2; i++ {
		if !lim.Allow("a") {
			t.Fatalf("a: request %d should pass within burst", i)
		}
	}
	if lim.Allow("a") {
		t.Fatal("a: request past burst should be rejected")
	}
	if !lim.Allow("b") {
		t.Fatal("b: first request should not be affected by a")
	}
}

func TestLimiterWithBurst(t *testing.T) {
	client := "client-burst"
	interval := 100 * time.Millisecond
	tooshort := 10 * time.Millisecond

	lim := NewLimiter(10, 100, Every(interval))
	defer lim.Stop()

	for i := 0; i < 10; i++ {
		if !lim.Allow(client) {
			t.Fatalf("iteration %d: burst request rejected", i)
		}
	}
	if lim.Allow(client) {
		t.Fatal("request after burst should be rejected")
	}

	time.Sleep(interval + tooshort)
	if !lim.Allow(client) {
		t.Fatal("request after one interval should pass")
	}
	if lim.Allow(client) {
		t.Fatal("second request in the same interval should be rejected")
	}
}
