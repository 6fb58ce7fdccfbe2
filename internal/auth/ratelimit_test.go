package auth

import (
	"testing"
	"time"
)

func TestLoginRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewLoginRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("4th attempt within window should be blocked")
	}
}

func TestLoginRateLimiterPerIPIsolation(t *testing.T) {
	rl := NewLoginRateLimiter(1, time.Minute)

	if !rl.Allow("1.1.1.1") {
		t.Fatal("first attempt from 1.1.1.1 should be allowed")
	}
	if !rl.Allow("2.2.2.2") {
		t.Error("first attempt from a different IP should be allowed")
	}
}

func TestLoginRateLimiterWindowExpires(t *testing.T) {
	rl := NewLoginRateLimiter(1, 5*time.Millisecond)

	if !rl.Allow("9.9.9.9") {
		t.Fatal("first attempt should be allowed")
	}
	if rl.Allow("9.9.9.9") {
		t.Fatal("second attempt within window should be blocked")
	}

	time.Sleep(10 * time.Millisecond)

	if !rl.Allow("9.9.9.9") {
		t.Error("attempt after window expiry should be allowed again")
	}
}

func TestLoginRateLimiterReset(t *testing.T) {
	rl := NewLoginRateLimiter(1, time.Minute)

	rl.Allow("3.3.3.3")
	rl.Reset("3.3.3.3")

	if !rl.Allow("3.3.3.3") {
		t.Error("attempt after Reset should be allowed")
	}
}
