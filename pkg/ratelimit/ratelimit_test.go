package ratelimit_test

import (
	"testing"
	"time"

	"github.com/aibles/iam/pkg/ratelimit"
)

func TestAllow_FullBurstThenReject(t *testing.T) {
	limiter := ratelimit.NewLimiter(60)

	for i := 0; i < 60; i++ {
		allowed, _ := limiter.Allow("client-a")
		if !allowed {
			t.Fatalf("request %d within the burst was rejected", i+1)
		}
	}

	allowed, retryAfter := limiter.Allow("client-a")
	if allowed {
		t.Fatal("request beyond the burst was admitted")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected a positive retry hint, got %v", retryAfter)
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	limiter := ratelimit.NewLimiter(60)

	for i := 0; i < 60; i++ {
		limiter.Allow("client-a")
	}
	if allowed, _ := limiter.Allow("client-a"); allowed {
		t.Fatal("client-a should be exhausted")
	}

	if allowed, _ := limiter.Allow("client-b"); !allowed {
		t.Fatal("client-b must not be affected by client-a's usage")
	}
}

func TestCleanup_EvictsIdleBuckets(t *testing.T) {
	limiter := ratelimit.NewLimiter(60)

	limiter.Allow("client-a")
	limiter.Allow("client-b")

	if removed := limiter.Cleanup(0); removed != 2 {
		t.Fatalf("expected 2 evictions, got %d", removed)
	}
	if removed := limiter.Cleanup(time.Hour); removed != 0 {
		t.Fatalf("expected no evictions, got %d", removed)
	}
}

func TestClientKey_UntrustedPeerHeaderIgnored(t *testing.T) {
	key := ratelimit.ClientKey("203.0.113.7", "10.0.0.1", []string{"192.168.1.1"})
	if key != "203.0.113.7" {
		t.Fatalf("expected the peer address, got %q", key)
	}
}

func TestClientKey_TrustedProxyHeaderHonored(t *testing.T) {
	key := ratelimit.ClientKey("192.168.1.1", "203.0.113.7, 10.0.0.1", []string{"192.168.1.1"})
	if key != "203.0.113.7" {
		t.Fatalf("expected the first forwarded hop, got %q", key)
	}
}

func TestClientKey_MissingHeaderFallsBackToPeer(t *testing.T) {
	key := ratelimit.ClientKey("192.168.1.1", "", []string{"192.168.1.1"})
	if key != "192.168.1.1" {
		t.Fatalf("expected the peer address, got %q", key)
	}
}

func TestClientKey_EmptyForwardedValueFallsBackToPeer(t *testing.T) {
	key := ratelimit.ClientKey("192.168.1.1", " , 10.0.0.1", []string{"192.168.1.1"})
	if key != "192.168.1.1" {
		t.Fatalf("expected the peer address, got %q", key)
	}
}
