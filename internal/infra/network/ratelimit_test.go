package network

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenBucketAllow(t *testing.T) {
	b := NewTokenBucket(2, 1)
	now := b.last
	if !b.Allow(now) || !b.Allow(now) {
		t.Fatalf("burst of 2 expected")
	}
	if b.Allow(now) {
		t.Fatalf("bucket must be empty")
	}
	if !b.Allow(now.Add(1100 * time.Millisecond)) {
		t.Fatalf("token must refill after a second")
	}
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	b := NewTokenBucket(1, 0.001)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("first token must be immediate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
