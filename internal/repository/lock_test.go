package repository

import (
	"context"
	"testing"
	"time"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	unlock, ok, err := l.TryLock(ctx, "payout-run", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}

	if _, ok, _ := l.TryLock(ctx, "payout-run", time.Minute); ok {
		t.Fatal("second holder acquired a busy key")
	}
	if _, ok, _ := l.TryLock(ctx, "reconcile:b1", time.Minute); !ok {
		t.Fatal("unrelated key should be free")
	}

	unlock()
	if _, ok, _ := l.TryLock(ctx, "payout-run", time.Minute); !ok {
		t.Fatal("key should be free after unlock")
	}
}

func TestLocalLockerExpiry(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	stale, ok, _ := l.TryLock(ctx, "k", 10*time.Millisecond)
	if !ok {
		t.Fatal("first lock failed")
	}
	time.Sleep(20 * time.Millisecond)

	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	if !ok {
		t.Fatal("expired lock should be taken over")
	}

	// the expired holder must not release the new one
	stale()
	if _, ok, _ := l.TryLock(ctx, "k", time.Minute); ok {
		t.Fatal("stale unlock released the current holder")
	}
}
