package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLocker(rdb), mr
}

func TestLockerAcquireRelease(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "settlement", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := l.Acquire(ctx, "settlement", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second Acquire() error = %v, want ErrLockHeld", err)
	}

	release()
	release()
	if mr.Exists("lock:settlement") {
		t.Fatal("lock key still present after release")
	}

	again, err := l.Acquire(ctx, "settlement", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	again()
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "ingest", time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// TTL expira e outro dono assume a chave
	mr.FastForward(2 * time.Second)
	if err := mr.Set("lock:ingest", "other-owner"); err != nil {
		t.Fatal(err)
	}

	release()
	got, err := mr.Get("lock:ingest")
	if err != nil || got != "other-owner" {
		t.Fatalf("lock:ingest = %q (%v), want other-owner", got, err)
	}
}
