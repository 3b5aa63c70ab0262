package database

import (
	"testing"

	"github.com/SlpAus/tinyballot-backend/internal/platform/config"
)

func resetCacheStatus(t *testing.T) {
	t.Helper()
	disableCache()
	t.Cleanup(disableCache)
}

func TestCacheDisabledIgnoresHealthUpdates(t *testing.T) {
	resetCacheStatus(t)

	if err := InitRedis(config.RedisConfig{}); err != nil {
		t.Fatalf("InitRedis without address: %v", err)
	}
	UpdateStatus(true, "run-1")

	if got := CurrentCacheState(); got != CacheDisabled {
		t.Fatalf("state = %s, want disabled", got)
	}
	if IsRedisHealthy() {
		t.Fatalf("disabled cache must not report healthy")
	}
	if GetLastKnownRunID() != "" {
		t.Fatalf("disabled cache must not record a run id")
	}
}

func TestCacheStateTransitions(t *testing.T) {
	resetCacheStatus(t)
	enableCache()

	if got := CurrentCacheState(); got != CacheUp {
		t.Fatalf("state after enable = %s, want up", got)
	}

	UpdateStatus(false, "")
	if IsRedisHealthy() || CurrentCacheState() != CacheDown {
		t.Fatalf("state after failed check = %s, want down", CurrentCacheState())
	}

	UpdateStatus(true, "run-2")
	if !IsRedisHealthy() {
		t.Fatalf("expected cache to recover")
	}
	if GetLastKnownRunID() != "run-2" {
		t.Fatalf("run id = %q, want run-2", GetLastKnownRunID())
	}

	// 不健康时保留上一次的run_id，以便恢复后比较
	UpdateStatus(false, "ignored")
	if GetLastKnownRunID() != "run-2" {
		t.Fatalf("run id changed while down: %q", GetLastKnownRunID())
	}
}

func TestCacheStateString(t *testing.T) {
	cases := map[CacheState]string{CacheDisabled: "disabled", CacheUp: "up", CacheDown: "down"}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
