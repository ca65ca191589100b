package config

import (
	"testing"
	"time"
)

func newDefaultConfig() *Config {
	return NewFromViper(NewEmptyViper())
}

func TestDefaultPoolConfig(t *testing.T) {
	t.Parallel()

	poolCfg, err := newDefaultConfig().GetPool()
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if poolCfg.Size != 3 {
		t.Errorf("pool size = %d, want 3", poolCfg.Size)
	}
	if poolCfg.AcquireTimeout != 30*time.Second {
		t.Errorf("acquire timeout = %s, want 30s", poolCfg.AcquireTimeout)
	}
}

func TestDefaultBatchConfig(t *testing.T) {
	t.Parallel()

	batchCfg, err := newDefaultConfig().GetBatch()
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if batchCfg.ItemTimeout != 120*time.Second {
		t.Errorf("item timeout = %s, want 120s", batchCfg.ItemTimeout)
	}
	if batchCfg.ProgressBuffer != 64 {
		t.Errorf("progress buffer = %d, want 64", batchCfg.ProgressBuffer)
	}
}

func TestDefaultSpoolConfig(t *testing.T) {
	t.Parallel()

	spoolCfg, err := newDefaultConfig().GetSpool()
	if err != nil {
		t.Fatalf("GetSpool failed: %v", err)
	}
	if spoolCfg.Dir == "" || spoolCfg.ProcessedDir == "" || spoolCfg.FailedDir == "" {
		t.Errorf("spool directories not defaulted: %+v", spoolCfg)
	}
	if spoolCfg.PollInterval != 30*time.Second {
		t.Errorf("poll interval = %s, want 30s", spoolCfg.PollInterval)
	}
}

func TestBadDurationSurfacesError(t *testing.T) {
	t.Parallel()

	v := NewEmptyViper()
	v.Set("batch.item_timeout", "soon")
	if _, err := NewFromViper(v).GetBatch(); err == nil {
		t.Error("expected error for unparseable duration")
	}

	v = NewEmptyViper()
	v.Set("pool.acquire_timeout", "whenever")
	if _, err := NewFromViper(v).GetPool(); err == nil {
		t.Error("expected error for unparseable acquire timeout")
	}
}
