package correlation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// seedMixedDataset loads a dataset that triggers every rule once
func seedMixedDataset(store *memoryStore, datasetID string) {
	b := newEventBuilder(datasetID)
	store.add(b.failures(attackerIP, 6, 30*time.Second)...)
	for i := 0; i < 25; i++ {
		store.add(b.web("198.51.100.23", time.Duration(i)*5*time.Second, fmt.Sprintf("/wp-admin/%d.php", i), 404))
	}
	store.add(b.ids("203.0.113.5", 2*time.Minute, "ET SCAN Nmap Scripting Engine", intPtr(2)))
}

func newTestEngine(store *memoryStore, opts ...Option) *Engine {
	fixed := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return NewEngine(store, logging.Discard(), opts...)
}

func TestEngine_CorrelateDataset(t *testing.T) {
	ctx := context.Background()

	t.Run("runs rules in order", func(t *testing.T) {
		store := newMemoryStore("ds")
		seedMixedDataset(store, "ds")

		incidents, err := newTestEngine(store).CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		require.Len(t, incidents, 3)

		assert.Equal(t, models.RuleBruteForce, incidents[0].RuleID)
		assert.Equal(t, models.RuleWebScanning, incidents[1].RuleID)
		assert.Equal(t, models.RuleIDSConfirmed, incidents[2].RuleID)
		for _, inc := range incidents {
			assert.Equal(t, "ds", inc.DatasetID)
			assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), inc.CreatedAt)
			assert.NotEmpty(t, store.linksOf(inc.ID))
		}
		assert.Equal(t, 3, store.incidentCounts["ds"])
	})

	t.Run("second run is idempotent", func(t *testing.T) {
		store := newMemoryStore("ds")
		seedMixedDataset(store, "ds")
		engine := newTestEngine(store)

		first, err := engine.CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		require.NotEmpty(t, first)

		second, err := engine.CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		assert.NotNil(t, second)
		assert.Empty(t, second)
		assert.Len(t, store.incidents, len(first))
		assert.Equal(t, len(first), store.incidentCounts["ds"])
	})

	t.Run("new evidence on rerun only adds new keys", func(t *testing.T) {
		store := newMemoryStore("ds")
		seedMixedDataset(store, "ds")
		engine := newTestEngine(store)

		_, err := engine.CorrelateDataset(ctx, "ds")
		require.NoError(t, err)

		b := newEventBuilder("ds")
		b.seq = 1000
		store.add(b.failures("10.20.30.40", 5, time.Second)...)

		incidents, err := engine.CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		assert.Equal(t, "10.20.30.40", incidents[0].GroupKey)
		assert.Equal(t, 4, store.incidentCounts["ds"])
	})

	t.Run("empty dataset", func(t *testing.T) {
		store := newMemoryStore("ds")

		incidents, err := newTestEngine(store).CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		assert.NotNil(t, incidents)
		assert.Empty(t, incidents)
		assert.Equal(t, 0, store.incidentCounts["ds"])
	})

	t.Run("missing dataset id", func(t *testing.T) {
		_, err := newTestEngine(newMemoryStore()).CorrelateDataset(ctx, "")
		assert.Error(t, err)
	})

	t.Run("missing dataset row is not fatal", func(t *testing.T) {
		store := newMemoryStore()
		seedMixedDataset(store, "orphan")

		incidents, err := newTestEngine(store).CorrelateDataset(ctx, "orphan")
		require.NoError(t, err)
		assert.Len(t, incidents, 3)
	})

	t.Run("store failure aborts the run", func(t *testing.T) {
		store := newMemoryStore("ds")
		seedMixedDataset(store, "ds")
		store.failCreateAfter = 1

		incidents, err := newTestEngine(store).CorrelateDataset(ctx, "ds")
		require.Error(t, err)
		assert.Nil(t, incidents)
		assert.Contains(t, err.Error(), "rule web_scanning_v1 failed")

		// the brute-force incident written before the failure stays
		require.Len(t, store.incidents, 1)
		assert.Equal(t, models.RuleBruteForce, store.incidents[0].RuleID)
		_, counted := store.incidentCounts["ds"]
		assert.False(t, counted)
	})

	t.Run("event load failure", func(t *testing.T) {
		store := newMemoryStore("ds")
		store.listEventsErr = errors.New("relation \"events\" does not exist")

		_, err := newTestEngine(store).CorrelateDataset(ctx, "ds")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load login failures")
	})

	t.Run("lost race on the natural key is skipped", func(t *testing.T) {
		store := newMemoryStore("ds")
		seedMixedDataset(store, "ds")
		_, err := newTestEngine(store).CorrelateDataset(ctx, "ds")
		require.NoError(t, err)

		// existence check misses, insert hits the unique key
		store.hideExisting = true
		incidents, err := newTestEngine(store).CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		assert.Empty(t, incidents)
		assert.Len(t, store.incidents, 3)
	})
}

func TestEngine_RunInProgress(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("ds")
	seedMixedDataset(store, "ds")

	locker := NewLocalLocker()
	release, err := locker.Acquire(ctx, "ds")
	require.NoError(t, err)

	engine := newTestEngine(store, WithLocker(locker))

	_, err = engine.CorrelateDataset(ctx, "ds")
	require.ErrorIs(t, err, ErrRunInProgress)
	assert.Empty(t, store.incidents)
	assert.Zero(t, store.listCalls)

	release()

	incidents, err := engine.CorrelateDataset(ctx, "ds")
	require.NoError(t, err)
	assert.Len(t, incidents, 3)
}

func TestEngine_Tuning(t *testing.T) {
	ctx := context.Background()

	t.Run("custom thresholds", func(t *testing.T) {
		store := newMemoryStore("ds")
		b := newEventBuilder("ds")
		store.add(b.failures(attackerIP, 3, time.Minute)...)

		cfg := config.DefaultCorrelationConfig()
		cfg.BruteForceThreshold = 3

		incidents, err := newTestEngine(store, WithTuning(StaticTuning(cfg))).CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		assert.Contains(t, incidents[0].RuleExplanation, "(threshold: 3)")
	})

	t.Run("invalid tuning keys fall back to their defaults", func(t *testing.T) {
		store := newMemoryStore("ds")
		b := newEventBuilder("ds")
		// 0, 3m, 6m, 9m
		store.add(b.failures(attackerIP, 4, 3*time.Minute)...)

		partial := func() (config.CorrelationConfig, error) {
			return config.CorrelationConfig{BruteForceThreshold: 4}, fmt.Errorf("%w: bad file", config.ErrTuningFallback)
		}

		incidents, err := newTestEngine(store, WithTuning(partial)).CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		assert.Contains(t, incidents[0].RuleExplanation, "within 10 minutes (threshold: 4)")
	})

	t.Run("tuning is read every run", func(t *testing.T) {
		store := newMemoryStore("ds")
		b := newEventBuilder("ds")
		store.add(b.failures(attackerIP, 3, time.Minute)...)

		threshold := 5
		source := func() (config.CorrelationConfig, error) {
			cfg := config.DefaultCorrelationConfig()
			cfg.BruteForceThreshold = threshold
			return cfg, nil
		}
		engine := newTestEngine(store, WithTuning(source))

		incidents, err := engine.CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		assert.Empty(t, incidents)

		threshold = 3
		incidents, err = engine.CorrelateDataset(ctx, "ds")
		require.NoError(t, err)
		assert.Len(t, incidents, 1)
	})
}
