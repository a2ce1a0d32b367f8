package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/entrycache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingInitializer struct {
	runs        atomic.Int32
	initialized atomic.Bool
}

func (c *countingInitializer) IsDatabaseInitialized(context.Context) bool {
	return c.initialized.Load()
}

func (c *countingInitializer) InitializeDatabase(context.Context) []entrycache.InitResult {
	c.runs.Add(1)
	return []entrycache.InitResult{
		{Category: category.Paises, Before: 10, Requested: 490, Saved: 490},
		{Category: category.Elementos, Before: 500},
	}
}

func TestRunOnce(t *testing.T) {
	refill := &countingInitializer{}
	k := NewStockKeeper(refill)

	results := k.RunOnce(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, 490, results[0].Saved)
	assert.Equal(t, int32(1), refill.runs.Load())
	<-k.Stop().Done()
}

func TestWarmUp(t *testing.T) {
	tests := []struct {
		name        string
		initialized bool
		wantRuns    int32
	}{
		{"empty stock is filled once", false, 1},
		{"full stock is left alone", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refill := &countingInitializer{}
			refill.initialized.Store(tt.initialized)
			k := NewStockKeeper(refill)

			assert.Equal(t, tt.wantRuns == 1, k.WarmUp(context.Background()))
			assert.Equal(t, tt.wantRuns, refill.runs.Load())
			<-k.Stop().Done()
		})
	}
}

func TestScheduledRuns(t *testing.T) {
	refill := &countingInitializer{}
	k := NewStockKeeper(refill, WithSchedule("@every 1s"))
	require.NoError(t, k.Start())
	require.NoError(t, k.Start(), "second start is a no-op")

	assert.Eventually(t, func() bool { return refill.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	select {
	case <-k.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stock keeper did not stop")
	}
}

func TestInvalidSchedule(t *testing.T) {
	k := NewStockKeeper(&countingInitializer{}, WithSchedule("every now and then"))
	require.Error(t, k.Start())
	<-k.Stop().Done()
}
