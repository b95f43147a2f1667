package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) add(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) OnTMHit(lang string)                   { o.add("hit:" + lang) }
func (o *recordingObserver) OnMTCall(lang string, d time.Duration) { o.add("mt:" + lang) }
func (o *recordingObserver) OnQualityReject(lang string)           { o.add("reject:" + lang) }
func (o *recordingObserver) OnManualEdit(lang string)              { o.add("edit:" + lang) }

type panickingObserver struct{}

func (panickingObserver) OnTMHit(string)                 { panic("boom") }
func (panickingObserver) OnMTCall(string, time.Duration) { panic("boom") }
func (panickingObserver) OnQualityReject(string)         { panic("boom") }
func (panickingObserver) OnManualEdit(string)            { panic("boom") }

func TestTelemetry_Counters(t *testing.T) {
	tel := New(nil)
	obs := &recordingObserver{}
	tel.SetObserver(obs)

	tel.TMHit("fr")
	tel.MTCall("fr", 100*time.Millisecond)
	tel.MTCall("de", 300*time.Millisecond)
	tel.QualityReject("de")
	tel.ManualEdit("es")

	snap := tel.Snapshot()
	assert.Equal(t, int64(1), snap.TMHits)
	assert.Equal(t, int64(2), snap.MTCalls)
	assert.Equal(t, 400*time.Millisecond, snap.MTDuration)
	assert.Equal(t, 200*time.Millisecond, snap.AverageMT())
	assert.Equal(t, int64(1), snap.QualityRejects)
	assert.Equal(t, int64(1), snap.ManualEdits)
	assert.Equal(t, []string{"hit:fr", "mt:fr", "mt:de", "reject:de", "edit:es"}, obs.events)
}

func TestTelemetry_SnapshotIsImmutable(t *testing.T) {
	tel := New(nil)
	tel.TMHit("fr")

	snap := tel.Snapshot()
	tel.TMHit("fr")
	tel.TMHit("fr")

	assert.Equal(t, int64(1), snap.TMHits)
	assert.Equal(t, int64(3), tel.Snapshot().TMHits)
	assert.Equal(t, time.Duration(0), snap.AverageMT())
}

func TestTelemetry_SnapshotConsistentUnderLoad(t *testing.T) {
	tel := New(nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				tel.MTCall("fr", time.Millisecond)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		snap := tel.Snapshot()
		require.Equal(t, time.Duration(snap.MTCalls)*time.Millisecond, snap.MTDuration)
		select {
		case <-done:
			assert.Equal(t, int64(4000), tel.Snapshot().MTCalls)
			return
		default:
		}
	}
}

func TestTelemetry_ObserverPanicRecovered(t *testing.T) {
	tel := New(nil)
	tel.SetObserver(panickingObserver{})

	require.NotPanics(t, func() {
		tel.TMHit("fr")
		tel.MTCall("fr", time.Millisecond)
		tel.QualityReject("fr")
		tel.ManualEdit("fr")
	})
	assert.Equal(t, int64(1), tel.Snapshot().TMHits)

	tel.SetObserver(nil)
	require.NotPanics(t, func() { tel.TMHit("fr") })
}

func TestOTelObserver(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	obs, err := NewOTelObserver(provider)
	require.NoError(t, err)

	tel := New(nil)
	tel.SetObserver(obs)
	tel.TMHit("fr")
	tel.TMHit("fr")
	tel.MTCall("de", 250*time.Millisecond)
	tel.QualityReject("de")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	var histCount uint64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		case metricdata.Histogram[float64]:
			for _, dp := range data.DataPoints {
				histCount += dp.Count
			}
		}
	}

	assert.Equal(t, int64(2), sums["autotrad.tm.hits"])
	assert.Equal(t, int64(1), sums["autotrad.mt.calls"])
	assert.Equal(t, int64(1), sums["autotrad.quality.rejects"])
	assert.Equal(t, uint64(1), histCount)
}
