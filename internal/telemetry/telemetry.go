// Package telemetry counts translation pipeline events and forwards them to
// an optional observer.
package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives each event synchronously. Implementations must be safe
// for concurrent use; a panicking observer is recovered and ignored.
type Observer interface {
	OnTMHit(lang string)
	OnMTCall(lang string, d time.Duration)
	OnQualityReject(lang string)
	OnManualEdit(lang string)
}

// Snapshot is a point-in-time copy of the counters. All fields are read
// under one lock, so MTDuration always belongs to exactly MTCalls calls.
type Snapshot struct {
	TMHits         int64         `json:"tm_hits"`
	MTCalls        int64         `json:"mt_calls"`
	MTDuration     time.Duration `json:"mt_duration"`
	QualityRejects int64         `json:"quality_rejects"`
	ManualEdits    int64         `json:"manual_edits"`
}

type Telemetry struct {
	mu       sync.Mutex
	counters Snapshot

	observer atomic.Pointer[Observer]
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Telemetry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Telemetry{logger: logger}
}

// SetObserver installs obs, replacing any previous one. nil removes it.
func (t *Telemetry) SetObserver(obs Observer) {
	if obs == nil {
		t.observer.Store(nil)
		return
	}
	t.observer.Store(&obs)
}

func (t *Telemetry) notify(event string, fn func(Observer)) {
	p := t.observer.Load()
	if p == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("telemetry observer panicked", "event", event, "panic", r)
		}
	}()
	fn(*p)
}

func (t *Telemetry) TMHit(lang string) {
	t.mu.Lock()
	t.counters.TMHits++
	t.mu.Unlock()
	t.notify("tm_hit", func(o Observer) { o.OnTMHit(lang) })
}

func (t *Telemetry) MTCall(lang string, d time.Duration) {
	t.mu.Lock()
	t.counters.MTCalls++
	t.counters.MTDuration += d
	t.mu.Unlock()
	t.notify("mt_call", func(o Observer) { o.OnMTCall(lang, d) })
}

func (t *Telemetry) QualityReject(lang string) {
	t.mu.Lock()
	t.counters.QualityRejects++
	t.mu.Unlock()
	t.notify("quality_reject", func(o Observer) { o.OnQualityReject(lang) })
}

func (t *Telemetry) ManualEdit(lang string) {
	t.mu.Lock()
	t.counters.ManualEdits++
	t.mu.Unlock()
	t.notify("manual_edit", func(o Observer) { o.OnManualEdit(lang) })
}

func (t *Telemetry) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// AverageMT is the mean accepted machine translation latency.
func (s Snapshot) AverageMT() time.Duration {
	if s.MTCalls == 0 {
		return 0
	}
	return s.MTDuration / time.Duration(s.MTCalls)
}
