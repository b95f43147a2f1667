package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/valpere/autotrad/internal/telemetry"

// OTelObserver records pipeline events as OpenTelemetry instruments, with
// the target language as the "lang" attribute.
type OTelObserver struct {
	tmHits     metric.Int64Counter
	mtCalls    metric.Int64Counter
	mtDuration metric.Float64Histogram
	rejects    metric.Int64Counter
	edits      metric.Int64Counter
}

// NewOTelObserver creates the instruments on a meter from provider.
func NewOTelObserver(provider metric.MeterProvider) (*OTelObserver, error) {
	meter := provider.Meter(meterName)

	tmHits, err := meter.Int64Counter("autotrad.tm.hits",
		metric.WithDescription("Translation memory hits"))
	if err != nil {
		return nil, fmt.Errorf("creating tm hits counter: %w", err)
	}
	mtCalls, err := meter.Int64Counter("autotrad.mt.calls",
		metric.WithDescription("Accepted machine translations"))
	if err != nil {
		return nil, fmt.Errorf("creating mt calls counter: %w", err)
	}
	mtDuration, err := meter.Float64Histogram("autotrad.mt.duration",
		metric.WithDescription("Provider chain latency for accepted translations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating mt duration histogram: %w", err)
	}
	rejects, err := meter.Int64Counter("autotrad.quality.rejects",
		metric.WithDescription("Candidates rejected by the quality gate"))
	if err != nil {
		return nil, fmt.Errorf("creating rejects counter: %w", err)
	}
	edits, err := meter.Int64Counter("autotrad.manual.edits",
		metric.WithDescription("Accepted manual translation edits"))
	if err != nil {
		return nil, fmt.Errorf("creating edits counter: %w", err)
	}

	return &OTelObserver{
		tmHits:     tmHits,
		mtCalls:    mtCalls,
		mtDuration: mtDuration,
		rejects:    rejects,
		edits:      edits,
	}, nil
}

func langAttr(lang string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("lang", lang))
}

func (o *OTelObserver) OnTMHit(lang string) {
	o.tmHits.Add(context.Background(), 1, langAttr(lang))
}

func (o *OTelObserver) OnMTCall(lang string, d time.Duration) {
	o.mtCalls.Add(context.Background(), 1, langAttr(lang))
	o.mtDuration.Record(context.Background(), d.Seconds(), langAttr(lang))
}

func (o *OTelObserver) OnQualityReject(lang string) {
	o.rejects.Add(context.Background(), 1, langAttr(lang))
}

func (o *OTelObserver) OnManualEdit(lang string) {
	o.edits.Add(context.Background(), 1, langAttr(lang))
}
