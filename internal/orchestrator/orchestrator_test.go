package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/autotrad/internal/translator"
)

type mockService struct {
	nameVal       string
	translateFunc func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error)
	callCount     atomic.Int32
}

func (m *mockService) Name() string { return m.nameVal }

func (m *mockService) Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	m.callCount.Add(1)
	if m.translateFunc != nil {
		return m.translateFunc(ctx, req)
	}
	return &translator.ServiceResult{ServiceName: m.nameVal, TranslatedText: "mock result"}, nil
}

func reply(name, text string) func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
	return func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
		return &translator.ServiceResult{ServiceName: name, TranslatedText: text}, nil
	}
}

func TestExecute_FirstAnswerWins(t *testing.T) {
	first := &mockService{nameVal: "first", translateFunc: reply("first", "Guardar")}
	second := &mockService{nameVal: "second"}

	o := New([]translator.TranslationService{first, second}, OrchestratorConfig{Timeout: time.Second})
	result := o.Execute(context.Background(), translator.TranslateRequest{Text: "Save", TargetLang: "es"}, nil)

	if result.Accepted == nil || result.Accepted.TranslatedText != "Guardar" {
		t.Fatalf("expected 'Guardar', got %+v", result.Accepted)
	}
	if second.callCount.Load() != 0 {
		t.Errorf("expected second service to be skipped, got %d calls", second.callCount.Load())
	}
	if result.Succeeded != 1 || len(result.Attempts) != 1 {
		t.Errorf("unexpected counters: %+v", result)
	}
}

func TestExecute_FailuresFallThrough(t *testing.T) {
	services := []translator.TranslationService{
		&mockService{nameVal: "error", translateFunc: func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
			return nil, errors.New("network down")
		}},
		&mockService{nameVal: "nil", translateFunc: func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
			return nil, nil
		}},
		&mockService{nameVal: "blank", translateFunc: reply("blank", "   ")},
		&mockService{nameVal: "result-error", translateFunc: func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
			return &translator.ServiceResult{ServiceName: "result-error", TranslatedText: "x", Error: "quota"}, nil
		}},
		&mockService{nameVal: "panic", translateFunc: func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
			panic("boom")
		}},
		&mockService{nameVal: "slow", translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		&mockService{nameVal: "good", translateFunc: reply("good", "Guardar")},
	}

	o := New(services, OrchestratorConfig{Timeout: 20 * time.Millisecond})
	result := o.Execute(context.Background(), translator.TranslateRequest{Text: "Save", TargetLang: "es"}, nil)

	if result.Accepted == nil || result.Accepted.ServiceName != "good" {
		t.Fatalf("expected answer from 'good', got %+v", result.Accepted)
	}
	if result.Failed != 6 {
		t.Errorf("expected 6 failures, got %d", result.Failed)
	}
	if !errors.Is(result.Errors[1], ErrNoAnswer) || !errors.Is(result.Errors[2], ErrNoAnswer) {
		t.Errorf("expected nil and blank results to be ErrNoAnswer, got %v / %v", result.Errors[1], result.Errors[2])
	}
	if !strings.Contains(result.Errors[4].Error(), "panic") {
		t.Errorf("expected panic to be reported, got %v", result.Errors[4])
	}
	if !errors.Is(result.Errors[5], context.DeadlineExceeded) {
		t.Errorf("expected timeout, got %v", result.Errors[5])
	}
}

func TestExecute_RejectionContinues(t *testing.T) {
	bad := &mockService{nameVal: "bad", translateFunc: reply("bad", "Hola")}
	good := &mockService{nameVal: "good", translateFunc: reply("good", "Hola {name}")}

	accept := func(res *translator.ServiceResult) error {
		if !strings.Contains(res.TranslatedText, "{name}") {
			return errors.New("placeholder missing")
		}
		return nil
	}

	o := New([]translator.TranslationService{bad, good}, OrchestratorConfig{})
	result := o.Execute(context.Background(), translator.TranslateRequest{Text: "Hi {name}", TargetLang: "es"}, accept)

	if result.Accepted == nil || result.Accepted.ServiceName != "good" {
		t.Fatalf("expected 'good' to win, got %+v", result.Accepted)
	}
	if result.Rejected != 1 || !result.Attempts[0].Rejected {
		t.Errorf("expected one rejection, got %+v", result.Attempts)
	}
}

func TestExecute_NoAnswer(t *testing.T) {
	o := New([]translator.TranslationService{
		&mockService{nameVal: "blank", translateFunc: reply("blank", "")},
	}, OrchestratorConfig{})

	result := o.Execute(context.Background(), translator.TranslateRequest{Text: "Save", TargetLang: "es"}, nil)
	if result.Accepted != nil {
		t.Errorf("expected no accepted result, got %+v", result.Accepted)
	}

	empty := New(nil, OrchestratorConfig{}).Execute(context.Background(), translator.TranslateRequest{Text: "Save"}, nil)
	if empty.Accepted != nil || len(empty.Attempts) != 0 {
		t.Errorf("expected empty chain to produce nothing, got %+v", empty)
	}
}

func TestExecute_CancelledContextStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &mockService{nameVal: "first", translateFunc: func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
		cancel()
		return nil, errors.New("interrupted")
	}}
	second := &mockService{nameVal: "second"}

	o := New([]translator.TranslationService{first, second}, OrchestratorConfig{})
	result := o.Execute(ctx, translator.TranslateRequest{Text: "Save", TargetLang: "es"}, nil)

	if result.Accepted != nil {
		t.Errorf("expected no answer, got %+v", result.Accepted)
	}
	if second.callCount.Load() != 0 {
		t.Error("expected chain to stop after cancellation")
	}
}

func TestExecuteAll(t *testing.T) {
	services := []translator.TranslationService{
		&mockService{nameVal: "a", translateFunc: reply("a", "Guardar")},
		&mockService{nameVal: "b", translateFunc: func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
			return nil, errors.New("down")
		}},
		&mockService{nameVal: "c", translateFunc: reply("c", "Salvar")},
	}

	o := New(services, OrchestratorConfig{Timeout: time.Second})
	result := o.ExecuteAll(context.Background(), translator.TranslateRequest{Text: "Save", TargetLang: "es"})

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("expected 2 succeeded / 1 failed, got %d / %d", result.Succeeded, result.Failed)
	}
	if result.Results[0].ServiceName != "a" || result.Results[1].ServiceName != "c" {
		t.Errorf("expected results in service order, got %+v", result.Results)
	}
	if result.Attempts[1].Service != "b" || result.Attempts[1].Err == nil {
		t.Errorf("expected failed attempt for b, got %+v", result.Attempts[1])
	}
}

func TestExecuteAll_AttemptCarriesResultOfWrappedService(t *testing.T) {
	stub := &mockService{nameVal: "stub", translateFunc: reply("stub", "Enregistrer")}
	wrapped := translator.NewDetectingService(nil, 0.3, "en", stub)

	o := New([]translator.TranslationService{wrapped}, OrchestratorConfig{Timeout: time.Second})
	result := o.ExecuteAll(context.Background(), translator.TranslateRequest{Text: "Save", TargetLang: "fr"})

	at := result.Attempts[0]
	if at.Service != "detect+stub" {
		t.Errorf("expected attempt named after the chain link, got %q", at.Service)
	}
	if at.Result == nil || at.Result.TranslatedText != "Enregistrer" {
		t.Fatalf("expected the attempt to carry the delegate's answer, got %+v", at.Result)
	}
}

func TestExecute_AttemptResult(t *testing.T) {
	rejected := &mockService{nameVal: "long", translateFunc: reply("long", "Enregistrer les modifications")}
	failed := &mockService{nameVal: "down", translateFunc: func(context.Context, translator.TranslateRequest) (*translator.ServiceResult, error) {
		return nil, errors.New("down")
	}}
	good := &mockService{nameVal: "good", translateFunc: reply("good", "Enregistrer")}

	o := New([]translator.TranslationService{failed, rejected, good}, OrchestratorConfig{})
	result := o.Execute(context.Background(), translator.TranslateRequest{Text: "Save", TargetLang: "fr"},
		func(res *translator.ServiceResult) error {
			if len(res.TranslatedText) > 12 {
				return errors.New("too long")
			}
			return nil
		})

	if len(result.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(result.Attempts))
	}
	if result.Attempts[0].Result != nil {
		t.Errorf("failed attempt should carry no result, got %+v", result.Attempts[0].Result)
	}
	if r := result.Attempts[1].Result; r == nil || !result.Attempts[1].Rejected {
		t.Errorf("rejected attempt should keep its answer, got %+v", result.Attempts[1])
	}
	if result.Attempts[2].Result != result.Accepted {
		t.Error("accepted attempt should point at the accepted result")
	}
}

func TestWarm_IsolatesFailures(t *testing.T) {
	var done atomic.Int32
	var running, peak atomic.Int32

	items := []string{"a", "b", "fail", "panic", "c", "d"}
	err := Warm(context.Background(), items, 2, func(ctx context.Context, item string) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer running.Add(-1)
		time.Sleep(5 * time.Millisecond)

		switch item {
		case "fail":
			return errors.New("provider down")
		case "panic":
			panic("boom")
		}
		done.Add(1)
		return nil
	})

	if err == nil {
		t.Fatal("expected joined error")
	}
	for _, want := range []string{`"fail"`, `"panic"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in error, got %v", want, err)
		}
	}
	if done.Load() != 4 {
		t.Errorf("expected 4 successful items, got %d", done.Load())
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent items, got %d", peak.Load())
	}
}

func TestWarm_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := Warm(ctx, []string{"a", "b"}, 0, func(context.Context, string) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no calls, got %d", calls.Load())
	}
}

func ExampleWarm() {
	err := Warm(context.Background(), []string{"Save"}, 1, func(ctx context.Context, item string) error {
		fmt.Println("warming", item)
		return nil
	})
	fmt.Println(err)
	// Output:
	// warming Save
	// <nil>
}
