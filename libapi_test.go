package sqsreporter

import (
	"context"
	"errors"
	"testing"
)

func TestConfigExports(t *testing.T) {
	if err := ValidateConfig(nil); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}

	env := map[string]string{
		"SQS_QUEUE_URL": "https://sqs.eu-west-1.amazonaws.com/123456789012/runs.fifo",
		"SQS_REGION":    "eu-west-1",
		"SQS_TAGS":      `[{"key":"testId","value":"run-1"}]`,
	}
	conf, err := ResolveConfig(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}, PluginConfig{})
	if err != nil {
		t.Fatalf("unexpected error resolving config: %v", err)
	}
	if id, ok := ResolveTags(conf.Tags).ID(); !ok || id != "run-1" {
		t.Fatalf("expected testId run-1, got %q (%v)", id, ok)
	}
}

func TestReporterExportRejectsMissingConfig(t *testing.T) {
	if _, err := NewReporter(context.Background(), nil, NewNopLogger(), ReporterDependencies{}); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}
}

func TestTagParsingExport(t *testing.T) {
	if _, err := ParseTags(`{"key":"x"}`); !errors.Is(err, ErrMalformedTags) {
		t.Fatalf("expected malformed tags error, got %v", err)
	}
}

func TestEnvelopeExports(t *testing.T) {
	body, err := EncodeEnvelope(NewTranslator(nil).PhaseStarted(Phase{"index": 1}))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded map[string]any
	if err := Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
	if decoded["event"] != string(EventPhaseStarted) {
		t.Fatalf("unexpected event %v", decoded["event"])
	}
}

func TestEmitterExportRequiresPublisher(t *testing.T) {
	if _, err := NewEmitter(nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}
