// Package envelope converts engine events into the canonical message body
// sent to the queue:
//
//	{"event": "phaseStarted" | "phaseCompleted" | "workerStats" | "done",
//	 "phase": <phase descriptor>, "stats": <serialized metrics>}
//
// Translation never inspects payload shape. Whatever the engine and the
// metrics serializer produce is carried through, absent fields included.
package envelope

import (
	"fmt"

	"github.com/drblury/sqsreporter/internal/runtime/jsoncodec"
)

// Kind discriminates envelope variants.
type Kind string

const (
	KindPhaseStarted   Kind = "phaseStarted"
	KindPhaseCompleted Kind = "phaseCompleted"
	KindWorkerStats    Kind = "workerStats"
	KindDone           Kind = "done"
)

// Phase is the usual shape of the engine's phase descriptor, e.g.
// {"index": 1, "name": "warmup"}. Translators accept any descriptor.
type Phase map[string]any

// Envelope is one reportable event prior to encoding. Phase and Stats are
// left out only when absent; an empty descriptor is still carried.
type Envelope struct {
	Event Kind `json:"event"`
	Phase any  `json:"phase,omitempty"`
	Stats any  `json:"stats,omitempty"`
}

// MetricsSerializer turns the engine's raw stats object into its wire form.
type MetricsSerializer interface {
	SerializeMetrics(raw any) any
}

// SerializerFunc adapts a plain function to MetricsSerializer.
type SerializerFunc func(raw any) any

func (f SerializerFunc) SerializeMetrics(raw any) any { return f(raw) }

// PassthroughSerializer forwards raw stats untouched. It is the default when
// the host engine already emits serialized metrics.
var PassthroughSerializer MetricsSerializer = SerializerFunc(func(raw any) any { return raw })

// Translator builds envelopes for each supported engine event.
type Translator struct {
	serializer MetricsSerializer
}

// NewTranslator returns a Translator. A nil serializer falls back to
// PassthroughSerializer.
func NewTranslator(serializer MetricsSerializer) *Translator {
	if serializer == nil {
		serializer = PassthroughSerializer
	}
	return &Translator{serializer: serializer}
}

func (t *Translator) PhaseStarted(phase any) Envelope {
	return Envelope{Event: KindPhaseStarted, Phase: descriptor(phase)}
}

func (t *Translator) PhaseCompleted(phase any) Envelope {
	return Envelope{Event: KindPhaseCompleted, Phase: descriptor(phase)}
}

// descriptor maps a nil Phase to an absent descriptor.
func descriptor(phase any) any {
	if p, ok := phase.(Phase); ok && p == nil {
		return nil
	}
	return phase
}

func (t *Translator) WorkerStats(raw any) Envelope {
	return Envelope{Event: KindWorkerStats, Stats: t.serializer.SerializeMetrics(raw)}
}

func (t *Translator) Done(raw any) Envelope {
	return Envelope{Event: KindDone, Stats: t.serializer.SerializeMetrics(raw)}
}

// Encode renders the envelope as its JSON message body.
func Encode(env Envelope) ([]byte, error) {
	body, err := jsoncodec.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.Event, err)
	}
	return body, nil
}
