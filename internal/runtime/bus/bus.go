// Package bus models the load-testing engine's event bus as an in-process
// Watermill pub/sub. The engine side publishes through Emitter. Bind
// subscribes to every topic and forwards decoded payloads to the reporter
// hooks.
package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	idspkg "github.com/drblury/sqsreporter/internal/runtime/ids"
	"github.com/drblury/sqsreporter/internal/runtime/jsoncodec"
)

// Engine event names, used verbatim as topics.
const (
	TopicPhaseStarted   = "phaseStarted"
	TopicPhaseCompleted = "phaseCompleted"
	TopicStats          = "stats"
	TopicDone           = "done"
	TopicLog            = "log"
)

// Topics lists every topic Bind subscribes to.
var Topics = []string{TopicPhaseStarted, TopicPhaseCompleted, TopicStats, TopicDone, TopicLog}

// Hooks receives engine events. Implementations must not block for long
// and must not panic.
type Hooks interface {
	PhaseStarted(ctx context.Context, phase any)
	PhaseCompleted(ctx context.Context, phase any)
	Stats(ctx context.Context, raw any)
	Done(ctx context.Context, raw any)
	Log(opts any, args ...any)
}

// LogPayload is the body of a log event.
type LogPayload struct {
	Opts any   `json:"opts"`
	Args []any `json:"args"`
}

// GoChannelFactory allows overriding the in-process pub/sub for testing.
var GoChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

// NewInProcess returns a gochannel pub/sub whose Publish blocks until the
// subscriber acks. A single emitting goroutine therefore sees its events
// handled in emission order, across topics.
func NewInProcess(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return GoChannelFactory(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

// Emitter publishes engine events onto the bus.
type Emitter struct {
	publisher message.Publisher
}

// NewEmitter wraps publisher.
func NewEmitter(publisher message.Publisher) (*Emitter, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	return &Emitter{publisher: publisher}, nil
}

func (e *Emitter) EmitPhaseStarted(ctx context.Context, phase any) error {
	return e.Emit(ctx, TopicPhaseStarted, phase)
}

func (e *Emitter) EmitPhaseCompleted(ctx context.Context, phase any) error {
	return e.Emit(ctx, TopicPhaseCompleted, phase)
}

func (e *Emitter) EmitStats(ctx context.Context, raw any) error {
	return e.Emit(ctx, TopicStats, raw)
}

func (e *Emitter) EmitDone(ctx context.Context, raw any) error {
	return e.Emit(ctx, TopicDone, raw)
}

func (e *Emitter) EmitLog(ctx context.Context, opts any, args ...any) error {
	return e.Emit(ctx, TopicLog, LogPayload{Opts: opts, Args: args})
}

// Emit publishes payload as JSON on topic.
func (e *Emitter) Emit(ctx context.Context, topic string, payload any) error {
	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	msg := message.NewMessage(idspkg.CreateULID(), body)
	if ctx != nil {
		msg.SetContext(ctx)
	}
	return e.publisher.Publish(topic, msg)
}
