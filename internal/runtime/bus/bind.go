package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	"github.com/drblury/sqsreporter/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/sqsreporter/internal/runtime/logging"
)

// Binding tracks the subscription loops started by Bind.
type Binding struct {
	wg   sync.WaitGroup
	done chan struct{}
}

// Done is closed once every topic loop has exited, which happens when the
// Bind context ends or the subscriber is closed.
func (b *Binding) Done() <-chan struct{} {
	return b.done
}

// Bind subscribes to every engine topic and forwards events to hooks.
// Messages are always acked: a payload that cannot be decoded is logged and
// dropped so one bad event never stalls the stream.
func Bind(ctx context.Context, subscriber message.Subscriber, hooks Hooks, logger loggingpkg.ServiceLogger) (*Binding, error) {
	if subscriber == nil {
		return nil, errspkg.ErrSubscriberMissing
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	b := &Binding{done: make(chan struct{})}
	for _, topic := range Topics {
		messages, err := subscriber.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		b.wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer b.wg.Done()
			for msg := range messages {
				if err := dispatchEvent(msg.Context(), topic, msg.Payload, hooks); err != nil {
					logger.Error("Dropping undecodable engine event", err, loggingpkg.LogFields{
						"topic":      topic,
						"message_id": msg.UUID,
					})
				}
				msg.Ack()
			}
		}(topic, messages)
	}

	go func() {
		b.wg.Wait()
		close(b.done)
	}()
	return b, nil
}

func dispatchEvent(ctx context.Context, topic string, payload []byte, hooks Hooks) error {
	switch topic {
	case TopicPhaseStarted, TopicPhaseCompleted:
		var phase any
		if err := jsoncodec.Unmarshal(payload, &phase); err != nil {
			return err
		}
		if topic == TopicPhaseStarted {
			hooks.PhaseStarted(ctx, phase)
		} else {
			hooks.PhaseCompleted(ctx, phase)
		}
	case TopicStats, TopicDone:
		var raw any
		if err := jsoncodec.Unmarshal(payload, &raw); err != nil {
			return err
		}
		if topic == TopicStats {
			hooks.Stats(ctx, raw)
		} else {
			hooks.Done(ctx, raw)
		}
	case TopicLog:
		var entry LogPayload
		if err := jsoncodec.Unmarshal(payload, &entry); err != nil {
			return err
		}
		hooks.Log(entry.Opts, entry.Args...)
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}
	return nil
}
