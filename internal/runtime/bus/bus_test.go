package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	envpkg "github.com/drblury/sqsreporter/internal/runtime/envelope"
	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	"github.com/drblury/sqsreporter/internal/runtime/logging/logtest"
)

type recordedEvent struct {
	name    string
	payload any
}

type recordingHooks struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingHooks) add(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: name, payload: payload})
}

func (r *recordingHooks) Events() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingHooks) PhaseStarted(_ context.Context, phase any) {
	r.add("phaseStarted", phase)
}

func (r *recordingHooks) PhaseCompleted(_ context.Context, phase any) {
	r.add("phaseCompleted", phase)
}

func (r *recordingHooks) Stats(_ context.Context, raw any) { r.add("stats", raw) }
func (r *recordingHooks) Done(_ context.Context, raw any)  { r.add("done", raw) }

func (r *recordingHooks) Log(opts any, args ...any) {
	r.add("log", LogPayload{Opts: opts, Args: args})
}

func setup(t *testing.T) (*Emitter, *recordingHooks, *logtest.Recorder, message.Publisher, *Binding) {
	t.Helper()
	pubSub := NewInProcess(watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	hooks := &recordingHooks{}
	logger := logtest.New()
	binding, err := Bind(context.Background(), pubSub, hooks, logger)
	require.NoError(t, err)

	emitter, err := NewEmitter(pubSub)
	require.NoError(t, err)
	return emitter, hooks, logger, pubSub, binding
}

func TestEmitterDeliversEventsInOrder(t *testing.T) {
	emitter, hooks, _, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, emitter.EmitPhaseStarted(ctx, envpkg.Phase{"index": 0, "name": "warmup"}))
	require.NoError(t, emitter.EmitStats(ctx, map[string]any{"counters": map[string]any{"vusers.created": 5}}))
	require.NoError(t, emitter.EmitPhaseCompleted(ctx, envpkg.Phase{"index": 0, "name": "warmup"}))
	require.NoError(t, emitter.EmitDone(ctx, map[string]any{"period": 1}))

	events := hooks.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "phaseStarted", events[0].name)
	assert.Equal(t, map[string]any{"index": float64(0), "name": "warmup"}, events[0].payload)
	assert.Equal(t, "stats", events[1].name)
	assert.Equal(t, "phaseCompleted", events[2].name)
	assert.Equal(t, "done", events[3].name)
	assert.Equal(t, map[string]any{"period": float64(1)}, events[3].payload)
}

func TestNonObjectPhaseIsForwarded(t *testing.T) {
	emitter, hooks, logger, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, emitter.EmitPhaseStarted(ctx, "warmup"))
	require.NoError(t, emitter.EmitPhaseCompleted(ctx, []any{1}))

	events := hooks.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "warmup", events[0].payload)
	assert.Equal(t, []any{float64(1)}, events[1].payload)
	assert.Empty(t, logger.ByLevel("error"))
}

func TestLogEventPassthrough(t *testing.T) {
	emitter, hooks, _, _, _ := setup(t)

	require.NoError(t, emitter.EmitLog(context.Background(), map[string]any{"level": "info"}, "worker", "started"))

	events := hooks.Events()
	require.Len(t, events, 1)
	assert.Equal(t, LogPayload{Opts: map[string]any{"level": "info"}, Args: []any{"worker", "started"}}, events[0].payload)
}

func TestUndecodablePayloadIsDropped(t *testing.T) {
	emitter, hooks, logger, pub, _ := setup(t)

	require.NoError(t, pub.Publish(TopicPhaseStarted, message.NewMessage(watermill.NewUUID(), []byte(`[1,2`))))
	require.NoError(t, emitter.EmitDone(context.Background(), nil))

	events := hooks.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "done", events[0].name)

	errs := logger.ByLevel("error")
	require.Len(t, errs, 1)
	assert.Equal(t, TopicPhaseStarted, errs[0].Fields["topic"])
}

func TestBindingDoneAfterClose(t *testing.T) {
	pubSub := NewInProcess(nil)
	binding, err := Bind(context.Background(), pubSub, &recordingHooks{}, logtest.New())
	require.NoError(t, err)

	require.NoError(t, pubSub.Close())
	select {
	case <-binding.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("binding did not finish after subscriber closed")
	}
}

func TestConstructorsValidateArguments(t *testing.T) {
	_, err := NewEmitter(nil)
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)

	_, err = Bind(context.Background(), nil, &recordingHooks{}, logtest.New())
	assert.ErrorIs(t, err, errspkg.ErrSubscriberMissing)

	_, err = Bind(context.Background(), NewInProcess(nil), &recordingHooks{}, nil)
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)
}
