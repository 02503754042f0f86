package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/sqsreporter/internal/runtime/config"
	dispatchpkg "github.com/drblury/sqsreporter/internal/runtime/dispatch"
	drainpkg "github.com/drblury/sqsreporter/internal/runtime/drain"
	idspkg "github.com/drblury/sqsreporter/internal/runtime/ids"
	"github.com/drblury/sqsreporter/internal/runtime/logging/logtest"
	tagspkg "github.com/drblury/sqsreporter/internal/runtime/tags"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/runs.fifo"

type testSender struct {
	mu     sync.Mutex
	inputs []*amazonsqs.SendMessageInput

	gate chan struct{}
	err  error

	queueLookups []string
}

func (s *testSender) SendMessage(ctx context.Context, in *amazonsqs.SendMessageInput, _ ...func(*amazonsqs.Options)) (*amazonsqs.SendMessageOutput, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()

	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	return &amazonsqs.SendMessageOutput{MessageId: aws.String("id-" + aws.ToString(in.MessageDeduplicationId))}, nil
}

func (s *testSender) GetQueueUrl(_ context.Context, in *amazonsqs.GetQueueUrlInput, _ ...func(*amazonsqs.Options)) (*amazonsqs.GetQueueUrlOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueLookups = append(s.queueLookups, aws.ToString(in.QueueName))
	return &amazonsqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.us-east-1.amazonaws.com/123456789012/" + aws.ToString(in.QueueName))}, nil
}

func (s *testSender) Inputs() []*amazonsqs.SendMessageInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*amazonsqs.SendMessageInput, len(s.inputs))
	copy(out, s.inputs)
	return out
}

func newTestConfig(list ...tagspkg.Tag) *configpkg.Config {
	return &configpkg.Config{
		QueueURL:     testQueueURL,
		Region:       "us-east-1",
		Tags:         list,
		PollInterval: 5 * time.Millisecond,
		SendTimeout:  time.Second,
		MaxBodyBytes: configpkg.DefaultMaxBodyBytes,
	}
}

type settledRecorder struct {
	ch chan dispatchpkg.Result
}

func newSettledRecorder() *settledRecorder {
	return &settledRecorder{ch: make(chan dispatchpkg.Result, 256)}
}

func (s *settledRecorder) record(r dispatchpkg.Result) { s.ch <- r }

func (s *settledRecorder) wait(t *testing.T, n int) []dispatchpkg.Result {
	t.Helper()
	var out []dispatchpkg.Result
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case r := <-s.ch:
			out = append(out, r)
		case <-timeout:
			t.Fatalf("timed out waiting for %d settled sends, got %d", n, len(out))
		}
	}
	return out
}

func newTestReporter(t *testing.T, conf *configpkg.Config, deps ReporterDependencies) (*Reporter, *logtest.Recorder) {
	t.Helper()
	logger := logtest.New()
	r, err := NewReporter(context.Background(), conf, logger, deps)
	require.NoError(t, err)
	return r, logger
}

// replaceIDGenerator rebuilds the reporter's dispatcher and drain controller
// around a custom deduplication id generator.
func replaceIDGenerator(t *testing.T, r *Reporter, sender dispatchpkg.Sender, gen idspkg.Generator) {
	t.Helper()
	d, err := dispatchpkg.New(sender, r.Logger, dispatchpkg.Options{
		QueueURL:           r.Conf.QueueURL,
		Correlation:        r.correlation,
		NewDeduplicationID: gen,
	})
	require.NoError(t, err)
	c, err := drainpkg.New(d, r.Logger, drainpkg.Options{PollInterval: r.Conf.PollInterval})
	require.NoError(t, err)
	r.dispatcher = d
	r.drain = c
}
