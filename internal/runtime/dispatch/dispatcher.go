// Package dispatch submits encoded envelopes to the queue backend and keeps
// count of sends whose outcome is still unknown.
//
// Submit never blocks on the network. It bumps the outstanding counter,
// hands the request to a goroutine and returns. The goroutine decrements the
// counter exactly once when the send settles, whether it succeeded or not.
// Failures are logged and counted, never retried and never returned to the
// caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	envpkg "github.com/drblury/sqsreporter/internal/runtime/envelope"
	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	idspkg "github.com/drblury/sqsreporter/internal/runtime/ids"
	loggingpkg "github.com/drblury/sqsreporter/internal/runtime/logging"
	metricspkg "github.com/drblury/sqsreporter/internal/runtime/metrics"
	tagspkg "github.com/drblury/sqsreporter/internal/runtime/tags"
)

const tracerName = "github.com/drblury/sqsreporter/dispatch"

// Sender is the slice of the SQS client the dispatcher needs.
type Sender interface {
	SendMessage(ctx context.Context, params *amazonsqs.SendMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.SendMessageOutput, error)
}

// Options configures a Dispatcher.
type Options struct {
	QueueURL    string
	Correlation tagspkg.Correlation

	// NewDeduplicationID defaults to ids.NewUUID.
	NewDeduplicationID idspkg.Generator
	// SendTimeout bounds each SendMessage call. Zero means no bound.
	SendTimeout time.Duration
	// MaxBodyBytes rejects larger bodies without calling the backend.
	// Zero disables the check.
	MaxBodyBytes int

	Metrics *metricspkg.DispatchMetrics
	Tracer  trace.Tracer

	// OnSettled, when set, runs after each send settles and after the
	// outstanding counter has been decremented.
	OnSettled func(Result)
}

// Request is the per-envelope submission. It is owned by the in-flight send.
type Request struct {
	Event           envpkg.Kind
	Body            []byte
	QueueURL        string
	Attributes      map[string]sqstypes.MessageAttributeValue
	DeduplicationID string
	// GroupID is nil when the run has no testId tag.
	GroupID *string
}

// Input renders the request as an SQS SendMessage call.
func (r Request) Input() *amazonsqs.SendMessageInput {
	return &amazonsqs.SendMessageInput{
		QueueUrl:               aws.String(r.QueueURL),
		MessageBody:            aws.String(string(r.Body)),
		MessageAttributes:      r.Attributes,
		MessageDeduplicationId: aws.String(r.DeduplicationID),
		MessageGroupId:         r.GroupID,
	}
}

// Result describes how a request settled.
type Result struct {
	Request   Request
	MessageID string
	Err       error
	Took      time.Duration
}

// Dispatcher sends envelopes to the queue and tracks outstanding sends.
type Dispatcher struct {
	sender Sender
	logger loggingpkg.ServiceLogger
	opts   Options

	attributes map[string]sqstypes.MessageAttributeValue

	outstanding atomic.Int64
}

// New builds a Dispatcher. The sender and logger are required.
func New(sender Sender, logger loggingpkg.ServiceLogger, opts Options) (*Dispatcher, error) {
	if sender == nil {
		return nil, errspkg.ErrSenderRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if opts.QueueURL == "" {
		return nil, errspkg.ErrQueueURLRequired
	}
	if opts.NewDeduplicationID == nil {
		opts.NewDeduplicationID = idspkg.NewUUID
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Dispatcher{
		sender:     sender,
		logger:     logger,
		opts:       opts,
		attributes: toMessageAttributes(opts.Correlation.Attributes()),
	}, nil
}

func toMessageAttributes(attrs map[string]tagspkg.Attribute) map[string]sqstypes.MessageAttributeValue {
	out := make(map[string]sqstypes.MessageAttributeValue, len(attrs))
	for key, attr := range attrs {
		out[key] = sqstypes.MessageAttributeValue{
			DataType:    aws.String(attr.DataType),
			StringValue: aws.String(attr.StringValue),
		}
	}
	return out
}

// Outstanding reports how many submissions have not yet settled.
func (d *Dispatcher) Outstanding() int64 {
	return d.outstanding.Load()
}

// Submit sends body to the queue in the background. The context only
// carries values such as the active span. Cancelling it does not abort
// the send.
func (d *Dispatcher) Submit(ctx context.Context, event envpkg.Kind, body []byte) {
	if ctx == nil {
		ctx = context.Background()
	}
	// Build the request first: a panicking id generator must not leave
	// the counter raised.
	req := Request{
		Event:           event,
		Body:            body,
		QueueURL:        d.opts.QueueURL,
		Attributes:      d.attributes,
		DeduplicationID: d.opts.NewDeduplicationID(),
		GroupID:         d.opts.Correlation.GroupID(),
	}

	d.outstanding.Add(1)
	d.opts.Metrics.RecordSubmitted(string(event))

	if d.opts.MaxBodyBytes > 0 && len(body) > d.opts.MaxBodyBytes {
		err := fmt.Errorf("%w: %d bytes, limit %d", errspkg.ErrBodyTooLarge, len(body), d.opts.MaxBodyBytes)
		d.settle(Result{Request: req, Err: err})
		return
	}

	go d.send(context.WithoutCancel(ctx), req)
}

func (d *Dispatcher) send(ctx context.Context, req Request) {
	started := time.Now()
	result := Result{Request: req}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("send panicked: %v", r)
		}
		result.Took = time.Since(started)
		d.settle(result)
	}()

	ctx, span := d.opts.Tracer.Start(ctx, "sqs.SendMessage",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "aws_sqs"),
			attribute.String("messaging.destination.name", req.QueueURL),
			attribute.String("sqsreporter.event", string(req.Event)),
			attribute.String("messaging.message.deduplication_id", req.DeduplicationID),
		),
	)
	defer span.End()

	if d.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.SendTimeout)
		defer cancel()
	}

	out, err := d.sender.SendMessage(ctx, req.Input())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result.Err = err
		return
	}
	if out != nil {
		result.MessageID = aws.ToString(out.MessageId)
		span.SetAttributes(attribute.String("messaging.message.id", result.MessageID))
	}
}

func (d *Dispatcher) settle(result Result) {
	fields := loggingpkg.LogFields{
		"event":            string(result.Request.Event),
		"deduplication_id": result.Request.DeduplicationID,
		"queue_url":        result.Request.QueueURL,
	}
	if result.Request.GroupID != nil {
		fields["group_id"] = *result.Request.GroupID
	}

	reason := ""
	if result.Err != nil {
		reason = failureReason(result.Err)
		fields["reason"] = reason
		d.logger.Error("Failed to send message to queue", result.Err, fields)
	} else {
		fields["message_id"] = result.MessageID
		d.logger.Debug("Message sent to queue", fields)
	}

	d.opts.Metrics.RecordSettled(string(result.Request.Event), reason, result.Took)
	d.outstanding.Add(-1)

	if d.opts.OnSettled != nil {
		d.opts.OnSettled(result)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errspkg.ErrBodyTooLarge):
		return metricspkg.ReasonOversize
	case errors.Is(err, context.DeadlineExceeded):
		return metricspkg.ReasonTimeout
	default:
		return metricspkg.ReasonBackend
	}
}
