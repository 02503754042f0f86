package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	buspkg "github.com/drblury/sqsreporter/internal/runtime/bus"
	configpkg "github.com/drblury/sqsreporter/internal/runtime/config"
	dispatchpkg "github.com/drblury/sqsreporter/internal/runtime/dispatch"
	drainpkg "github.com/drblury/sqsreporter/internal/runtime/drain"
	envpkg "github.com/drblury/sqsreporter/internal/runtime/envelope"
	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	idspkg "github.com/drblury/sqsreporter/internal/runtime/ids"
	loggingpkg "github.com/drblury/sqsreporter/internal/runtime/logging"
	metricspkg "github.com/drblury/sqsreporter/internal/runtime/metrics"
	tagspkg "github.com/drblury/sqsreporter/internal/runtime/tags"
	sqstransport "github.com/drblury/sqsreporter/transport/sqs"
)

// NewSQSClient builds the default queue client. Tests replace it.
var NewSQSClient = sqstransport.NewClient

// ReporterDependencies holds the optional collaborators of a Reporter.
// Leave fields nil to use the defaults.
type ReporterDependencies struct {
	// Sender replaces the SQS client built from the config.
	Sender dispatchpkg.Sender
	// Serializer converts raw engine stats. Defaults to passthrough.
	Serializer envpkg.MetricsSerializer
	// MetricsRegisterer receives the dispatch collectors. Defaults to the
	// Prometheus default registry.
	MetricsRegisterer prometheus.Registerer
	Tracer            trace.Tracer
	// OnSettled observes every settled send.
	OnSettled func(dispatchpkg.Result)
}

// Reporter is one plugin instance: it turns engine events into queue
// messages and holds shutdown until they have all settled.
type Reporter struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	correlation tagspkg.Correlation
	translator  *envpkg.Translator
	dispatcher  *dispatchpkg.Dispatcher
	drain       *drainpkg.Controller
	metrics     *metricspkg.DispatchMetrics

	metricsServer   *http.Server
	metricsServerMu sync.Mutex
}

// NewReporter wires a Reporter from a resolved configuration. Any error is
// an initialisation failure and the host should not proceed.
func NewReporter(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ReporterDependencies) (*Reporter, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	newDedupID, err := idspkg.ForFormat(conf.DeduplicationIDFormat)
	if err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	correlation := tagspkg.Resolve(conf.Tags)
	log.Info("Creating SQS reporter", loggingpkg.LogFields{"config": conf})

	queueURL, sender, err := resolveSender(ctx, conf, log, deps.Sender)
	if err != nil {
		return nil, err
	}

	var metrics *metricspkg.DispatchMetrics
	if conf.MetricsEnabled {
		metrics = metricspkg.NewDispatchMetrics(deps.MetricsRegisterer)
		if err := metrics.Register(); err != nil {
			return nil, fmt.Errorf("register dispatch metrics: %w", err)
		}
	}

	dispatcher, err := dispatchpkg.New(sender, log, dispatchpkg.Options{
		QueueURL:           queueURL,
		Correlation:        correlation,
		NewDeduplicationID: newDedupID,
		SendTimeout:        conf.SendTimeout,
		MaxBodyBytes:       conf.MaxBodyBytes,
		Metrics:            metrics,
		Tracer:             deps.Tracer,
		OnSettled:          deps.OnSettled,
	})
	if err != nil {
		return nil, err
	}

	drain, err := drainpkg.New(dispatcher, log, drainpkg.Options{
		PollInterval: conf.PollInterval,
		Timeout:      conf.DrainTimeout,
	})
	if err != nil {
		return nil, err
	}

	r := &Reporter{
		Conf:        conf,
		Logger:      log,
		correlation: correlation,
		translator:  envpkg.NewTranslator(deps.Serializer),
		dispatcher:  dispatcher,
		drain:       drain,
		metrics:     metrics,
	}
	if conf.MetricsEnabled && conf.MetricsPort > 0 {
		r.startMetricsServer()
	}

	fields := loggingpkg.LogFields{
		"attributes": correlation.Len(),
		"queue_url":  queueURL,
	}
	if id, ok := correlation.ID(); ok {
		fields["test_id"] = id
	}
	log.Info("SQS reporter ready", fields)
	return r, nil
}

func resolveSender(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, sender dispatchpkg.Sender) (string, dispatchpkg.Sender, error) {
	wmLogger := loggingpkg.NewWatermillAdapter(log)
	if sender == nil {
		client, err := NewSQSClient(ctx, conf, wmLogger)
		if err != nil {
			return "", nil, fmt.Errorf("create sqs client: %w", err)
		}
		sender = client
	}

	queueURL := conf.QueueURL
	if !sqstransport.IsQueueURL(queueURL) {
		client, ok := sender.(sqstransport.Client)
		if !ok {
			return "", nil, fmt.Errorf("queue %q is not a URL and the sender cannot resolve names", queueURL)
		}
		resolved, err := sqstransport.ResolveQueueURL(ctx, client, conf, queueURL, wmLogger)
		if err != nil {
			return "", nil, err
		}
		queueURL = resolved
	}
	return queueURL, sender, nil
}

// PhaseStarted reports the start of a load phase.
func (r *Reporter) PhaseStarted(ctx context.Context, phase any) {
	r.submit(ctx, func() envpkg.Envelope { return r.translator.PhaseStarted(phase) })
}

// PhaseCompleted reports the end of a load phase.
func (r *Reporter) PhaseCompleted(ctx context.Context, phase any) {
	r.submit(ctx, func() envpkg.Envelope { return r.translator.PhaseCompleted(phase) })
}

// Stats reports an intermediate worker metrics window.
func (r *Reporter) Stats(ctx context.Context, raw any) {
	r.submit(ctx, func() envpkg.Envelope { return r.translator.WorkerStats(raw) })
}

// Done reports the final metrics of the run.
func (r *Reporter) Done(ctx context.Context, raw any) {
	r.submit(ctx, func() envpkg.Envelope { return r.translator.Done(raw) })
}

// Log mirrors the engine's global log event at debug level.
func (r *Reporter) Log(opts any, args ...any) {
	r.Logger.Debug("global log", loggingpkg.LogFields{"opts": opts, "args": args})
}

func (r *Reporter) submit(ctx context.Context, build func() envpkg.Envelope) {
	defer func() {
		if p := recover(); p != nil {
			r.Logger.Error("Failed to translate engine event", fmt.Errorf("panic: %v", p), nil)
		}
	}()

	env := build()
	body, err := envpkg.Encode(env)
	if err != nil {
		r.Logger.Error("Failed to encode message body", err, loggingpkg.LogFields{"event": string(env.Event)})
		return
	}
	r.Logger.Debug("Prepared message body", loggingpkg.LogFields{"event": string(env.Event), "body": string(body)})
	r.dispatcher.Submit(ctx, env.Event, body)
}

// Outstanding reports sends that have not settled yet.
func (r *Reporter) Outstanding() int64 {
	return r.dispatcher.Outstanding()
}

// Snapshot returns dispatch counts. It is empty when metrics are disabled.
func (r *Reporter) Snapshot() metricspkg.Snapshot {
	return r.metrics.GetSnapshot()
}

// CorrelationID returns the run's testId tag, if any.
func (r *Reporter) CorrelationID() (string, bool) {
	return r.correlation.ID()
}

// AwaitDrain blocks until every submitted message has settled.
func (r *Reporter) AwaitDrain(ctx context.Context) error {
	return r.drain.AwaitDrain(ctx)
}

// Cleanup is the shutdown hook: done is called once the outstanding count
// is zero (or the configured drain timeout expired). The caller is never
// blocked.
func (r *Reporter) Cleanup(done func(error)) {
	r.drain.Cleanup(func(err error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := r.stopMetricsServer(shutdownCtx); closeErr != nil {
			r.Logger.Error("Failed to stop metrics server", closeErr, nil)
		}
		if done != nil {
			done(err)
		}
	})
}

// Attach subscribes the reporter to an engine event bus.
func (r *Reporter) Attach(ctx context.Context, subscriber message.Subscriber) (*buspkg.Binding, error) {
	return buspkg.Bind(ctx, subscriber, r, r.Logger)
}

// MetricsHandler exposes the dispatch metrics for hosts that run their own
// HTTP server.
func (r *Reporter) MetricsHandler() http.Handler {
	return r.metrics.Handler()
}

func (r *Reporter) startMetricsServer() {
	r.metricsServerMu.Lock()
	defer r.metricsServerMu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	addr := fmt.Sprintf(":%d", r.Conf.MetricsPort)
	r.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	r.Logger.Info("Starting metrics server", loggingpkg.LogFields{"address": addr})
	go func(srv *http.Server) {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error("Failed to start metrics server", err, loggingpkg.LogFields{"address": srv.Addr})
		}
	}(r.metricsServer)
}

func (r *Reporter) stopMetricsServer(ctx context.Context) error {
	r.metricsServerMu.Lock()
	defer r.metricsServerMu.Unlock()

	if r.metricsServer == nil {
		return nil
	}
	err := r.metricsServer.Shutdown(ctx)
	r.metricsServer = nil
	return err
}
