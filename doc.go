// Package sqsreporter relays the lifecycle and metrics events of a
// load-testing engine to an AWS SQS FIFO queue.
//
// Each phaseStarted, phaseCompleted, stats and done event becomes one JSON
// message of the form {"event": ..., "phase": ..., "stats": ...}. Every
// message carries the run's tags as String message attributes, the testId
// tag as its FIFO message group and a fresh deduplication id. Sends are
// fire-and-forget: failures are logged and never retried.
//
// A minimal setup resolves a Config, creates a Reporter and either calls the
// hook methods directly or attaches the reporter to an engine event bus:
//
//	conf, err := sqsreporter.ResolveConfig(os.LookupEnv, sqsreporter.PluginConfig{})
//	if err != nil { ... }
//	r, err := sqsreporter.NewReporter(ctx, conf, sqsreporter.NewSlogServiceLogger(slog.Default()), sqsreporter.ReporterDependencies{})
//	if err != nil { ... }
//	r.PhaseStarted(ctx, sqsreporter.Phase{"index": 0, "name": "warmup"})
//	r.Cleanup(func(err error) { ... })
//
// # Configuration
//
// SQS_QUEUE_URL, SQS_REGION and SQS_TAGS (a JSON list of {"key", "value"}
// objects) take precedence over the plugin section of the test script.
// SQS_ENDPOINT points the client at LocalStack.
//
// # Shutdown
//
// The reporter counts sends that have not settled. Cleanup polls that
// counter (every 200ms by default) and calls back once it reaches zero, so
// the host can exit without dropping in-flight messages.
package sqsreporter
