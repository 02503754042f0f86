package sqsreporter

import (
	runtimepkg "github.com/drblury/sqsreporter/internal/runtime"
	buspkg "github.com/drblury/sqsreporter/internal/runtime/bus"
	configpkg "github.com/drblury/sqsreporter/internal/runtime/config"
	dispatchpkg "github.com/drblury/sqsreporter/internal/runtime/dispatch"
	envpkg "github.com/drblury/sqsreporter/internal/runtime/envelope"
	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	idspkg "github.com/drblury/sqsreporter/internal/runtime/ids"
	jsoncodec "github.com/drblury/sqsreporter/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/sqsreporter/internal/runtime/logging"
	metricspkg "github.com/drblury/sqsreporter/internal/runtime/metrics"
	tagspkg "github.com/drblury/sqsreporter/internal/runtime/tags"
)

type (
	Config               = configpkg.Config
	PluginConfig         = configpkg.PluginConfig
	EnvLookup            = configpkg.EnvLookup
	Reporter             = runtimepkg.Reporter
	ReporterDependencies = runtimepkg.ReporterDependencies

	Tag         = tagspkg.Tag
	Correlation = tagspkg.Correlation

	Phase             = envpkg.Phase
	Envelope          = envpkg.Envelope
	EventKind         = envpkg.Kind
	MetricsSerializer = envpkg.MetricsSerializer
	SerializerFunc    = envpkg.SerializerFunc

	Sender       = dispatchpkg.Sender
	SendResult   = dispatchpkg.Result
	SendRequest  = dispatchpkg.Request
	MetricsStats = metricspkg.Snapshot

	// Engine event bus
	EngineHooks   = buspkg.Hooks
	Emitter       = buspkg.Emitter
	Binding       = buspkg.Binding
	LogPayload    = buspkg.LogPayload
	DedupIDFormat = idspkg.Format

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError
)

const (
	EventPhaseStarted   = envpkg.KindPhaseStarted
	EventPhaseCompleted = envpkg.KindPhaseCompleted
	EventWorkerStats    = envpkg.KindWorkerStats
	EventDone           = envpkg.KindDone

	DedupIDFormatUUID = idspkg.FormatUUID
	DedupIDFormatULID = idspkg.FormatULID

	// CorrelationKey is the tag whose value becomes the FIFO message group.
	CorrelationKey = tagspkg.CorrelationKey
)

var (
	NewReporter    = runtimepkg.NewReporter
	ResolveConfig  = configpkg.Resolve
	ValidateConfig = configpkg.ValidateConfig
	ParseTags      = tagspkg.Parse
	ResolveTags    = tagspkg.Resolve

	NewTranslator         = envpkg.NewTranslator
	EncodeEnvelope        = envpkg.Encode
	PassthroughSerializer = envpkg.PassthroughSerializer

	NewInProcessBus = buspkg.NewInProcess
	NewEmitter      = buspkg.NewEmitter
	BindHooks       = buspkg.Bind

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopLogger              = loggingpkg.NewNopLogger

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrConfigRequired   = errspkg.ErrConfigRequired
	ErrLoggerRequired   = errspkg.ErrLoggerRequired
	ErrQueueURLRequired = errspkg.ErrQueueURLRequired
	ErrMalformedTags    = errspkg.ErrMalformedTags
	ErrSenderRequired   = errspkg.ErrSenderRequired
	ErrBodyTooLarge     = errspkg.ErrBodyTooLarge
	ErrDrainTimeout     = errspkg.ErrDrainTimeout
)
