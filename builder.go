package tokenauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/hotelcast/tokenauth/internal/audit"
	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/hotelcast/tokenauth"

// Builder assembles an [Authority]. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  TokenStore

	logger         *zap.Logger
	auditSink      AuditSink
	tracerProvider trace.TracerProvider
	clock          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis makes Build create a [store.Store] on client using Config.Store.
// It is ignored when WithStore is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects a ready TokenStore.
func (b *Builder) WithStore(s TokenStore) *Builder {
	b.store = s
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides time.Now for token stamping and validation.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and wires the Authority.
func (b *Builder) Build() (*Authority, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.auditSink != nil {
		cfg.Audit.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, w := range cfg.Lint() {
		logger.Debug("config lint", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	// -------- TOKEN STORE --------
	tokenStore := b.store
	if tokenStore == nil {
		if b.redis == nil {
			return nil, errors.New("token store or redis client required")
		}
		tokenStore = store.New(b.redis, store.Options{
			KeyPrefix:        cfg.Store.KeyPrefix,
			OperationTimeout: cfg.Store.OperationTimeout,
			Logger:           logger,
		})
	}

	// -------- CODEC --------
	managerCfg := cfg.JWT.managerConfig()
	managerCfg.Clock = b.clock
	codec, err := jwt.NewManager(managerCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	a := &Authority{
		config:  cfg,
		codec:   codec,
		store:   tokenStore,
		logger:  logger.Named("authority"),
		tracer:  tp.Tracer(instrumentationName),
		metrics: NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger.Named("audit"),
		}, b.auditSink),
		now: clock,
	}
	a.initFlowDeps()

	b.built = true

	return a, nil
}
