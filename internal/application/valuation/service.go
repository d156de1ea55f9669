// Package valuation orchestrates the calculation engine for the HTTP API,
// the web screens and the CLI. It owns per-session form state, reads the
// runtime engine constants, caches results and records metrics and spans
// for every calculation.
package valuation

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/database/redis"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/prometheus"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/tracing"
)

const defaultCacheTTL = 10 * time.Minute

// Service is the application boundary used by every interface.
type Service interface {
	NPV(ctx context.Context, in domain.ValuationInputs) (*domain.NPVResult, error)
	Deal(ctx context.Context, req *DealRequest) (*DealResponse, error)
	Strategy(ctx context.Context, req *StrategyRequest) (*domain.StrategicDecision, error)
	LaunchPrice(ctx context.Context, req *LaunchPriceRequest) (*LaunchPriceResponse, error)
	Sensitivity(ctx context.Context, req *SensitivityRequest) (*domain.SensitivityResult, error)
	Defaults() *Defaults

	StartSession(ctx context.Context) (*session.Session, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)
	UpdateForm(ctx context.Context, id string, values url.Values) (*FormUpdate, error)
	ResetSession(ctx context.Context, id string) (*session.Session, error)
	EndSession(ctx context.Context, id string) error

	// Dashboard evaluates all four screens for a stored session.
	Dashboard(ctx context.Context, id string) (*Dashboard, error)
	// Evaluate computes all four screens for a form without touching the store.
	Evaluate(ctx context.Context, form session.Form) *Dashboard

	Ready(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// Requests and responses
// ---------------------------------------------------------------------------

type DealRequest struct {
	Inputs          domain.ValuationInputs `json:"inputs"`
	Terms           domain.DealTerms       `json:"terms"`
	DesiredSharePct *float64               `json:"desired_share_pct,omitempty"`
}

type DealResponse struct {
	Deal              domain.DealValuation `json:"deal"`
	DesiredSharePct   *float64             `json:"desired_share_pct,omitempty"`
	RequiredDealValue *float64             `json:"required_deal_value,omitempty"`
}

type StrategyRequest struct {
	Inputs        domain.ValuationInputs `json:"inputs"`
	Stage         domain.Phase           `json:"stage"`
	OutLicensePct float64                `json:"out_license_pct"`
}

// Funnel derives penetration from patient counts instead of taking it as
// given.
type Funnel struct {
	TreatedPatients   int64   `json:"treated_patients"`
	DiagnosedPatients int64   `json:"diagnosed_patients"`
	AdoptionRate      float64 `json:"adoption_rate"`
}

type LaunchPriceRequest struct {
	Inputs domain.LaunchPriceInputs `json:"inputs"`
	Funnel *Funnel                  `json:"funnel,omitempty"`
}

type LaunchPriceResponse struct {
	Penetration *domain.PenetrationEstimate `json:"penetration,omitempty"`
	Result      domain.LaunchPriceResult    `json:"result"`
}

type SensitivityRequest struct {
	Inputs domain.ValuationInputs `json:"inputs"`
	Phase  domain.Phase           `json:"phase"`
	Shock  float64                `json:"shock,omitempty"`
}

// Defaults is the current set of default inputs and engine constants.
type Defaults struct {
	Inputs        domain.ValuationInputs   `json:"inputs"`
	LaunchPrice   domain.LaunchPriceInputs `json:"launch_price"`
	EntrySchedule domain.EntrySchedule     `json:"entry_schedule"`
	Elasticity    float64                  `json:"elasticity"`
	Shock         float64                  `json:"sensitivity_shock"`
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type serviceImpl struct {
	store    session.Store
	settings *SettingsHolder
	cache    redis.Cache
	cacheTTL time.Duration
	metrics  *prometheus.AppMetrics
	tracer   trace.Tracer
	logger   logging.Logger
	now      func() time.Time
}

type Option func(*serviceImpl)

// WithCache enables the result cache. A nil cache leaves it disabled.
func WithCache(c redis.Cache, ttl time.Duration) Option {
	return func(s *serviceImpl) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *serviceImpl) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *serviceImpl) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewService wires the service. settings nil uses DefaultSettings.
func NewService(store session.Store, settings *SettingsHolder, log logging.Logger, opts ...Option) Service {
	if settings == nil {
		settings, _ = NewSettingsHolder(DefaultSettings())
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &serviceImpl{
		store:    store,
		settings: settings,
		cacheTTL: defaultCacheTTL,
		tracer:   noop.NewTracerProvider().Tracer(""),
		logger:   log.Named("valuation"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) NPV(ctx context.Context, in domain.ValuationInputs) (*domain.NPVResult, error) {
	sched := s.settings.Load().EntrySchedule
	res, err := calculate(ctx, s, prometheus.KindNPV, cacheKey{Inputs: in, Schedule: sched},
		func() (domain.NPVResult, error) { return domain.ComputeNPV(in, sched) },
		attribute.Int("order_of_entry", in.OrderOfEntry),
		attribute.Float64("launch_value", in.LaunchValue))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *serviceImpl) Deal(ctx context.Context, req *DealRequest) (*DealResponse, error) {
	npv, err := s.NPV(ctx, req.Inputs)
	if err != nil {
		return nil, err
	}
	sched := s.settings.Load().EntrySchedule
	key := cacheKey{Inputs: req.Inputs, Schedule: sched, Extra: req}
	return calculatePtr(ctx, s, prometheus.KindDeal, key, func() (DealResponse, error) {
		dv, err := domain.ComputeDealValue(req.Terms, *npv)
		if err != nil {
			return DealResponse{}, err
		}
		resp := DealResponse{Deal: dv}
		if req.DesiredSharePct != nil {
			required, err := domain.RequiredDealValue(*npv, req.Terms.Stage, *req.DesiredSharePct)
			if err != nil {
				return DealResponse{}, err
			}
			share := *req.DesiredSharePct
			resp.DesiredSharePct = &share
			resp.RequiredDealValue = &required
		}
		return resp, nil
	}, attribute.String("stage", req.Terms.Stage.String()))
}

func (s *serviceImpl) Strategy(ctx context.Context, req *StrategyRequest) (*domain.StrategicDecision, error) {
	npv, err := s.NPV(ctx, req.Inputs)
	if err != nil {
		return nil, err
	}
	sched := s.settings.Load().EntrySchedule
	key := cacheKey{Inputs: req.Inputs, Schedule: sched, Extra: req}
	return calculatePtr(ctx, s, prometheus.KindStrategy, key, func() (domain.StrategicDecision, error) {
		return domain.ComputeStrategicDecision(*npv, req.Inputs, req.Stage, req.OutLicensePct)
	}, attribute.String("stage", req.Stage.String()))
}

func (s *serviceImpl) LaunchPrice(ctx context.Context, req *LaunchPriceRequest) (*LaunchPriceResponse, error) {
	st := s.settings.Load()
	in := req.Inputs
	if in.Elasticity == 0 {
		in.Elasticity = st.Elasticity
	}
	key := cacheKey{Schedule: st.EntrySchedule, Extra: LaunchPriceRequest{Inputs: in, Funnel: req.Funnel}}
	return calculatePtr(ctx, s, prometheus.KindLaunchPrice, key, func() (LaunchPriceResponse, error) {
		var resp LaunchPriceResponse
		if f := req.Funnel; f != nil {
			est, err := domain.EstimatePenetration(f.TreatedPatients, f.DiagnosedPatients, f.AdoptionRate)
			if err != nil {
				return resp, err
			}
			resp.Penetration = &est
			in.PenetrationRate = est.Penetration
			in.AdoptionRate = f.AdoptionRate
		}
		res, err := domain.ComputeLaunchPrice(in, st.EntrySchedule)
		if err != nil {
			return resp, err
		}
		resp.Result = res
		return resp, nil
	}, attribute.Int64("market_size", in.MarketSize), attribute.Int("order_of_entry", in.OrderOfEntry))
}

func (s *serviceImpl) Sensitivity(ctx context.Context, req *SensitivityRequest) (*domain.SensitivityResult, error) {
	sched := s.settings.Load().EntrySchedule
	shock := req.Shock
	if shock == 0 {
		shock = domain.DefaultShock
	}
	key := cacheKey{Inputs: req.Inputs, Schedule: sched, Extra: SensitivityRequest{Phase: req.Phase, Shock: shock}}
	return calculatePtr(ctx, s, prometheus.KindSensitivity, key, func() (domain.SensitivityResult, error) {
		return domain.Sensitivity(req.Inputs, sched, req.Phase, shock)
	}, attribute.String("phase", req.Phase.String()), attribute.Float64("shock", shock))
}

func (s *serviceImpl) Defaults() *Defaults {
	st := s.settings.Load()
	lp := domain.DefaultLaunchPriceInputs()
	lp.Elasticity = st.Elasticity
	return &Defaults{
		Inputs:        st.Defaults,
		LaunchPrice:   lp,
		EntrySchedule: st.EntrySchedule.Clone(),
		Elasticity:    st.Elasticity,
		Shock:         domain.DefaultShock,
	}
}

func (s *serviceImpl) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			s.logger.Warn("result cache unavailable", logging.Err(err))
		}
	}
	return nil
}

// calculate runs compute inside a span, through the result cache, and
// records the outcome.
func calculate[T any](ctx context.Context, s *serviceImpl, kind string, key cacheKey, compute func() (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := s.tracer.Start(ctx, "valuation."+kind, trace.WithAttributes(attrs...))
	timer := time.Now()

	out, hit, err := cached(ctx, s, kind, key, compute)

	elapsed := time.Since(timer)
	span.SetAttributes(attribute.Bool("cache_hit", hit))
	tracing.End(span, err)
	s.record(kind, elapsed, err)
	if err != nil {
		return out, err
	}
	s.logger.Debug("calculation complete",
		logging.String("kind", kind),
		logging.Bool("cache_hit", hit),
		logging.Duration("elapsed", elapsed))
	return out, nil
}

func calculatePtr[T any](ctx context.Context, s *serviceImpl, kind string, key cacheKey, compute func() (T, error), attrs ...attribute.KeyValue) (*T, error) {
	out, err := calculate(ctx, s, kind, key, compute, attrs...)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *serviceImpl) record(kind string, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	prometheus.RecordCalculation(s.metrics, kind, elapsed, err)
	if err == nil {
		return
	}
	if iv, ok := domain.AsInvalidInput(err); ok {
		prometheus.RecordValidationError(s.metrics, iv.Field)
		return
	}
	prometheus.RecordError(s.metrics, "valuation", string(errorCode(err)))
}
