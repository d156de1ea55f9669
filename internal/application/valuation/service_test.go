package valuation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/database/redis"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/prometheus"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/tracing"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context) (*session.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (*session.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, s *session.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newTestService(t *testing.T, opts ...Option) (*serviceImpl, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(0, logging.NewNopLogger())
	svc := NewService(store, nil, logging.NewNopLogger(), opts...)
	return svc.(*serviceImpl), store
}

func newTestMetrics(t *testing.T) (*prometheus.AppMetrics, func() string) {
	t.Helper()
	c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	scrape := func() string {
		w := httptest.NewRecorder()
		c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return w.Body.String()
	}
	return prometheus.NewAppMetrics(c), scrape
}

func newTestCache(t *testing.T) (redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := logging.NewNopLogger()
	client, err := redis.NewClient(&redis.RedisConfig{Addr: mr.Addr()}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewRedisCache(client, log, redis.WithPrefix("test:"), redis.WithJitter(0)), mr
}

func unprofitableInputs() domain.ValuationInputs {
	in := domain.DefaultInputs()
	in.LaunchValue = 1
	return in
}

// ---------------------------------------------------------------------------
// Calculations
// ---------------------------------------------------------------------------

func TestService_NPV_MatchesEngine(t *testing.T) {
	svc, _ := newTestService(t)
	in := domain.DefaultInputs()

	got, err := svc.NPV(context.Background(), in)
	require.NoError(t, err)

	want, err := domain.ComputeNPV(in, nil)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestService_NPV_UsesSettingsSchedule(t *testing.T) {
	settings, err := NewSettingsHolder(DefaultSettings())
	require.NoError(t, err)
	svc := NewService(session.NewMemoryStore(0, nil), settings, nil)

	in := domain.DefaultInputs()
	in.OrderOfEntry = 2
	in.IncludeRDCosts = false

	before, err := svc.NPV(context.Background(), in)
	require.NoError(t, err)

	st := DefaultSettings()
	st.EntrySchedule = domain.EntrySchedule{1, 0.5}
	require.NoError(t, settings.Store(st))

	after, err := svc.NPV(context.Background(), in)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, after.Phases[0].OrderFactor, 1e-12)
	assert.Less(t, after.Value(domain.Launched), before.Value(domain.Launched))
}

func TestService_NPV_InvalidInputRecordsMetrics(t *testing.T) {
	metrics, scrape := newTestMetrics(t)
	svc, _ := newTestService(t, WithMetrics(metrics))

	in := domain.DefaultInputs()
	in.DiscountRate = -0.1
	_, err := svc.NPV(context.Background(), in)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))

	out := scrape()
	assert.Contains(t, out, `test_calculations_total{kind="npv",result="error"} 1`)
	assert.Contains(t, out, `test_validation_errors_total{field="discount_rate"} 1`)
}

func TestService_NPV_CachesResults(t *testing.T) {
	cache, mr := newTestCache(t)
	metrics, scrape := newTestMetrics(t)
	svc, _ := newTestService(t, WithCache(cache, 0), WithMetrics(metrics))
	ctx := context.Background()
	in := domain.DefaultInputs()

	first, err := svc.NPV(ctx, in)
	require.NoError(t, err)
	second, err := svc.NPV(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, mr.Keys(), 1)
	out := scrape()
	assert.Contains(t, out, `test_cache_misses_total{kind="npv"} 1`)
	assert.Contains(t, out, `test_cache_hits_total{kind="npv"} 1`)
}

func TestService_NPV_CacheKeyTracksInputs(t *testing.T) {
	cache, mr := newTestCache(t)
	svc, _ := newTestService(t, WithCache(cache, 0))
	ctx := context.Background()

	in := domain.DefaultInputs()
	_, err := svc.NPV(ctx, in)
	require.NoError(t, err)
	in.LaunchValue = 2000
	got, err := svc.NPV(ctx, in)
	require.NoError(t, err)

	assert.Len(t, mr.Keys(), 2)
	assert.Equal(t, 2000.0, got.Value(domain.Launched))
}

func TestService_NPV_ErrorsAreNotCached(t *testing.T) {
	cache, mr := newTestCache(t)
	svc, _ := newTestService(t, WithCache(cache, 0))

	in := domain.DefaultInputs()
	in.LaunchValue = -1
	_, err := svc.NPV(context.Background(), in)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, mr.Keys())
}

func TestService_NPV_CacheFailureFallsBack(t *testing.T) {
	cache, mr := newTestCache(t)
	svc, _ := newTestService(t, WithCache(cache, 0))
	mr.SetError("LOADING Redis is loading the dataset in memory")

	got, err := svc.NPV(context.Background(), domain.DefaultInputs())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Value(domain.Launched))
}

func TestService_Deal(t *testing.T) {
	svc, _ := newTestService(t)
	in := domain.DefaultInputs()
	share := 40.0

	resp, err := svc.Deal(context.Background(), &DealRequest{
		Inputs:          in,
		Terms:           domain.DealTerms{Stage: domain.Phase2, Upfront: 50, DiscountRate: in.DiscountRate},
		DesiredSharePct: &share,
	})
	require.NoError(t, err)

	npv, err := domain.ComputeNPV(in, nil)
	require.NoError(t, err)
	assert.InDelta(t, npv.Value(domain.Phase2), resp.Deal.StageValue, 1e-9)
	assert.True(t, resp.Deal.Split.Total().Equal(decimal.NewFromInt(100)))
	require.NotNil(t, resp.RequiredDealValue)
	assert.InDelta(t, 0.4*npv.Value(domain.Phase2), *resp.RequiredDealValue, 1e-9)
}

func TestService_Deal_NonPositiveStage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Deal(context.Background(), &DealRequest{
		Inputs: unprofitableInputs(),
		Terms:  domain.DealTerms{Stage: domain.Phase1, Upfront: 10},
	})

	iv, ok := domain.AsInvalidInput(err)
	require.True(t, ok)
	assert.Equal(t, "stage", iv.Field)
	assert.Equal(t, errors.CodeNonPositiveStageValue, iv.Code())
}

func TestService_Strategy(t *testing.T) {
	svc, _ := newTestService(t)
	in := domain.DefaultInputs()

	got, err := svc.Strategy(context.Background(), &StrategyRequest{Inputs: in, Stage: domain.Phase2, OutLicensePct: 30})
	require.NoError(t, err)

	npv, err := domain.ComputeNPV(in, nil)
	require.NoError(t, err)
	want, err := domain.ComputeStrategicDecision(npv, in, domain.Phase2, 30)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestService_Strategy_InvalidPercent(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Strategy(context.Background(), &StrategyRequest{Inputs: domain.DefaultInputs(), Stage: domain.Phase1, OutLicensePct: 120})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_LaunchPrice_FunnelAndDefaultElasticity(t *testing.T) {
	st := DefaultSettings()
	st.Elasticity = 2
	settings, err := NewSettingsHolder(st)
	require.NoError(t, err)
	svc := NewService(session.NewMemoryStore(0, nil), settings, nil)

	in := domain.DefaultLaunchPriceInputs()
	in.Elasticity = 0
	resp, err := svc.LaunchPrice(context.Background(), &LaunchPriceRequest{
		Inputs: in,
		Funnel: &Funnel{TreatedPatients: 300000, DiagnosedPatients: 500000, AdoptionRate: 0.5},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Penetration)
	assert.InDelta(t, 0.3, resp.Penetration.Penetration, 1e-9)
	assert.Equal(t, 2.0, resp.Result.Elasticity)

	in.Elasticity = 2
	in.PenetrationRate = 0.3
	want, err := domain.ComputeLaunchPrice(in, nil)
	require.NoError(t, err)
	assert.Equal(t, want, resp.Result)
}

func TestService_LaunchPrice_InvalidMarketSize(t *testing.T) {
	svc, _ := newTestService(t)
	in := domain.DefaultLaunchPriceInputs()
	in.MarketSize = 0

	_, err := svc.LaunchPrice(context.Background(), &LaunchPriceRequest{Inputs: in})

	iv, ok := domain.AsInvalidInput(err)
	require.True(t, ok)
	assert.Equal(t, "market_size", iv.Field)
}

func TestService_Sensitivity_DefaultShock(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.Sensitivity(context.Background(), &SensitivityRequest{Inputs: domain.DefaultInputs(), Phase: domain.Phase2})
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultShock, got.Shock)
	require.NotEmpty(t, got.Drivers)
	for i := 1; i < len(got.Drivers); i++ {
		assert.GreaterOrEqual(t, got.Drivers[i-1].Spread, got.Drivers[i].Spread)
	}
}

func TestService_Defaults(t *testing.T) {
	svc, _ := newTestService(t)

	d := svc.Defaults()

	assert.Equal(t, domain.DefaultInputs(), d.Inputs)
	assert.Equal(t, domain.DefaultEntrySchedule(), d.EntrySchedule)
	assert.Equal(t, domain.DefaultElasticity, d.Elasticity)

	d.EntrySchedule[0] = 0.1
	assert.Equal(t, 1.0, svc.Defaults().EntrySchedule[0])
}

func TestService_Spans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	provider := tracing.NewWithExporter(tracing.Config{}, exp)
	svc, _ := newTestService(t, WithTracer(provider.Tracer()))

	_, err := svc.NPV(context.Background(), domain.DefaultInputs())
	require.NoError(t, err)
	_, err = svc.Deal(context.Background(), &DealRequest{
		Inputs: unprofitableInputs(),
		Terms:  domain.DealTerms{Stage: domain.Phase1},
	})
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "valuation.npv", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	// the deal's NPV succeeds even though the asset is under water
	assert.Equal(t, "valuation.npv", spans[1].Name)
	assert.Equal(t, codes.Unset, spans[1].Status.Code)
	assert.Equal(t, "valuation.deal", spans[2].Name)
	assert.Equal(t, codes.Error, spans[2].Status.Code)
}

func TestService_Ready(t *testing.T) {
	store := &mockStore{}
	store.On("Ping", mock.Anything).Return(errors.New(errors.CodeStoreUnavailable, "redis down")).Once()
	store.On("Ping", mock.Anything).Return(nil).Once()
	svc := NewService(store, nil, nil)

	err := svc.Ready(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeStoreUnavailable))
	assert.NoError(t, svc.Ready(context.Background()))
	store.AssertExpectations(t)
}
