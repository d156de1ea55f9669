package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/testutil"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

type browser struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newBrowser(t *testing.T, svc appvaluation.Service) *browser {
	t.Helper()
	if svc == nil {
		svc = appvaluation.NewService(session.NewMemoryStore(0, nil), nil, nil)
	}
	h, err := NewHandler(svc, nil, Config{})
	require.NoError(t, err)
	return &browser{t: t, handler: h.Routes()}
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == defaultCookieName {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) page(method, path string, form url.Values) (*httptest.ResponseRecorder, *goquery.Document) {
	b.t.Helper()
	rec := b.do(method, path, form)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(b.t, err)
	return rec, doc
}

func inputValue(doc *goquery.Document, name string) string {
	v, _ := doc.Find(`input[name="` + name + `"]:not([type=hidden])`).Attr("value")
	return v
}

func fieldError(doc *goquery.Document, name string) string {
	return strings.TrimSpace(doc.Find(`.field[data-field="` + name + `"] .field-error`).Text())
}

func TestRootRedirectsToNPV(t *testing.T) {
	b := newBrowser(t, nil)

	rec := b.do(http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/npv", rec.Header().Get("Location"))
}

func TestNPVPage_DefaultsAndSessionCookie(t *testing.T) {
	b := newBrowser(t, nil)

	rec, doc := b.page(http.MethodGet, "/npv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, b.cookie)
	assert.True(t, b.cookie.HttpOnly)
	assert.Equal(t, "1000", inputValue(doc, "launch_value"))
	assert.Equal(t, "NPV Calculator", strings.TrimSpace(doc.Find("nav a.active").Text()))
	assert.Equal(t, 6, doc.Find("#npv-results table.data tbody tr").Length())
	assert.Equal(t, 6, doc.Find("#npv-results svg g.bar").Length())
	assert.Equal(t, 5, doc.Find("table.phases tbody tr").Length())
	_, checked := doc.Find(`input[type=checkbox][name="include_rd_costs"]`).Attr("checked")
	assert.True(t, checked)
}

func TestNPVPage_PostUpdatesResults(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodGet, "/npv", nil)

	rec, doc := b.page(http.MethodPost, "/npv", url.Values{"launch_value": {"2000"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2000", inputValue(doc, "launch_value"))
	last := doc.Find("#npv-results table.data tbody tr").Last()
	assert.Equal(t, "Launched", last.Find("td").First().Text())
	assert.Equal(t, "$2,000.0M", last.Find("td").Last().Text())

	// the value sticks for the next visit
	_, doc = b.page(http.MethodGet, "/npv", nil)
	assert.Equal(t, "2000", inputValue(doc, "launch_value"))
}

func TestNPVPage_InvalidFieldRenderedInline(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodGet, "/npv", nil)

	rec, doc := b.page(http.MethodPost, "/npv", url.Values{
		"discount_rate": {"150"},
		"launch_value":  {"1500"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotEmpty(t, fieldError(doc, "discount_rate"))
	assert.Equal(t, "150", inputValue(doc, "discount_rate"))
	assert.Equal(t, "1500", inputValue(doc, "launch_value"))
	// results still render from the last valid state
	assert.Equal(t, 6, doc.Find("#npv-results table.data tbody tr").Length())

	_, doc = b.page(http.MethodGet, "/npv", nil)
	assert.Equal(t, "12", inputValue(doc, "discount_rate"))
	assert.Empty(t, fieldError(doc, "discount_rate"))
}

func TestNPVPage_TimeToMarketOrderRejected(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodGet, "/npv", nil)

	_, doc := b.page(http.MethodPost, "/npv", url.Values{"time_to_market_phase3": {"5"}})

	assert.NotEmpty(t, fieldError(doc, "time_to_market_phase3"))
	assert.Equal(t, 6, doc.Find("#npv-results table.data tbody tr").Length())
}

func TestNPVPage_FormulaNotes(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodGet, "/npv", nil)

	_, doc := b.page(http.MethodPost, "/npv", url.Values{"show_formulas": {"false", "true"}})

	note := doc.Find("#npv-results details.note")
	require.Equal(t, 1, note.Length())
	assert.Contains(t, note.Find(".markdown table").Text(), "Time factor")

	_, doc = b.page(http.MethodPost, "/npv", url.Values{"show_formulas": {"false"}})
	assert.Equal(t, 0, doc.Find("#npv-results details.note").Length())
}

func TestDealPage(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodGet, "/deal", nil)

	rec, doc := b.page(http.MethodPost, "/deal", url.Values{
		"deal_stage":         {"phase3"},
		"deal_value":         {"100"},
		"milestone_1_amount": {"20"},
		"milestone_1_years":  {"1"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "phase3", doc.Find(`select[name="deal_stage"] option[selected]`).AttrOr("value", ""))
	assert.Equal(t, 2, doc.Find("#deal-results figure.pie path").Length())
	assert.Contains(t, doc.Find("#deal-results .legend").Text(), "Partner")
	assert.NotEmpty(t, strings.TrimSpace(doc.Find("#deal-results .assessment .metric-value").Text()))
	assert.Contains(t, doc.Find("#deal-results table.data").Text(), "Milestone 1")
	assert.Equal(t, 1, doc.Find("#deal-results details.note").Length())
}

func TestDealPage_DefaultsRenderADeal(t *testing.T) {
	b := newBrowser(t, nil)

	_, doc := b.page(http.MethodGet, "/deal", nil)

	assert.Equal(t, "phase2", doc.Find(`select[name="deal_stage"] option[selected]`).AttrOr("value", ""))
	assert.Empty(t, fieldError(doc, "deal_stage"))
	assert.Equal(t, 1, doc.Find("#deal-results figure.pie").Length())
}

func TestDealPage_NonPositiveStageValueShownOnStage(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodGet, "/deal", nil)

	// a large preclinical spend pushes the stage value below zero
	b.do(http.MethodPost, "/npv", url.Values{"cost_preclinical": {"5000"}})
	_, doc := b.page(http.MethodPost, "/deal", url.Values{"deal_stage": {"preclinical"}})

	assert.NotEmpty(t, fieldError(doc, "deal_stage"))
	assert.Equal(t, 0, doc.Find("#deal-results figure.pie").Length())
}

func TestStrategyPage(t *testing.T) {
	b := newBrowser(t, nil)

	_, doc := b.page(http.MethodPost, "/strategy", url.Values{"strategy_stage": {"phase2"}, "out_license_pct": {"40"}})

	rec := strings.TrimSpace(doc.Find("#strategy-results .recommendation .metric-value").Text())
	assert.Contains(t, []string{"Continue Development", "Out-License Now", "Either Option Viable"}, rec)
	assert.Equal(t, 5, doc.Find("#strategy-results table.data tbody tr").Length())
	assert.Equal(t, 2, doc.Find("#strategy-results svg g.bar").Length())
	assert.Equal(t, "40", inputValue(doc, "out_license_pct"))
}

func TestLaunchPricePage(t *testing.T) {
	b := newBrowser(t, nil)

	_, doc := b.page(http.MethodGet, "/launch-price", nil)

	var penetration string
	doc.Find("#launch-price-results .metric").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Find(".metric-label").Text()) == "Estimated Penetration" {
			penetration = strings.TrimSpace(s.Find(".metric-value").Text())
		}
	})
	assert.Equal(t, "30.0%", penetration)
	assert.Equal(t, 4, doc.Find("#launch-price-results svg g.bar").Length())
}

func TestLaunchPricePage_InvalidPatients(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodGet, "/launch-price", nil)

	rec, doc := b.page(http.MethodPost, "/launch-price", url.Values{"estimated_patients": {"0"}})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotEmpty(t, fieldError(doc, "estimated_patients"))
	assert.Equal(t, "0", inputValue(doc, "estimated_patients"))
}

func TestReset(t *testing.T) {
	b := newBrowser(t, nil)
	b.do(http.MethodPost, "/npv", url.Values{"launch_value": {"5000"}})

	rec := b.do(http.MethodPost, "/reset", url.Values{"return_to": {"/deal"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/deal", rec.Header().Get("Location"))
	_, doc := b.page(http.MethodGet, "/npv", nil)
	assert.Equal(t, "1000", inputValue(doc, "launch_value"))
}

func TestReset_IgnoresForeignReturnTarget(t *testing.T) {
	b := newBrowser(t, nil)

	rec := b.do(http.MethodPost, "/reset", url.Values{"return_to": {"https://example.com/"}})

	assert.Equal(t, "/npv", rec.Header().Get("Location"))
}

func TestStaleCookieStartsNewSession(t *testing.T) {
	b := newBrowser(t, nil)
	b.cookie = &http.Cookie{Name: defaultCookieName, Value: "3f1c6a8e-0000-4000-8000-000000000000"}

	rec := b.do(http.MethodGet, "/npv", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "3f1c6a8e-0000-4000-8000-000000000000", b.cookie.Value)
}

func TestStaticAndAbout(t *testing.T) {
	b := newBrowser(t, nil)

	rec := b.do(http.MethodGet, "/static/style.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec, doc := b.page(http.MethodGet, "/about", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, doc.Find("main .markdown").Text(), "Deal Analysis")
	assert.Equal(t, "About", strings.TrimSpace(doc.Find("nav a.active").Text()))
}

type unavailableService struct {
	appvaluation.Service
}

func (unavailableService) StartSession(context.Context) (*session.Session, error) {
	return nil, errors.New(errors.CodeStoreUnavailable, "dial tcp 10.0.0.7:6379: connection refused")
}

func TestStoreFailureRendersMaskedErrorPage(t *testing.T) {
	log := testutil.NewMockLogger()
	h, err := NewHandler(unavailableService{}, log, Config{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/npv", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	assert.True(t, log.HasMessage("error", "page request failed"))
}
