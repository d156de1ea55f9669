// Package web serves the four calculator screens as server-rendered HTML.
// Each screen is a plain form: a POST applies the submitted fields to the
// visitor's session and the page is rendered again from the recomputed
// dashboard, with rejected fields marked inline.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	defaultCookieName = "valuation_session"
	defaultMaxBody    = 64 << 10
)

// Config controls the session cookie and form limits.
type Config struct {
	CookieName   string
	CookieSecure bool
	// CookieTTL bounds the cookie lifetime; zero makes it a browser-session
	// cookie.
	CookieTTL    time.Duration
	MaxBodyBytes int64
}

type screen struct {
	path     string
	title    string
	subtitle string
	template string
	build    func(*pageContext) interface{}
}

var screens = []screen{
	{
		path: "/npv", title: "NPV Calculator", template: "npv",
		subtitle: "Risk-adjusted net present value of the asset at each development stage",
		build:    func(c *pageContext) interface{} { return buildNPVPage(c) },
	},
	{
		path: "/deal", title: "Deal Analysis", template: "deal",
		subtitle: "Compare a proposed deal with the asset value at the deal stage",
		build:    func(c *pageContext) interface{} { return buildDealPage(c) },
	},
	{
		path: "/strategy", title: "Strategic Decision", template: "strategy",
		subtitle: "Continue development or out-license now",
		build:    func(c *pageContext) interface{} { return buildStrategyPage(c) },
	},
	{
		path: "/launch-price", title: "Launch Price", template: "launch_price",
		subtitle: "Pricing from market size and penetration",
		build:    func(c *pageContext) interface{} { return buildLaunchPricePage(c) },
	},
}

type navItem struct {
	Path   string
	Label  string
	Active bool
}

type layoutData struct {
	ID        string
	Path      string
	Title     string
	Subtitle  string
	Nav       []navItem
	ShowReset bool
	Page      interface{}
}

type errorPage struct {
	Message   string
	RequestID string
}

// Handler renders the screens for one Service.
type Handler struct {
	svc       appvaluation.Service
	logger    logging.Logger
	cfg       Config
	templates map[string]*template.Template
	notes     notes
}

// NewHandler parses the embedded templates and notes.
func NewHandler(svc appvaluation.Service, logger logging.Logger, cfg Config) (*Handler, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	n, err := loadNotes()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load page notes")
	}

	pages := []string{"about", "error"}
	for _, s := range screens {
		pages = append(pages, s.template)
	}
	tmpls := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		t, err := template.New(name).ParseFS(templatesFS,
			"templates/layout.html", "templates/components.html", "templates/"+name+".html")
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse template "+name)
		}
		tmpls[name] = t
	}

	return &Handler{
		svc:       svc,
		logger:    logger.Named("web"),
		cfg:       cfg,
		templates: tmpls,
		notes:     n,
	}, nil
}

// Routes mounts the screens, the reset action and the static assets.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/npv", http.StatusFound)
	})
	for _, s := range screens {
		r.Get(s.path, h.serveScreen(s))
		r.Post(s.path, h.serveScreen(s))
	}
	r.Post("/reset", h.reset)
	r.Get("/about", h.about)

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	return r
}

func (h *Handler) serveScreen(s screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := h.session(w, r)
		if err != nil {
			h.renderError(w, r, err)
			return
		}

		var (
			inline session.FieldErrors
			raw    url.Values
		)
		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
			if err := r.ParseForm(); err != nil {
				h.renderError(w, r, errors.New(errors.CodeInvalidParam, "the form could not be read").WithCause(err))
				return
			}
			raw = r.PostForm
			update, err := h.svc.UpdateForm(ctx, sess.ID, raw)
			if err != nil {
				h.renderError(w, r, err)
				return
			}
			inline = update.Errors
		}

		dash, err := h.svc.Dashboard(ctx, sess.ID)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		errs := session.FieldErrors{}
		for k, v := range dash.Errors {
			errs[k] = v
		}
		for k, v := range inline {
			errs[k] = v
		}

		pc := &pageContext{dash: dash, errors: errs, raw: raw, notes: h.notes}
		status := http.StatusOK
		if len(inline) > 0 {
			status = http.StatusUnprocessableEntity
		}
		h.render(w, status, s.template, layoutData{
			ID:        strings.TrimPrefix(s.path, "/"),
			Path:      s.path,
			Title:     s.title,
			Subtitle:  s.subtitle,
			Nav:       nav(s.path),
			ShowReset: true,
			Page:      s.build(pc),
		})
	}
}

// reset restores the visitor's inputs and returns to the screen the form
// was posted from.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if _, err := h.svc.ResetSession(r.Context(), sess.ID); err != nil {
		h.renderError(w, r, err)
		return
	}
	target := "/npv"
	if to := r.PostFormValue("return_to"); isScreen(to) {
		target = to
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) about(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "about", layoutData{
		ID:    "about",
		Path:  "/about",
		Title: "About",
		Nav:   nav("/about"),
		Page:  h.notes["about"],
	})
}

// session resolves the visitor's session from the cookie, starting a new
// one when the cookie is missing or points at an expired session.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil && c.Value != "" {
		sess, err := h.svc.GetSession(r.Context(), c.Value)
		if err == nil {
			return sess, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	sess, err := h.svc.StartSession(r.Context())
	if err != nil {
		return nil, err
	}
	cookie := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.CookieTTL > 0 {
		cookie.MaxAge = int(h.cfg.CookieTTL / time.Second)
	}
	http.SetCookie(w, cookie)
	return sess, nil
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data layoutData) {
	var buf bytes.Buffer
	if err := h.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("template render failed", logging.String("template", name), logging.Err(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows an error page. Only client errors reveal their
// message.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown || code == errors.CodeOK {
		code = errors.CodeInternal
	}
	status := errors.HTTPStatusForCode(code)
	page := errorPage{RequestID: middleware.GetReqID(r.Context())}
	if status >= http.StatusInternalServerError {
		h.logger.Error("page request failed",
			logging.String("path", r.URL.Path),
			logging.String("code", code.String()),
			logging.Err(err))
		page.Message = "Something went wrong while preparing this page. Please try again."
	} else {
		page.Message = errors.DefaultMessageForCode(code)
		if ae, ok := errors.AsAppError(err); ok && ae.Message != "" {
			page.Message = ae.Message
		}
	}
	h.render(w, status, "error", layoutData{
		ID:    "error",
		Path:  r.URL.Path,
		Title: "Error",
		Nav:   nav(""),
		Page:  page,
	})
}

func nav(active string) []navItem {
	items := make([]navItem, 0, len(screens)+1)
	for _, s := range screens {
		items = append(items, navItem{Path: s.path, Label: s.title, Active: s.path == active})
	}
	return append(items, navItem{Path: "/about", Label: "About", Active: active == "/about"})
}

func isScreen(path string) bool {
	for _, s := range screens {
		if s.path == path {
			return true
		}
	}
	return false
}
