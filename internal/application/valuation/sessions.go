package valuation

import (
	"context"
	"net/url"
	"strings"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/prometheus"
)

// FormUpdate reports the outcome of one form submission. Rejected fields
// keep their previous value and carry a message in Errors.
type FormUpdate struct {
	Session *session.Session    `json:"session"`
	Changed []string            `json:"changed"`
	Errors  session.FieldErrors `json:"errors,omitempty"`
}

func (s *serviceImpl) StartSession(ctx context.Context) (*session.Session, error) {
	sess, err := s.store.Create(ctx)
	if err != nil {
		return nil, err
	}
	s.seed(&sess.Form)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SessionsCreatedTotal.WithLabelValues(storeName(s.store)).Inc()
	}
	s.logger.Debug("session started", logging.String("session_id", sess.ID))
	return sess, nil
}

func (s *serviceImpl) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Get(ctx, id)
}

// UpdateForm applies submitted values to the session's form. Single-field
// checks happen in Form.Apply; the time-to-market sequence is checked across
// fields afterwards and offending fields are rolled back.
func (s *serviceImpl) UpdateForm(ctx context.Context, id string, values url.Values) (*FormUpdate, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := sess.Form
	changed, errs := sess.Form.Apply(values)
	if _, crossErrs := sess.Form.ValuationInputs(); len(crossErrs) > 0 {
		// every submitted time-to-market value takes part in the ordering
		for _, p := range domain.DevelopmentPhases() {
			field := "time_to_market_" + p.String()
			prev, _ := before.Get(field)
			now, _ := sess.Form.Get(field)
			if now == prev {
				continue
			}
			_ = sess.Form.Set(field, prev)
			errs[field] = "must not exceed the earlier phase or fall below the later one"
		}
		changed = unchanged(changed, before, sess.Form)
	}

	if len(changed) > 0 {
		if err := s.store.Save(ctx, sess); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		for _, field := range errs.Fields() {
			prometheus.RecordValidationError(s.metrics, field)
		}
		for _, screen := range screensOf(changed) {
			s.metrics.FormUpdatesTotal.WithLabelValues(screen).Inc()
		}
	}
	update := &FormUpdate{Session: sess, Changed: changed}
	if len(errs) > 0 {
		update.Errors = errs
	}
	return update, nil
}

// ResetSession restores every field to its default.
func (s *serviceImpl) ResetSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Form = session.DefaultForm()
	s.seed(&sess.Form)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *serviceImpl) EndSession(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// seed applies the configured defaults on top of the built-in form.
func (s *serviceImpl) seed(f *session.Form) {
	st := s.settings.Load()
	f.SetInputs(st.Defaults)
	f.Elasticity = st.Elasticity
}

// unchanged drops fields whose value ended up where it started.
func unchanged(fields []string, before, after session.Form) []string {
	var out []string
	for _, f := range fields {
		b, _ := before.Get(f)
		a, _ := after.Get(f)
		if a != b {
			out = append(out, f)
		}
	}
	return out
}

// screensOf maps changed field names to the screen that owns them.
func screensOf(fields []string) []string {
	seen := map[string]bool{}
	var screens []string
	for _, f := range fields {
		screen := screenOf(f)
		if !seen[screen] {
			seen[screen] = true
			screens = append(screens, screen)
		}
	}
	return screens
}

func screenOf(field string) string {
	switch {
	case strings.HasPrefix(field, "deal_"), field == "desired_share", field == "royalty_rate",
		strings.HasPrefix(field, "milestone_"):
		return "deal"
	case strings.HasPrefix(field, "strategy_"), field == "out_license_pct":
		return "strategy"
	case field == "market_value", field == "launch_order_of_entry", field == "elasticity",
		field == "adoption_rate", strings.HasSuffix(field, "_patients"):
		return "launch_price"
	default:
		return "npv"
	}
}

func storeName(st session.Store) string {
	switch st.(type) {
	case *session.MemoryStore:
		return "memory"
	case *session.RedisStore:
		return "redis"
	default:
		return "other"
	}
}
