package valuation

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
)

// Dashboard holds the outputs of all four screens for one form. A screen
// whose inputs are rejected has a nil result and its messages in Errors,
// keyed by form field.
type Dashboard struct {
	SessionID   string                      `json:"session_id,omitempty"`
	Form        session.Form                `json:"form"`
	NPV         *domain.NPVResult           `json:"npv,omitempty"`
	Deal        *DealResponse               `json:"deal,omitempty"`
	Strategy    *domain.StrategicDecision   `json:"strategy,omitempty"`
	Penetration *domain.PenetrationEstimate `json:"penetration,omitempty"`
	LaunchPrice *domain.LaunchPriceResult   `json:"launch_price,omitempty"`
	Schedule    domain.EntrySchedule        `json:"entry_schedule"`
	Errors      session.FieldErrors         `json:"errors,omitempty"`
}

func (s *serviceImpl) Dashboard(ctx context.Context, id string) (*Dashboard, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := s.Evaluate(ctx, sess.Form)
	d.SessionID = sess.ID
	return d, nil
}

func (s *serviceImpl) Evaluate(ctx context.Context, form session.Form) *Dashboard {
	d := &Dashboard{
		Form:     form,
		Schedule: s.settings.Load().EntrySchedule,
		Errors:   session.FieldErrors{},
	}
	var mu sync.Mutex
	fail := func(screen string, err error) {
		field, msg := formField(screen, err)
		mu.Lock()
		defer mu.Unlock()
		if _, exists := d.Errors[field]; !exists {
			d.Errors[field] = msg
		}
	}

	inputs, ferrs := form.ValuationInputs()
	for field, msg := range ferrs {
		d.Errors[field] = msg
	}

	g, gctx := errgroup.WithContext(ctx)

	// Launch price does not depend on the NPV screen.
	g.Go(func() error {
		est, err := form.PenetrationEstimate()
		if err != nil {
			fail("launch_price", err)
			return nil
		}
		mu.Lock()
		d.Penetration = &est
		mu.Unlock()

		in, err := form.LaunchPriceInputs()
		if err != nil {
			fail("launch_price", err)
			return nil
		}
		resp, err := s.LaunchPrice(gctx, &LaunchPriceRequest{Inputs: in})
		if err != nil {
			fail("launch_price", err)
			return nil
		}
		mu.Lock()
		d.LaunchPrice = &resp.Result
		mu.Unlock()
		return nil
	})

	if ferrs == nil {
		npv, err := s.NPV(ctx, inputs)
		if err != nil {
			fail("npv", err)
		} else {
			d.NPV = npv
			g.Go(func() error {
				share := form.DesiredSharePct
				resp, err := s.Deal(gctx, &DealRequest{Inputs: inputs, Terms: form.DealTerms(), DesiredSharePct: &share})
				if err != nil {
					fail("deal", err)
					return nil
				}
				mu.Lock()
				d.Deal = resp
				mu.Unlock()
				return nil
			})
			g.Go(func() error {
				dec, err := s.Strategy(gctx, &StrategyRequest{Inputs: inputs, Stage: form.StrategyStage, OutLicensePct: form.OutLicensePct})
				if err != nil {
					fail("strategy", err)
					return nil
				}
				mu.Lock()
				d.Strategy = dec
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard evaluation interrupted", logging.Err(err))
	}
	if len(d.Errors) == 0 {
		d.Errors = nil
	}
	return d
}

// engineToForm renames engine input fields to the form controls that feed
// them, per screen.
var engineToForm = map[string]map[string]string{
	"deal": {
		"stage":            "deal_stage",
		"upfront":          "deal_value",
		"total_deal_value": "deal_value",
		"desired_share":    "desired_share",
		"royalty_rate":     "royalty_rate",
		"discount_rate":    "discount_rate",
	},
	"strategy": {
		"stage":               "strategy_stage",
		"out_license_percent": "out_license_pct",
	},
	"launch_price": {
		"market_value":       "market_value",
		"market_size":        "estimated_patients",
		"penetration_rate":   "treated_patients",
		"adoption_rate":      "adoption_rate",
		"order_of_entry":     "launch_order_of_entry",
		"elasticity":         "elasticity",
		"treated_patients":   "treated_patients",
		"diagnosed_patients": "diagnosed_patients",
	},
}

// formField places err next to the control that caused it. Errors that
// carry no field land on the screen itself.
func formField(screen string, err error) (string, string) {
	iv, ok := domain.AsInvalidInput(err)
	if !ok {
		return screen, err.Error()
	}
	if f, ok := engineToForm[screen][iv.Field]; ok {
		return f, iv.Reason
	}
	// phases.<name>.<param>
	if parts := strings.Split(iv.Field, "."); len(parts) == 3 && parts[0] == "phases" {
		switch parts[2] {
		case "probability":
			return "probability_" + parts[1], iv.Reason
		case "cost":
			return "cost_" + parts[1], iv.Reason
		case "duration":
			return "time_to_market_" + parts[1], iv.Reason
		}
	}
	return iv.Field, iv.Reason
}
