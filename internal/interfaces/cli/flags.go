package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
)

// inputFlags are the NPV assumptions shared by npv, deal, strategy and
// sensitivity. Rates and probabilities are percentages; only flags the
// user set override the base inputs.
type inputFlags struct {
	scenario     string
	launchValue  float64
	orderOfEntry int
	discountPct  float64
	noRDCosts    bool
	probability  map[string]string
	cost         map[string]string
	duration     map[string]string
}

func (f *inputFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.scenario, "scenario", "", "YAML scenario file with the base inputs")
	fs.Float64Var(&f.launchValue, "launch-value", 0, "launch value in $M")
	fs.IntVar(&f.orderOfEntry, "order", 0, "order of market entry (1 = first)")
	fs.Float64Var(&f.discountPct, "discount-rate", 0, "annual discount rate in %")
	fs.BoolVar(&f.noRDCosts, "no-rd-costs", false, "exclude remaining R&D costs from NPV")
	fs.StringToStringVar(&f.probability, "probability", nil, "phase success probability in %, e.g. phase1=60")
	fs.StringToStringVar(&f.cost, "cost", nil, "phase cost in $M, e.g. phase3=250")
	fs.StringToStringVar(&f.duration, "duration", nil, "phase duration in years, e.g. phase2=2.5")
}

// base returns the scenario inputs when --scenario is set and the
// configured defaults otherwise.
func (f *inputFlags) base(cliCtx *CLIContext) (domain.Scenario, error) {
	if f.scenario == "" {
		sc := domain.DefaultScenario()
		sc.Inputs = cliCtx.Settings.Defaults
		if sc.Deal != nil {
			sc.Deal.DiscountRate = sc.Inputs.DiscountRate
		}
		return sc, nil
	}
	return readScenario(f.scenario)
}

// build applies the changed flags on top of base.
func (f *inputFlags) build(cmd *cobra.Command, base domain.ValuationInputs) (domain.ValuationInputs, error) {
	in := base
	fs := cmd.Flags()
	if fs.Changed("launch-value") {
		in.LaunchValue = f.launchValue
	}
	if fs.Changed("order") {
		in.OrderOfEntry = f.orderOfEntry
	}
	if fs.Changed("discount-rate") {
		in.DiscountRate = f.discountPct / 100
	}
	if fs.Changed("no-rd-costs") {
		in.IncludeRDCosts = !f.noRDCosts
	}

	overrides := []struct {
		flag   string
		values map[string]string
		set    func(*domain.PhaseParams, float64)
	}{
		{"probability", f.probability, func(p *domain.PhaseParams, v float64) { p.Probability = v / 100 }},
		{"cost", f.cost, func(p *domain.PhaseParams, v float64) { p.Cost = v }},
		{"duration", f.duration, func(p *domain.PhaseParams, v float64) { p.Duration = v }},
	}
	for _, o := range overrides {
		for _, name := range sortedKeys(o.values) {
			phase, err := domain.ParsePhase(name)
			if err != nil {
				return in, fmt.Errorf("--%s: %w", o.flag, err)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(o.values[name]), 64)
			if err != nil {
				return in, fmt.Errorf("--%s %s: not a number: %q", o.flag, name, o.values[name])
			}
			params := in.Phases.Get(phase)
			o.set(&params, v)
			if in, err = in.WithPhase(phase, params); err != nil {
				return in, err
			}
		}
	}
	return in, in.Validate()
}

func readScenario(path string) (domain.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return domain.LoadScenario(f)
}

// parseMilestone reads "label:amount:years" or "amount:years".
func parseMilestone(s string) (domain.Milestone, error) {
	parts := strings.Split(s, ":")
	var m domain.Milestone
	if len(parts) == 3 {
		m.Label = strings.TrimSpace(parts[0])
		parts = parts[1:]
	}
	if len(parts) != 2 {
		return m, fmt.Errorf("milestone %q: want label:amount:years", s)
	}
	var err error
	if m.Amount, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return m, fmt.Errorf("milestone %q: amount is not a number", s)
	}
	if m.Years, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return m, fmt.Errorf("milestone %q: years is not a number", s)
	}
	return m, nil
}

func parsePhaseArg(flag, value string) (domain.Phase, error) {
	p, err := domain.ParsePhase(value)
	if err != nil {
		return p, fmt.Errorf("--%s: %w", flag, err)
	}
	return p, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
