package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/web"
)

// NewStrategyCmd compares out-licensing now with developing one more phase.
func NewStrategyCmd() *cobra.Command {
	var (
		flags         inputFlags
		stage         string
		outLicensePct float64
	)

	cmd := &cobra.Command{
		Use:     "strategy",
		Short:   "Out-license now or continue development",
		Example: `  valuation strategy --stage phase2 --out-license 40`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			sc, err := flags.base(cliCtx)
			if err != nil {
				return err
			}
			in, err := flags.build(cmd, sc.Inputs)
			if err != nil {
				return err
			}
			p, err := parsePhaseArg("stage", stage)
			if err != nil {
				return err
			}

			ctx, cancel := cliCtx.Context(cmd)
			defer cancel()
			res, err := cliCtx.Backend.Strategy(ctx, &appvaluation.StrategyRequest{
				Inputs:        in,
				Stage:         p,
				OutLicensePct: outLicensePct,
			})
			if err != nil {
				return err
			}
			return PrintResult(cmd, strategyView{res: res})
		},
	}

	flags.bind(cmd.Flags())
	cmd.Flags().StringVar(&stage, "stage", "phase2", "current development stage")
	cmd.Flags().Float64Var(&outLicensePct, "out-license", 50, "share of the asset out-licensed now in %")
	return cmd
}

type strategyView struct {
	res *domain.StrategicDecision
}

func (v strategyView) Title() string {
	return fmt.Sprintf("Strategic decision at %s", v.res.Stage.Label())
}

func (v strategyView) TableHeaders() []string { return []string{"Option", "Value"} }

func (v strategyView) TableRows() [][]string {
	d := v.res
	next := "none"
	if d.NextPhase != nil {
		next = d.NextPhase.Label()
	}
	return [][]string{
		{"Continue to " + next, web.Money(d.ContinueValue)},
		{fmt.Sprintf("  %s value x %s success", web.Money(d.NextPhaseValue), web.Percent(d.SuccessProbability)), ""},
		{fmt.Sprintf("Out-license %.0f%% now", d.OutLicensePercent), web.Money(d.OutLicenseNowValue)},
		{"  deal value", web.Money(d.DealValue)},
		{"  retained value", web.Money(d.RetainedValue)},
	}
}

func (v strategyView) Highlights() []string {
	return []string{
		fmt.Sprintf("Difference (continue - out-license): %s", colorMoney(v.res.ValueDifference)),
		fmt.Sprintf("Recommendation: %s", colorizeRecommendation(v.res.Recommendation)),
	}
}

func (v strategyView) Payload() interface{} { return v.res }

func colorizeRecommendation(r domain.Recommendation) string {
	switch r {
	case domain.ContinueDevelopment:
		return color.GreenString(string(r))
	case domain.OutLicenseNow:
		return color.YellowString(string(r))
	default:
		return string(r)
	}
}
