package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/web"
)

// NewNPVCmd values the asset at every development phase.
func NewNPVCmd() *cobra.Command {
	var flags inputFlags

	cmd := &cobra.Command{
		Use:   "npv",
		Short: "Risk-adjusted NPV at every development phase",
		Example: `  valuation npv --launch-value 1500 --order 2
  valuation npv --probability phase2=45 --cost phase3=300 --no-rd-costs
  valuation npv --scenario asset.yaml -o json`,
		Args: cobra.NoArgs,
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

			ctx, cancel := cliCtx.Context(cmd)
			defer cancel()
			res, err := cliCtx.Backend.NPV(ctx, in)
			if err != nil {
				return err
			}
			return PrintResult(cmd, npvView{in: in, res: res})
		},
	}
	flags.bind(cmd.Flags())
	return cmd
}

type npvView struct {
	in  domain.ValuationInputs
	res *domain.NPVResult
}

func (v npvView) Title() string { return "Risk-adjusted NPV by phase" }

func (v npvView) TableHeaders() []string {
	return []string{"Phase", "Cum. probability", "Years to market", "Risk-adj. value", "R&D costs", "NPV"}
}

func (v npvView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.Phases))
	for _, pv := range v.res.Phases {
		costs := web.Money(-pv.DiscountedCosts)
		if !v.in.IncludeRDCosts {
			costs = "excluded"
		}
		rows = append(rows, []string{
			pv.Phase.Label(),
			web.Percent(pv.CumulativeProbability),
			web.Years(pv.Periods),
			web.Money(pv.RiskAdjustedValue),
			costs,
			colorMoney(pv.NPV),
		})
	}
	return rows
}

func (v npvView) Highlights() []string {
	launched := v.res.Value(domain.Launched)
	return []string{
		fmt.Sprintf("Launch value %s, entering %s (factor %.2f), discounted at %s.",
			web.Money(v.res.LaunchValue), ordinalRank(v.res.OrderOfEntry), factorAt(v.res),
			web.Percent(v.res.DiscountRate)),
		fmt.Sprintf("Value at launch: %s", color.New(color.Bold).Sprint(web.Money(launched))),
	}
}

func (v npvView) Payload() interface{} { return v.res }

func factorAt(r *domain.NPVResult) float64 {
	if len(r.Phases) == 0 {
		return 0
	}
	return r.Phases[0].OrderFactor
}

func ordinalRank(rank int) string {
	return domain.DefaultEntrySchedule().RankLabel(rank)
}

// colorMoney paints negative values red.
func colorMoney(v float64) string {
	s := web.Money(v)
	if v < 0 {
		return color.RedString(s)
	}
	return s
}
