package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/web"
)

// NewLaunchPriceCmd derives a launch price from the target market.
func NewLaunchPriceCmd() *cobra.Command {
	var (
		scenario       string
		marketValue    float64
		marketSize     int64
		penetrationPct float64
		adoptionPct    float64
		order          int
		elasticity     float64
		treated        int64
		diagnosed      int64
	)

	cmd := &cobra.Command{
		Use:   "launch-price",
		Short: "Value-based launch price and projected revenue",
		Example: `  valuation launch-price --market-value 800 --market-size 50000 --penetration 40
  valuation launch-price --treated 30000 --diagnosed 60000 --adoption 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			in := domain.DefaultLaunchPriceInputs()
			in.Elasticity = cliCtx.Settings.Elasticity
			if scenario != "" {
				sc, err := readScenario(scenario)
				if err != nil {
					return err
				}
				if sc.LaunchPrice != nil {
					in = *sc.LaunchPrice
				}
			}

			fs := cmd.Flags()
			if fs.Changed("market-value") {
				in.MarketValue = marketValue
			}
			if fs.Changed("market-size") {
				in.MarketSize = marketSize
			}
			if fs.Changed("penetration") {
				in.PenetrationRate = penetrationPct / 100
			}
			if fs.Changed("adoption") {
				in.AdoptionRate = adoptionPct / 100
			}
			if fs.Changed("order") {
				in.OrderOfEntry = order
			}
			if fs.Changed("elasticity") {
				in.Elasticity = elasticity
			}

			req := &appvaluation.LaunchPriceRequest{Inputs: in}
			if fs.Changed("treated") || fs.Changed("diagnosed") {
				req.Funnel = &appvaluation.Funnel{
					TreatedPatients:   treated,
					DiagnosedPatients: diagnosed,
					AdoptionRate:      in.AdoptionRate,
				}
			}

			ctx, cancel := cliCtx.Context(cmd)
			defer cancel()
			res, err := cliCtx.Backend.LaunchPrice(ctx, req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, launchPriceView{res: res})
		},
	}

	f := cmd.Flags()
	f.StringVar(&scenario, "scenario", "", "YAML scenario file with launch price inputs")
	f.Float64Var(&marketValue, "market-value", 0, "total market value in $M")
	f.Int64Var(&marketSize, "market-size", 0, "patients in the target market")
	f.Float64Var(&penetrationPct, "penetration", 0, "expected market penetration in %")
	f.Float64Var(&adoptionPct, "adoption", 0, "adoption rate among treated patients in %")
	f.IntVar(&order, "order", 0, "order of market entry (1 = first)")
	f.Float64Var(&elasticity, "elasticity", 0, "price elasticity of demand (> 0)")
	f.Int64Var(&treated, "treated", 0, "treated patients, with --diagnosed derives penetration")
	f.Int64Var(&diagnosed, "diagnosed", 0, "diagnosed patients")
	return cmd
}

type launchPriceView struct {
	res *appvaluation.LaunchPriceResponse
}

func (v launchPriceView) Title() string { return "Launch price" }

func (v launchPriceView) TableHeaders() []string { return []string{"Metric", "Value"} }

func (v launchPriceView) TableRows() [][]string {
	r := v.res.Result
	rows := [][]string{}
	if p := v.res.Penetration; p != nil {
		rows = append(rows,
			[]string{"Treatment rate", web.Percent(p.TreatmentRate)},
			[]string{"Estimated penetration", web.Percent(p.Penetration)},
		)
	}
	return append(rows,
		[]string{"Market value", web.Money(r.MarketValue)},
		[]string{fmt.Sprintf("Adjusted for entry (x%.2f)", r.OrderFactor), web.Money(r.AdjustedMarketValue)},
		[]string{"Effective patients", web.Count(r.EffectivePatients)},
		[]string{"Value-based price", web.Price(r.ValueBasedPrice)},
		[]string{"General price", web.Price(r.GeneralPrice)},
		[]string{"Adoption patients", web.Count(r.AdoptionPatients)},
		[]string{"Adoption price", web.Price(r.AdoptionPrice)},
		[]string{"Market share revenue", web.Money(r.MarketShareRevenue)},
	)
}

func (v launchPriceView) Highlights() []string {
	r := v.res.Result
	return []string{
		fmt.Sprintf("Recommended price at elasticity %.2f: %s", r.Elasticity, web.Price(r.RecommendedPrice)),
		fmt.Sprintf("Achieved penetration %s, projected revenue %s", web.Percent(r.AchievedPenetration), web.Money(r.ProjectedRevenue)),
	}
}

func (v launchPriceView) Payload() interface{} { return v.res }
