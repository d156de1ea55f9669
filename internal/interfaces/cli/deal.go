package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/web"
)

// NewDealCmd values a licensing offer against the asset value at its stage.
func NewDealCmd() *cobra.Command {
	var (
		flags        inputFlags
		stage        string
		upfront      float64
		milestones   []string
		royaltyPct   float64
		dealDiscount float64
		desiredShare float64
	)

	cmd := &cobra.Command{
		Use:   "deal",
		Short: "Deal value and licensee/licensor ownership split",
		Example: `  valuation deal --stage phase2 --upfront 50 --milestone "phase3 start:100:2" --royalty-rate 5
  valuation deal --stage phase3 --upfront 120 --desired-share 30`,
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

			fs := cmd.Flags()
			terms := domain.DealTerms{DiscountRate: in.DiscountRate}
			fromScenario := flags.scenario != "" && sc.Deal != nil
			if fromScenario {
				terms = *sc.Deal
			}
			if !fromScenario || fs.Changed("stage") {
				if terms.Stage, err = parsePhaseArg("stage", stage); err != nil {
					return err
				}
			}
			if fs.Changed("upfront") {
				terms.Upfront = upfront
			}
			if fs.Changed("milestone") {
				terms.Milestones = terms.Milestones[:0:0]
				for _, raw := range milestones {
					m, err := parseMilestone(raw)
					if err != nil {
						return err
					}
					terms.Milestones = append(terms.Milestones, m)
				}
			}
			if fs.Changed("royalty-rate") {
				terms.RoyaltyRate = royaltyPct / 100
			}
			switch {
			case fs.Changed("deal-discount-rate"):
				terms.DiscountRate = dealDiscount / 100
			case fs.Changed("discount-rate"):
				terms.DiscountRate = in.DiscountRate
			}

			req := &appvaluation.DealRequest{Inputs: in, Terms: terms}
			if fs.Changed("desired-share") {
				req.DesiredSharePct = &desiredShare
			}

			ctx, cancel := cliCtx.Context(cmd)
			defer cancel()
			res, err := cliCtx.Backend.Deal(ctx, req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, dealView{res: res})
		},
	}

	flags.bind(cmd.Flags())
	cmd.Flags().StringVar(&stage, "stage", "phase2", "development stage at which the deal is signed")
	cmd.Flags().Float64Var(&upfront, "upfront", 0, "upfront payment in $M")
	cmd.Flags().StringArrayVar(&milestones, "milestone", nil, "milestone as label:amount:years (repeatable)")
	cmd.Flags().Float64Var(&royaltyPct, "royalty-rate", 0, "royalty rate on launch value in %")
	cmd.Flags().Float64Var(&dealDiscount, "deal-discount-rate", 0, "discount rate for milestones in % (default: --discount-rate)")
	cmd.Flags().Float64Var(&desiredShare, "desired-share", 0, "licensee share in % to price")
	return cmd
}

type dealView struct {
	res *appvaluation.DealResponse
}

func (v dealView) Title() string {
	return fmt.Sprintf("Licensing deal at %s", v.res.Deal.Stage.Label())
}

func (v dealView) TableHeaders() []string { return []string{"Component", "Terms", "Present value"} }

func (v dealView) TableRows() [][]string {
	d := v.res.Deal
	rows := [][]string{{"Upfront", "", web.Money(d.Upfront)}}
	for i, m := range d.Milestones {
		label := m.Label
		if label == "" {
			label = fmt.Sprintf("Milestone %d", i+1)
		}
		rows = append(rows, []string{label,
			fmt.Sprintf("%s in %s", web.Money(m.Amount), web.Years(m.Years)),
			web.Money(m.PresentValue)})
	}
	rows = append(rows,
		[]string{"Royalties", "", web.Money(d.RoyaltyValue)},
		[]string{"Total deal value", "", web.Money(d.TotalDealValue)},
	)
	return rows
}

func (v dealView) Highlights() []string {
	d := v.res.Deal
	lines := []string{
		fmt.Sprintf("Asset value at %s: %s (%s per 1%%)", d.Stage.Label(), web.Money(d.StageValue), web.MoneyPrecise(d.ValuePerPercent)),
		fmt.Sprintf("Ownership: licensee %s%%, licensor %s%%", d.Split.Licensee.StringFixed(1), d.Split.Licensor.StringFixed(1)),
		fmt.Sprintf("Assessment: %s", colorizeFairness(d.Fairness)),
	}
	if v.res.RequiredDealValue != nil && v.res.DesiredSharePct != nil {
		lines = append(lines, fmt.Sprintf("A %.1f%% share requires a deal value of %s",
			*v.res.DesiredSharePct, web.Money(*v.res.RequiredDealValue)))
	}
	return lines
}

func (v dealView) Payload() interface{} { return v.res }

func colorizeFairness(f domain.Fairness) string {
	switch f {
	case domain.Undervalued:
		return color.YellowString(f.Label())
	case domain.Overvalued:
		return color.RedString(f.Label())
	default:
		return color.GreenString(f.Label())
	}
}
