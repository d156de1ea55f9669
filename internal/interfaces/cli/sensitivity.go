package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/web"
)

// NewSensitivityCmd ranks the assumptions that move NPV the most.
func NewSensitivityCmd() *cobra.Command {
	var (
		flags    inputFlags
		phase    string
		shockPct float64
		top      int
	)

	cmd := &cobra.Command{
		Use:     "sensitivity",
		Short:   "Tornado analysis of the NPV at one phase",
		Example: `  valuation sensitivity --phase phase2 --shock 10 --top 5`,
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
			p, err := parsePhaseArg("phase", phase)
			if err != nil {
				return err
			}

			ctx, cancel := cliCtx.Context(cmd)
			defer cancel()
			res, err := cliCtx.Backend.Sensitivity(ctx, &appvaluation.SensitivityRequest{
				Inputs: in,
				Phase:  p,
				Shock:  shockPct / 100,
			})
			if err != nil {
				return err
			}
			if top > 0 && len(res.Drivers) > top {
				res.Drivers = res.Drivers[:top]
			}
			return PrintResult(cmd, sensitivityView{res: res})
		},
	}

	flags.bind(cmd.Flags())
	cmd.Flags().StringVar(&phase, "phase", "preclinical", "phase whose NPV is analysed")
	cmd.Flags().Float64Var(&shockPct, "shock", domain.DefaultShock*100, "relative change applied to each driver in %")
	cmd.Flags().IntVar(&top, "top", 0, "show only the largest drivers")
	return cmd
}

type sensitivityView struct {
	res *domain.SensitivityResult
}

func (v sensitivityView) Title() string {
	return fmt.Sprintf("NPV sensitivity at %s (+/-%.0f%%)", v.res.Phase.Label(), v.res.Shock*100)
}

func (v sensitivityView) TableHeaders() []string {
	return []string{"Driver", "Low input", "High input", "NPV low", "NPV high", "Spread"}
}

func (v sensitivityView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.Drivers))
	for _, d := range v.res.Drivers {
		rows = append(rows, []string{
			d.Label,
			fmt.Sprintf("%.4g", d.LowInput),
			fmt.Sprintf("%.4g", d.HighInput),
			colorMoney(d.LowNPV),
			colorMoney(d.HighNPV),
			web.Money(d.Spread),
		})
	}
	return rows
}

func (v sensitivityView) Highlights() []string {
	return []string{fmt.Sprintf("Base NPV: %s", web.Money(v.res.BaseNPV))}
}

func (v sensitivityView) Payload() interface{} { return v.res }
