package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/web"
)

// NewScenarioCmd manages YAML scenario files.
func NewScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Create and inspect scenario files",
		Long: "A scenario file stores the NPV inputs, deal terms and launch price inputs\n" +
			"of one asset. Pass it to the calculators with --scenario.",
	}
	cmd.AddCommand(newScenarioInitCmd(), newScenarioShowCmd())
	return cmd
}

func newScenarioInitCmd() *cobra.Command {
	var (
		name  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a scenario with the current defaults (stdout without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			sc := domain.DefaultScenario()
			sc.Inputs = cliCtx.Settings.Defaults
			sc.Deal.DiscountRate = sc.Inputs.DiscountRate
			sc.LaunchPrice.Elasticity = cliCtx.Settings.Elasticity
			if name != "" {
				sc.Name = name
			}

			if len(args) == 0 {
				return domain.SaveScenario(cmd.OutOrStdout(), sc)
			}
			flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(args[0], flag, 0o644)
			if err != nil {
				return fmt.Errorf("create scenario: %w", err)
			}
			if err := domain.SaveScenario(f, sc); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "scenario name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newScenarioShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Validate a scenario and print its inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := readScenario(args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, scenarioView{sc: sc})
		},
	}
}

type scenarioView struct {
	sc domain.Scenario
}

func (v scenarioView) Title() string {
	if v.sc.Name == "" {
		return "Scenario"
	}
	return "Scenario " + v.sc.Name
}

func (v scenarioView) TableHeaders() []string {
	return []string{"Phase", "Probability", "Cost", "Duration"}
}

func (v scenarioView) TableRows() [][]string {
	rows := make([][]string, 0, domain.DevelopmentPhaseCount)
	for _, p := range domain.DevelopmentPhases() {
		params := v.sc.Inputs.Phases.Get(p)
		rows = append(rows, []string{
			p.Label(),
			web.Percent(params.Probability),
			web.Money(params.Cost),
			web.Years(params.Duration),
		})
	}
	return rows
}

func (v scenarioView) Highlights() []string {
	in := v.sc.Inputs
	rd := "included"
	if !in.IncludeRDCosts {
		rd = "excluded"
	}
	lines := []string{
		fmt.Sprintf("Launch value %s, order of entry %d, discount rate %s, R&D costs %s",
			web.Money(in.LaunchValue), in.OrderOfEntry, web.Percent(in.DiscountRate), rd),
	}
	if d := v.sc.Deal; d != nil {
		lines = append(lines, fmt.Sprintf("Deal at %s: upfront %s, %d milestone(s), royalty %s",
			d.Stage.Label(), web.Money(d.Upfront), len(d.Milestones), web.Percent(d.RoyaltyRate)))
	}
	if lp := v.sc.LaunchPrice; lp != nil {
		lines = append(lines, fmt.Sprintf("Market %s across %s patients, penetration %s",
			web.Money(lp.MarketValue), web.Count(lp.MarketSize), web.Percent(lp.PenetrationRate)))
	}
	return lines
}

func (v scenarioView) Payload() interface{} { return v.sc }
