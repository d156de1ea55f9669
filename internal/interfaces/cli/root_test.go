package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanRGustafsson/valuation-model/internal/app"
	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/config"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func runJSON(t *testing.T, dst interface{}, args ...string) {
	t.Helper()
	out, err := run(t, append(args, "-o", "json")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), dst), out)
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "valuation", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "npv", "deal", "strategy", "launch-price", "sensitivity", "scenario", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	for _, flag := range []string{"config", "log-level", "output", "verbose", "no-color", "timeout", "server"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestRoot_RejectsUnknownOutput(t *testing.T) {
	_, err := run(t, "npv", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestNPV_Defaults(t *testing.T) {
	var res domain.NPVResult
	runJSON(t, &res, "npv")

	require.Len(t, res.Phases, len(domain.Phases()))
	assert.InDelta(t, 1000, res.Value(domain.Launched), 1e-9)
	assert.Equal(t, 0.12, res.DiscountRate)
}

func TestNPV_FlagsOverrideDefaults(t *testing.T) {
	var res domain.NPVResult
	runJSON(t, &res, "npv", "--order", "2", "--probability", "phase1=50", "--discount-rate", "10")

	assert.InDelta(t, 670, res.Value(domain.Launched), 1e-9)
	assert.Equal(t, 0.10, res.DiscountRate)
	pv, ok := res.Valuation(domain.Phase1)
	require.True(t, ok)
	assert.InDelta(t, 0.5*0.8*0.9*0.95, pv.CumulativeProbability, 1e-9)
}

func TestNPV_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown phase", []string{"--probability", "phase9=50"}, "--probability"},
		{"launched override", []string{"--cost", "launched=10"}, "launched"},
		{"not a number", []string{"--duration", "phase2=soon"}, "not a number"},
		{"discount above 100", []string{"--discount-rate", "150"}, "discount_rate"},
		{"order zero", []string{"--order", "0"}, "order_of_entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"npv"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.want))
		})
	}
}

func TestNPV_TextAndTableOutput(t *testing.T) {
	text, err := run(t, "npv")
	require.NoError(t, err)
	assert.Contains(t, text, "Risk-adjusted NPV by phase")
	assert.Contains(t, text, "$1,000.0M")
	assert.Contains(t, text, "Value at launch")

	table, err := run(t, "npv", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, table, "|")
	assert.Contains(t, table, "Cum. probability")

	excluded, err := run(t, "npv", "--no-rd-costs")
	require.NoError(t, err)
	assert.Contains(t, excluded, "excluded")
}

func TestDeal(t *testing.T) {
	var res appvaluation.DealResponse
	runJSON(t, &res, "deal",
		"--stage", "phase2",
		"--upfront", "50",
		"--milestone", "phase3 start:30:2",
		"--desired-share", "40")

	d := res.Deal
	assert.Equal(t, domain.Phase2, d.Stage)
	require.Len(t, d.Milestones, 1)
	assert.Equal(t, "phase3 start", d.Milestones[0].Label)
	assert.InDelta(t, 30/math.Pow(1.12, 2), d.Milestones[0].PresentValue, 1e-9)
	assert.InDelta(t, 50+d.MilestoneValue, d.TotalDealValue, 1e-9)
	assert.Equal(t, "100", d.Split.Total().String())

	require.NotNil(t, res.RequiredDealValue)
	assert.InDelta(t, 0.4*d.StageValue, *res.RequiredDealValue, 1e-9)
}

func TestDeal_TextOutput(t *testing.T) {
	out, err := run(t, "deal", "--upfront", "10", "--royalty-rate", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Licensing deal at Phase 2")
	assert.Contains(t, out, "Ownership: licensee")
	assert.Contains(t, out, "Assessment:")
}

func TestDeal_InvalidMilestone(t *testing.T) {
	_, err := run(t, "deal", "--milestone", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label:amount:years")

	_, err = run(t, "deal", "--stage", "phase7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--stage")
}

func TestStrategy_AtFiled(t *testing.T) {
	var res domain.StrategicDecision
	runJSON(t, &res, "strategy", "--stage", "filed", "--out-license", "40")

	require.NotNil(t, res.NextPhase)
	assert.Equal(t, domain.Launched, *res.NextPhase)
	assert.InDelta(t, 40, res.OutLicensePercent, 1e-9)
	assert.Contains(t, []domain.Recommendation{
		domain.ContinueDevelopment, domain.OutLicenseNow, domain.EitherOption,
	}, res.Recommendation)

	text, err := run(t, "strategy", "--stage", "filed")
	require.NoError(t, err)
	assert.Contains(t, text, "Recommendation: "+string(res.Recommendation))
}

func TestLaunchPrice_Funnel(t *testing.T) {
	var res appvaluation.LaunchPriceResponse
	runJSON(t, &res, "launch-price", "--treated", "30000", "--diagnosed", "60000", "--adoption", "60")

	require.NotNil(t, res.Penetration)
	assert.InDelta(t, 0.5, res.Penetration.TreatmentRate, 1e-9)
	assert.InDelta(t, 0.3, res.Penetration.Penetration, 1e-9)
}

func TestLaunchPrice_MarketFlags(t *testing.T) {
	var res appvaluation.LaunchPriceResponse
	runJSON(t, &res, "launch-price", "--market-value", "500", "--market-size", "10000", "--penetration", "50")

	assert.Nil(t, res.Penetration)
	assert.InDelta(t, 500, res.Result.AdjustedMarketValue, 1e-9)
	assert.InDelta(t, 500*1e6/(10000*0.5), res.Result.ValueBasedPrice, 1e-6)
}

func TestSensitivity_Top(t *testing.T) {
	var res domain.SensitivityResult
	runJSON(t, &res, "sensitivity", "--phase", "phase1", "--top", "3")

	assert.Equal(t, domain.Phase1, res.Phase)
	assert.InDelta(t, domain.DefaultShock, res.Shock, 1e-9)
	require.Len(t, res.Drivers, 3)
	assert.True(t, sort.SliceIsSorted(res.Drivers, func(i, j int) bool {
		return res.Drivers[i].Spread > res.Drivers[j].Spread
	}))
}

func TestScenario_InitShowAndUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset.yaml")

	out, err := run(t, "scenario", "init", path, "--name", "lead asset")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	_, err = run(t, "scenario", "init", path)
	require.Error(t, err, "existing file needs --force")

	shown, err := run(t, "scenario", "show", path)
	require.NoError(t, err)
	assert.Contains(t, shown, "Scenario lead asset")
	assert.Contains(t, shown, "Preclinical")

	// edit the launch value and compute from the file
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.Replace(string(data), "launch_value: 1000", "launch_value: 2000", 1)
	require.NotEqual(t, string(data), edited)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	var res domain.NPVResult
	runJSON(t, &res, "npv", "--scenario", path)
	assert.InDelta(t, 2000, res.Value(domain.Launched), 1e-9)
}

func TestScenario_InitToStdout(t *testing.T) {
	out, err := run(t, "scenario", "init")
	require.NoError(t, err)

	sc, err := domain.LoadScenario(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultInputs(), sc.Inputs)
}

func TestScenario_ShowRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inputs:\n  launch_value: -5\n"), 0o644))

	_, err := run(t, "scenario", "show", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch_value")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "valuation "+Version)

	var info BuildInfo
	runJSON(t, &info, "version")
	assert.Equal(t, Version, info.Version)
}

func TestConfigFileSetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valuation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("valuation:\n  launch_value: 500\n"), 0o600))

	var res domain.NPVResult
	runJSON(t, &res, "--config", path, "npv")
	assert.InDelta(t, 500, res.Value(domain.Launched), 1e-9)
}

func newRemoteServer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	a, err := app.New(context.Background(), cfg, nil, "test")
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close(context.Background())
	})
	return srv.URL
}

func TestRemoteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	url := newRemoteServer(t, cfg)

	var local, remote domain.NPVResult
	runJSON(t, &local, "npv", "--order", "2")
	runJSON(t, &remote, "--server", url, "npv", "--order", "2")
	assert.Equal(t, local, remote)

	var deal appvaluation.DealResponse
	runJSON(t, &deal, "--server", url, "deal", "--stage", "phase3", "--upfront", "100", "--desired-share", "25")
	assert.Equal(t, domain.Phase3, deal.Deal.Stage)
	require.NotNil(t, deal.RequiredDealValue)

	var decision domain.StrategicDecision
	runJSON(t, &decision, "--server", url, "strategy", "--stage", "phase2")
	assert.NotEmpty(t, decision.Recommendation)

	var price appvaluation.LaunchPriceResponse
	runJSON(t, &price, "--server", url, "launch-price", "--treated", "10", "--diagnosed", "20")
	require.NotNil(t, price.Penetration)

	var sens domain.SensitivityResult
	runJSON(t, &sens, "--server", url, "sensitivity", "--top", "2")
	assert.Len(t, sens.Drivers, 2)
}

func TestRemoteBackend_APIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cfg.Server.APIKeys = []string{"k-123"}
	url := newRemoteServer(t, cfg)

	_, err := run(t, "--server", url, "npv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")

	_, err = run(t, "--server", url, "--api-key", "k-123", "npv")
	require.NoError(t, err)
}

func TestFormatTable(t *testing.T) {
	plain := FormatTable([]string{"A", "B"}, [][]string{{"1", "2"}}, false)
	assert.NotContains(t, plain, "|")
	assert.Contains(t, plain, "A")

	bordered := FormatTable([]string{"A", "B"}, [][]string{{"1", "2"}}, true)
	assert.Contains(t, bordered, "|")

	assert.Empty(t, FormatTable(nil, nil, true))
}
