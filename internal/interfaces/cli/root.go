package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/config"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/client"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo holds version information injected at build time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// CurrentBuildInfo reports the ldflags values.
func CurrentBuildInfo() BuildInfo {
	return BuildInfo{Version: Version, Commit: GitCommit, BuildDate: BuildDate}
}

// Output formats accepted by --output.
const (
	OutputText  = "text"
	OutputJSON  = "json"
	OutputTable = "table"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
	APIKey       string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	ConfigPath   string
	Logger       logging.Logger
	Backend      Backend
	Settings     appvaluation.Settings
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// Context derives a command context bounded by --timeout.
func (c *CLIContext) Context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// NewRootCommand creates the root cobra command with all global flags and subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "valuation",
		Short: "Risk-adjusted NPV, licensing deal and launch price calculator for drug assets",
		Long: "valuation values a pharmaceutical asset at each development phase, splits a\n" +
			"licensing deal into ownership shares, compares out-licensing with continued\n" +
			"development and derives a launch price. Percentages are entered as 0-100.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./valuation.yaml if present)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "global operation timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "calculate on a remote valuation server instead of locally")
	pf.StringVar(&opts.APIKey, "api-key", os.Getenv("VALUATION_API_KEY"), "API key for --server")

	cmd.AddCommand(
		NewServeCmd(),
		NewNPVCmd(),
		NewDealCmd(),
		NewStrategyCmd(),
		NewLaunchPriceCmd(),
		NewSensitivityCmd(),
		NewScenarioCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// persistentPreRun initializes config, logger and backend, then stores CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case OutputText, OutputJSON, OutputTable:
	default:
		return errors.Validation("output", fmt.Sprintf("unsupported output format %q (text, json, table)", opts.OutputFormat))
	}
	if opts.NoColor {
		color.NoColor = true
	}

	path := resolveConfigPath(opts.ConfigPath)
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	settings, err := cfg.Valuation.Settings()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	backend, err := initBackend(opts, settings, logger)
	if err != nil {
		return fmt.Errorf("backend initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		ConfigPath:   path,
		Logger:       logger,
		Backend:      backend,
		Settings:     settings,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
		Timeout:      opts.Timeout,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// resolveConfigPath returns the --config value, or the first default
// location that exists. Empty means environment and defaults only.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	searchPaths := []string{"./valuation.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".valuation", "config.yaml"))
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// initLogger creates a logger configured for CLI usage (output to stderr).
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := logging.LevelWarn
	switch strings.ToLower(opts.LogLevel) {
	case "debug":
		level = logging.LevelDebug
	case "info":
		level = logging.LevelInfo
	case "error":
		level = logging.LevelError
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}

	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// initBackend calculates in-process unless --server names a remote API.
func initBackend(opts *RootOptions, settings appvaluation.Settings, logger logging.Logger) (Backend, error) {
	if opts.ServerAddr != "" {
		c, err := client.NewClient(opts.ServerAddr,
			client.WithAPIKey(opts.APIKey),
			client.WithTimeout(opts.Timeout),
			client.WithUserAgent("valuation-cli/"+Version),
			client.WithLogger(clientLogger{logger}),
		)
		if err != nil {
			return nil, err
		}
		return NewRemoteBackend(c.Valuation()), nil
	}

	holder, err := appvaluation.NewSettingsHolder(settings)
	if err != nil {
		return nil, err
	}
	return appvaluation.NewService(session.NewMemoryStore(0, logger), holder, logger), nil
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// view is a printable calculation result.
type view interface {
	Title() string
	TableHeaders() []string
	TableRows() [][]string
	// Highlights are summary lines printed under the table.
	Highlights() []string
	// Payload is what --output json encodes.
	Payload() interface{}
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := OutputText
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}

	v, ok := data.(view)
	if format == OutputJSON {
		if ok {
			data = v.Payload()
		}
		return printJSON(cmd.OutOrStdout(), data)
	}
	if !ok {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", data)
		return err
	}
	return printView(cmd.OutOrStdout(), v, format == OutputTable)
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printView(w io.Writer, v view, bordered bool) error {
	if title := v.Title(); title != "" {
		fmt.Fprintf(w, "%s\n\n", color.New(color.Bold).Sprint(title))
	}
	if headers := v.TableHeaders(); len(headers) > 0 {
		fmt.Fprint(w, FormatTable(headers, v.TableRows(), bordered))
	}
	if lines := v.Highlights(); len(lines) > 0 {
		fmt.Fprintln(w)
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
	return nil
}

// FormatTable renders headers and rows. Without a border it is a plain
// column-aligned listing.
func FormatTable(headers []string, rows [][]string, bordered bool) string {
	if len(headers) == 0 {
		return ""
	}
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	if !bordered {
		table.SetBorder(false)
		table.SetHeaderLine(false)
		table.SetColumnSeparator("")
		table.SetCenterSeparator("")
		table.SetRowSeparator("")
		table.SetTablePadding("  ")
		table.SetNoWhiteSpace(true)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
	}
	table.AppendBulk(rows)
	table.Render()
	return buf.String()
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), describeError(err))
}

// describeError names the offending field for validation failures from
// either backend.
func describeError(err error) string {
	var apiErr *client.APIError
	if stderrors.As(err, &apiErr) && apiErr.Field != "" {
		return fmt.Sprintf("%s (field %s)", apiErr.Message, apiErr.Field)
	}
	return err.Error()
}

// clientLogger adapts the structured logger to the SDK's printf logger.
type clientLogger struct{ l logging.Logger }

func (c clientLogger) Debugf(format string, args ...interface{}) {
	c.l.Debug(fmt.Sprintf(format, args...))
}

func (c clientLogger) Infof(format string, args ...interface{}) {
	c.l.Info(fmt.Sprintf(format, args...))
}

func (c clientLogger) Errorf(format string, args ...interface{}) {
	c.l.Error(fmt.Sprintf(format, args...))
}
