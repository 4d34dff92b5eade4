// Package main implements the a11yscan CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"a11yscan/internal/config"
	"a11yscan/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string

	// Scan flags, applied over the config file when set
	flagStandard    string
	flagIgnore      []string
	flagWait        int
	flagLevel       string
	flagConcurrency int
	flagCapture     string
	flagHTMLCS      string
	flagDebuggerURL string

	// Loaded configuration
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd scans the URLs it is given.
var rootCmd = &cobra.Command{
	Use:   "a11yscan [url...]",
	Short: "Run HTML CodeSniffer against web pages and report accessibility findings",
	Long: `a11yscan loads each page in Chrome, runs HTML CodeSniffer against it and
prints the findings as JSON on stdout.

Exit status is 0 when no finding reaches --level, 2 when one does, and 1 when
a page or the engine fails.

Examples:
  a11yscan https://example.com
  a11yscan --standard WCAG2AAA --ignore notice https://example.com
  a11yscan --capture run.yaml https://example.com && a11yscan replay run.yaml --ignore warning`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		if err := logging.Initialize(loaded.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		logger = logging.Root()
		logging.Get(logging.CategoryBoot).Debug("loaded config %s (standard %s, level %s)", configPath, cfg.Standard, cfg.Level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runScan,
}

var scanCmd = &cobra.Command{
	Use:   "scan [url...]",
	Short: "Scan one or more pages (same as the root command)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

var replayCmd = &cobra.Command{
	Use:   "replay [capture.yaml]",
	Short: "Re-normalize a captured engine run without a browser",
	Long: `Loads a capture written by --capture and normalizes it again with the
current --ignore list, printing the findings as a scan would.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "a11yscan %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVarP(&configPath, "config", "c", ".a11yscan.yaml", "Config file (missing file means defaults)")
	pf.StringVarP(&flagStandard, "standard", "s", "", "Standard: Section508, WCAG2A, WCAG2AA, WCAG2AAA")
	pf.StringSliceVarP(&flagIgnore, "ignore", "i", nil, "Rule code or type (error, warning, notice) to ignore; repeatable")
	pf.StringVarP(&flagLevel, "level", "l", "", "Lowest finding type that fails the run: error, warning, notice, none")

	scanFlags := func(cmd *cobra.Command) {
		f := cmd.Flags()
		f.IntVarP(&flagWait, "wait", "w", 0, "Milliseconds to wait between processing and collecting messages")
		f.IntVar(&flagConcurrency, "concurrency", 0, "Pages scanned in parallel")
		f.StringVar(&flagCapture, "capture", "", "Write the raw engine run to this YAML file")
		f.StringVar(&flagHTMLCS, "htmlcs", "", "Path to a local HTMLCS.js build")
		f.StringVar(&flagDebuggerURL, "debugger-url", "", "Attach to a running Chrome instead of launching one")
	}
	scanFlags(rootCmd)
	scanFlags(scanCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("standard") {
		c.Standard = flagStandard
	}
	if f.Changed("ignore") {
		c.Ignore = append(c.Ignore, flagIgnore...)
	}
	if f.Changed("level") {
		c.Level = flagLevel
	}
	if f.Changed("wait") {
		c.Wait = flagWait
	}
	if f.Changed("concurrency") {
		c.Concurrency = flagConcurrency
	}
	if f.Changed("htmlcs") {
		c.Engine.ScriptPath = flagHTMLCS
	}
	if f.Changed("debugger-url") {
		c.Browser.DebuggerURL = flagDebuggerURL
	}
	if verbose {
		c.Logging.Level = "debug"
	}
}
