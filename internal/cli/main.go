package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/forPelevin/takecut/internal/config"
	"github.com/forPelevin/takecut/internal/logging"
	"github.com/forPelevin/takecut/internal/pipeline"
)

// maxTraceLines bounds the --verbose error trace.
const maxTraceLines = 6

type rootFlags struct {
	configPath string
	verbose    bool

	out     string
	padding float64
	bundle  bool
	planner string
	asr     string
}

// app carries the resolved configuration into subcommands.
type app struct {
	flags rootFlags
	cfg   *config.Config
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	root := newRootCmd(a)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err, a.flags.verbose)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "takecut",
		Short:         "Cut the usable takes out of raw footage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.Init(a.flags.verbose)
			cfg, err := config.Load(a.flags.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			applyFlags(cmd, cfg, a.flags)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Config file (default ./takecut.yaml or ~/.takecut/config.yaml)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Debug logging and error traces")
	pf.StringVar(&a.flags.out, "out", "out", "Output directory")
	pf.Float64Var(&a.flags.padding, "padding", 2.0, "Seconds added around each take")
	pf.BoolVar(&a.flags.bundle, "bundle", true, "Write bundle.zip with the exports")
	pf.StringVar(&a.flags.planner, "planner", config.PlannerOpenAI, "Edit planner: openai or align")
	pf.StringVar(&a.flags.asr, "asr", config.ASROpenAI, "Speech recognition: openai or whispercpp")

	root.AddCommand(
		newProcessCmd(a),
		newEditCmd(a),
		newCutCmd(a),
		newSplitCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// applyFlags copies explicitly set flags over file and environment values.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f rootFlags) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutDir = f.out
	}
	if flags.Changed("padding") {
		cfg.Padding = f.padding
	}
	if flags.Changed("bundle") {
		cfg.Bundle = f.bundle
	}
	if flags.Changed("planner") {
		cfg.Planner = f.planner
	}
	if flags.Changed("asr") {
		cfg.ASR = f.asr
	}
}

func (a *app) newRunner() (*pipeline.Runner, error) {
	return pipeline.New(pipeline.ConfigFrom(a.cfg), log.Logger)
}

func printError(w io.Writer, err error, verbose bool) {
	fmt.Fprintln(w, err)
	if !verbose {
		return
	}
	for i, line := range errorTrace(err) {
		if i == maxTraceLines {
			break
		}
		fmt.Fprintf(w, "  caused by: %s\n", line)
	}
}

// errorTrace lists the wrapped causes below err, outermost first.
func errorTrace(err error) []string {
	var out []string
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		out = append(out, cause.Error())
	}
	return out
}
