package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/takecut/internal/domain/timerange"
	"github.com/forPelevin/takecut/internal/pipeline"
	"github.com/forPelevin/takecut/internal/usecase"
)

func newProcessCmd(a *app) *cobra.Command {
	var script, scriptFile string
	cmd := &cobra.Command{
		Use:   "process <input>",
		Short: "Transcribe, find the takes that match a script and cut them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readScript(script, scriptFile)
			if err != nil {
				return err
			}
			r, err := a.newRunner()
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Process(cmd.Context(), args[0], text)
			return report(cmd.OutOrStdout(), res, err)
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Script text")
	cmd.Flags().StringVar(&scriptFile, "script-file", "", "Read the script from a file")
	cmd.MarkFlagsMutuallyExclusive("script", "script-file")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <input> <edits.json>",
		Short: "Cut the ranges listed in an edits file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := usecase.LoadPayload(args[1])
			if err != nil {
				return err
			}
			r, err := a.newRunner()
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Edit(cmd.Context(), args[0], payload)
			return report(cmd.OutOrStdout(), res, err)
		},
	}
}

func newCutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cut <input> <start> <end>",
		Short: "Cut one range; times are seconds or HH:MM:SS",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args[1], args[2])
			if err != nil {
				return err
			}
			r, err := a.newRunner()
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Cut(cmd.Context(), args[0], start, end)
			return report(cmd.OutOrStdout(), res, err)
		},
	}
}

func newSplitCmd(a *app) *cobra.Command {
	var parts int
	cmd := &cobra.Command{
		Use:   "split <input>",
		Short: "Split a video into equal parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRunner()
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Split(cmd.Context(), args[0], parts)
			return report(cmd.OutOrStdout(), res, err)
		},
	}
	cmd.Flags().IntVar(&parts, "parts", 2, "Number of parts (2 to 1000)")
	return cmd
}

func readScript(script, path string) (string, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		script = string(b)
	}
	if strings.TrimSpace(script) == "" {
		return "", errors.New("a script is required (--script or --script-file)")
	}
	return script, nil
}

func parseRange(startText, endText string) (float64, float64, error) {
	start, err := timerange.ParseTimestamp(startText)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	end, err := timerange.ParseTimestamp(endText)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

// report prints what a run produced. A failed run still lists its
// directory when one was created.
func report(w io.Writer, res pipeline.RunResult, runErr error) error {
	if runErr != nil {
		var segErr *usecase.SegmentExtractionError
		if errors.As(runErr, &segErr) && res.Dir != "" {
			fmt.Fprintf(w, "partial output kept in %s\n", res.Dir)
		}
		return runErr
	}

	m := res.Manifest
	if res.ID != "" {
		fmt.Fprintf(w, "run:       %s\n", res.ID)
	}
	fmt.Fprintf(w, "output:    %s\n", res.Dir)
	for _, s := range m.Segments {
		fmt.Fprintf(w, "  %3d  %8.2f - %-8.2f  %s\n", s.Ordinal, s.StartSec, s.EndSec, s.File)
	}
	if m.Assembled != "" {
		fmt.Fprintf(w, "assembled: %s\n", inDir(res.Dir, m.Assembled))
	}
	if m.Bundle != "" {
		fmt.Fprintf(w, "bundle:    %s\n", inDir(res.Dir, m.Bundle))
	}
	for _, warn := range m.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

// inDir resolves a manifest path; paths outside the run dir are absolute.
func inDir(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, filepath.FromSlash(p))
}
