package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forPelevin/takecut/internal/bundle"
	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/store"
	"github.com/forPelevin/takecut/internal/types"
	"github.com/forPelevin/takecut/internal/usecase"
)

const (
	KindProcess = "process"
	KindEdit    = "edit"
	KindCut     = "cut"
	KindSplit   = "split"
)

type RunResult struct {
	ID       string         `json:"id,omitempty"`
	Dir      string         `json:"dir"`
	Manifest types.Manifest `json:"manifest"`
}

// outcome is what a run body hands back for recording.
type outcome struct {
	manifest types.Manifest
	outputs  []store.Output
	// bundleExtras are added at the archive root next to the exports.
	bundleExtras []string
}

func (r *Runner) Process(ctx context.Context, input, script string) (RunResult, error) {
	if r.cfg.needsAPIKey() && r.cfg.OpenAI.APIKey == "" {
		return RunResult{}, ErrMissingAPIKey
	}
	return r.execute(ctx, KindProcess, input, func(l layout) (outcome, error) {
		res, err := r.uc.Process(ctx, usecase.ProcessInput{
			Source:     l.input,
			Script:     script,
			Buffer:     r.cfg.Padding,
			CacheDir:   l.cache,
			ExportsDir: l.exports,
		})
		var segErr *usecase.SegmentExtractionError
		if err == nil || errors.As(err, &segErr) {
			if werr := writeJSON(filepath.Join(l.dir, "edits.json"), res.Payload); werr != nil {
				r.logger.Warn().Err(werr).Msg("failed to save edits.json")
			}
		}
		return r.editOutcome(KindProcess, l, res, err)
	})
}

// Edit cuts a ready-made edit list.
func (r *Runner) Edit(ctx context.Context, input string, payload edits.Payload) (RunResult, error) {
	return r.execute(ctx, KindEdit, input, func(l layout) (outcome, error) {
		res, err := r.uc.Edit(ctx, usecase.EditInput{
			Source:     l.input,
			Payload:    payload,
			Buffer:     r.cfg.Padding,
			ExportsDir: l.exports,
		})
		if err == nil {
			if werr := writeJSON(filepath.Join(l.dir, "edits.json"), payload); werr != nil {
				return outcome{}, werr
			}
		}
		return r.editOutcome(KindEdit, l, res, err)
	})
}

func (r *Runner) editOutcome(kind string, l layout, res usecase.Result, err error) (outcome, error) {
	if err != nil {
		return outcome{outputs: segmentOutputs(res.Segments, store.RoleSegment)}, err
	}
	m := types.Manifest{
		Kind:     kind,
		Input:    l.input,
		Duration: res.Media.Duration,
		HasAudio: res.Media.HasAudio,
		Padding:  r.cfg.Padding,
		Warnings: res.Warnings,
	}
	var total float64
	for _, s := range res.Segments {
		m.Segments = append(m.Segments, manifestSegment(l.dir, s))
		total += s.Range.Duration()
	}
	m.Assembled = relPath(l.dir, res.Assembled)

	o := outcome{manifest: m, outputs: segmentOutputs(res.Segments, store.RoleSegment)}
	if len(res.Segments) > 0 {
		o.outputs = append(o.outputs, store.Output{Path: res.Assembled, EndSec: total, Role: store.RoleAssembled})
		o.bundleExtras = append(o.bundleExtras, res.Assembled)
	}
	if res.Subtitles != "" {
		o.outputs = append(o.outputs, store.Output{Path: res.Subtitles, EndSec: total, Role: store.RoleSubtitles})
	}
	return o, nil
}

// Cut writes one exact range; start and end are already parsed seconds.
func (r *Runner) Cut(ctx context.Context, input string, start, end float64) (RunResult, error) {
	return r.execute(ctx, KindCut, input, func(l layout) (outcome, error) {
		res, err := r.uc.CutRange(ctx, usecase.CutInput{Source: l.input, Start: start, End: end, OutDir: l.exports})
		return filesOutcome(KindCut, l, res, err, store.RoleCut)
	})
}

func (r *Runner) Split(ctx context.Context, input string, parts int) (RunResult, error) {
	return r.execute(ctx, KindSplit, input, func(l layout) (outcome, error) {
		res, err := r.uc.SplitEven(ctx, usecase.SplitInput{Source: l.input, Parts: parts, OutDir: l.exports})
		return filesOutcome(KindSplit, l, res, err, store.RolePart)
	})
}

func filesOutcome(kind string, l layout, res usecase.FilesResult, err error, role string) (outcome, error) {
	o := outcome{outputs: segmentOutputs(res.Outputs, role)}
	if err != nil {
		return o, err
	}
	o.manifest = types.Manifest{
		Kind:     kind,
		Input:    l.input,
		Duration: res.Media.Duration,
		HasAudio: res.Media.HasAudio,
		Warnings: res.Warnings,
	}
	for _, out := range res.Outputs {
		o.manifest.Segments = append(o.manifest.Segments, manifestSegment(l.dir, out))
	}
	return o, nil
}

// execute serializes runs, records them in the ledger and writes the
// manifest and bundle of a successful run.
func (r *Runner) execute(ctx context.Context, kind, input string, body func(layout) (outcome, error)) (RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.newLayout(input)
	if err != nil {
		return RunResult{}, err
	}
	res := RunResult{Dir: l.dir}
	log := r.logger.With().Str("kind", kind).Str("input", l.input).Logger()
	log.Info().Str("dir", l.dir).Msg("run started")

	var run *store.Run
	if r.store != nil {
		if run, err = r.store.CreateRun(ctx, kind, l.input, l.dir); err != nil {
			return res, fmt.Errorf("ledger: %w", err)
		}
		res.ID = run.ID
	}

	o, runErr := body(l)
	if runErr == nil {
		runErr = r.finalize(l, &o)
	}
	res.Manifest = o.manifest

	if run != nil {
		// the ledger outlives a cancelled run
		if err := r.store.FinishRun(context.WithoutCancel(ctx), run.ID, runErr, o.outputs); err != nil {
			log.Warn().Err(err).Msg("failed to record run")
		}
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("run failed")
		return res, runErr
	}
	log.Info().Int("outputs", len(o.outputs)).Msg("run finished")
	return res, nil
}

func (r *Runner) finalize(l layout, o *outcome) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	if r.cfg.Bundle && dirExists(l.exports) {
		zipPath := filepath.Join(l.dir, "bundle.zip")
		names, err := bundle.Write(zipPath, l.exports, o.bundleExtras...)
		if err != nil {
			return err
		}
		o.manifest.Bundle = relPath(l.dir, zipPath)
		o.outputs = append(o.outputs, store.Output{Path: zipPath, Role: store.RoleBundle})
		r.logger.Info().Int("files", len(names)).Str("path", zipPath).Msg("bundle written")
	}
	return writeJSON(filepath.Join(l.dir, "manifest.json"), o.manifest)
}

func (r *Runner) Runs(ctx context.Context, limit int) ([]*store.Run, error) {
	if r.store == nil {
		return nil, ErrNoLedger
	}
	return r.store.ListRuns(ctx, limit)
}

func (r *Runner) Run(ctx context.Context, id string) (*store.Run, error) {
	if r.store == nil {
		return nil, ErrNoLedger
	}
	return r.store.GetRun(ctx, id)
}

func segmentOutputs(outs []usecase.Output, role string) []store.Output {
	res := make([]store.Output, 0, len(outs))
	for _, o := range outs {
		res = append(res, store.Output{
			Ordinal:  o.Ordinal,
			Path:     o.Path,
			StartSec: o.Range.Start,
			EndSec:   o.Range.End,
			Role:     role,
		})
	}
	return res
}

func manifestSegment(dir string, o usecase.Output) types.ManifestSegment {
	return types.ManifestSegment{
		Ordinal:  o.Ordinal,
		StartSec: o.Range.Start,
		EndSec:   o.Range.End,
		File:     relPath(dir, o.Path),
		Snippet:  o.Snippet,
		NoAudio:  o.NoAudio,
	}
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func dirExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
