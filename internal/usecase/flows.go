package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/domain/naming"
	"github.com/forPelevin/takecut/internal/domain/split"
	"github.com/forPelevin/takecut/internal/domain/subtitles"
	"github.com/forPelevin/takecut/internal/domain/timerange"
	"github.com/forPelevin/takecut/internal/ports"
	"github.com/forPelevin/takecut/internal/types"
)

type ProcessInput struct {
	Source string
	Script string
	// Buffer is the padding in seconds, edits.DefaultBuffer for the standard cut.
	Buffer        float64
	CacheDir      string
	ExportsDir    string
	AssembledPath string
}

type EditInput struct {
	Source        string
	Payload       edits.Payload
	Buffer        float64
	ExportsDir    string
	AssembledPath string
}

type Result struct {
	Media      ports.MediaInfo
	Payload    edits.Payload
	Transcript types.Transcript
	Resolved   []edits.ResolvedSegment
	Extraction
	// Subtitles is an SRT for the assembled output, empty when nothing was spoken.
	Subtitles string
}

// Process runs transcription and planning, then cuts the planned takes.
func (u Usecase) Process(ctx context.Context, in ProcessInput) (Result, error) {
	if u.d.ASR == nil || u.d.Planner == nil {
		return Result{}, fmt.Errorf("process: transcription and planner backends are required")
	}
	info, err := u.probe(ctx, in.Source)
	if err != nil {
		return Result{}, err
	}
	if !info.HasAudio {
		return Result{}, fmt.Errorf("process %s: no audio track to transcribe", in.Source)
	}
	if err := ensureDir(in.CacheDir); err != nil {
		return Result{}, err
	}

	audio := filepath.Join(in.CacheDir, "audio"+u.d.ASR.AudioExt())
	u.d.Logger.Info().Str("audio", audio).Msg("extracting audio")
	if err := u.d.Media.ExtractAudio(ctx, in.Source, audio); err != nil {
		return Result{}, err
	}

	tr, err := u.d.ASR.Transcribe(ctx, audio, in.CacheDir)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}
	u.d.Logger.Info().Int("words", len(tr.AllWords())).Msg("transcribed")

	payload, err := u.d.Planner.Plan(ctx, tr, in.Script)
	if err != nil {
		return Result{}, fmt.Errorf("plan edits: %w", err)
	}
	u.d.Logger.Info().Int("candidates", len(payload.Edits)).Msg("planned")

	res, err := u.cut(ctx, in.Source, info, payload, in.Buffer, in.ExportsDir, in.AssembledPath)
	res.Transcript = tr
	if err != nil {
		return res, err
	}

	if len(res.Resolved) > 0 {
		ranges := make([]timerange.Range, 0, len(res.Resolved))
		for _, s := range res.Resolved {
			ranges = append(ranges, s.Range)
		}
		if srt := subtitles.RenderSRT(tr, ranges); srt != "" {
			path := filepath.Join(in.ExportsDir, strings.TrimSuffix(filepath.Base(res.Assembled), filepath.Ext(res.Assembled))+".srt")
			if err := os.WriteFile(path, []byte(srt), 0o644); err != nil {
				return res, fmt.Errorf("write subtitles: %w", err)
			}
			res.Subtitles = path
		}
	}
	return res, nil
}

// Edit cuts a ready-made edit list without any model involvement.
func (u Usecase) Edit(ctx context.Context, in EditInput) (Result, error) {
	info, err := u.probe(ctx, in.Source)
	if err != nil {
		return Result{}, err
	}
	return u.cut(ctx, in.Source, info, in.Payload, in.Buffer, in.ExportsDir, in.AssembledPath)
}

func (u Usecase) cut(ctx context.Context, source string, info ports.MediaInfo, p edits.Payload, buffer float64, exportsDir, assembled string) (Result, error) {
	res := Result{Media: info, Payload: p}
	resolved, err := edits.Resolver{Buffer: buffer}.Resolve(p, info.Duration)
	if err != nil {
		return res, err
	}
	res.Resolved = resolved
	if len(resolved) == 0 {
		u.d.Logger.Warn().Msg("no usable segments, keeping source as the edit")
	}

	ex, err := u.ExtractAndAssemble(ctx, ExtractInput{
		Source:        source,
		Media:         info,
		Segments:      resolved,
		ExportsDir:    exportsDir,
		AssembledPath: assembled,
	})
	res.Extraction = ex
	return res, err
}

type CutInput struct {
	Source string
	Start  float64
	End    float64
	OutDir string
}

type FilesResult struct {
	Media    ports.MediaInfo
	Outputs  []Output
	Warnings []string
}

// CutRange writes exactly [Start, End). The range is validated before any
// file is touched.
func (u Usecase) CutRange(ctx context.Context, in CutInput) (FilesResult, error) {
	info, err := u.probe(ctx, in.Source)
	if err != nil {
		return FilesResult{}, err
	}
	r, err := timerange.ClampSingleRange(in.Start, in.End, info.Duration)
	if err != nil {
		return FilesResult{}, err
	}
	out := filepath.Join(in.OutDir, naming.CutFile(naming.Stem(in.Source), r, naming.Ext(in.Source)))
	return u.writeRanges(ctx, in.Source, info, []timerange.Range{r}, []string{out})
}

type SplitInput struct {
	Source string
	Parts  int
	OutDir string
}

// SplitEven writes Parts contiguous parts covering the whole source.
func (u Usecase) SplitEven(ctx context.Context, in SplitInput) (FilesResult, error) {
	if err := split.ValidateParts(in.Parts); err != nil {
		return FilesResult{}, err
	}
	info, err := u.probe(ctx, in.Source)
	if err != nil {
		return FilesResult{}, err
	}
	ranges, err := split.PlanEvenSplit(info.Duration, in.Parts)
	if err != nil {
		return FilesResult{}, err
	}
	stem, ext := naming.Stem(in.Source), naming.Ext(in.Source)
	outs := make([]string, len(ranges))
	for i := range ranges {
		outs[i] = filepath.Join(in.OutDir, naming.PartFile(stem, i+1, ext))
	}
	return u.writeRanges(ctx, in.Source, info, ranges, outs)
}

func (u Usecase) writeRanges(ctx context.Context, source string, info ports.MediaInfo, ranges []timerange.Range, outs []string) (FilesResult, error) {
	res := FilesResult{Media: info}
	if err := ensureDir(filepath.Dir(outs[0])); err != nil {
		return res, err
	}
	if !info.HasAudio {
		res.Warnings = append(res.Warnings, noAudioTrackWarning)
	}
	for i, r := range ranges {
		u.d.Logger.Info().Str("range", r.String()).Str("out", outs[i]).Msg("writing")
		noAudio, warning, err := u.renderWithFallback(ctx, source, r, outs[i], info.HasAudio)
		if err != nil {
			return res, &SegmentExtractionError{Ordinal: i + 1, Path: outs[i], Err: err}
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		res.Outputs = append(res.Outputs, Output{Ordinal: i + 1, Range: r, Path: outs[i], NoAudio: noAudio})
	}
	return res, nil
}

// LoadPayload reads an edit list file in any accepted envelope.
func LoadPayload(path string) (edits.Payload, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return edits.Payload{}, fmt.Errorf("read edits: %w", err)
	}
	return edits.DecodePayload(b)
}
