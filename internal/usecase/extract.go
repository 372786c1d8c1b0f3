package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/domain/naming"
	"github.com/forPelevin/takecut/internal/ports"
)

const noAudioTrackWarning = "source has no audio track; outputs are video-only"

type ExtractInput struct {
	Source     string
	Media      ports.MediaInfo
	Segments   []edits.ResolvedSegment
	ExportsDir string
	// AssembledPath defaults to <stem>_edited<ext> next to the source.
	AssembledPath string
}

type Extraction struct {
	Segments []Output
	// Assembled is the source itself when there were no segments.
	Assembled string
	Warnings  []string
}

// ExtractAndAssemble writes every resolved segment under ExportsDir in order,
// then concatenates them into the assembled output.
func (u Usecase) ExtractAndAssemble(ctx context.Context, in ExtractInput) (Extraction, error) {
	var res Extraction
	if len(in.Segments) == 0 {
		res.Assembled = in.Source
		return res, nil
	}
	if err := ensureDir(in.ExportsDir); err != nil {
		return res, err
	}
	if !in.Media.HasAudio {
		res.Warnings = append(res.Warnings, noAudioTrackWarning)
	}

	ext := naming.Ext(in.Source)
	allAudio := in.Media.HasAudio
	for _, seg := range in.Segments {
		out := filepath.Join(in.ExportsDir, naming.SegmentFile(seg.Ordinal, seg.Range, ext))
		u.d.Logger.Info().Int("ordinal", seg.Ordinal).Str("range", seg.Range.String()).Msg("extracting segment")

		noAudio, warning, err := u.renderWithFallback(ctx, in.Source, seg.Range, out, in.Media.HasAudio)
		if err != nil {
			return res, &SegmentExtractionError{Ordinal: seg.Ordinal, Path: out, Err: err}
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		allAudio = allAudio && !noAudio
		res.Segments = append(res.Segments, Output{
			Ordinal: seg.Ordinal,
			Range:   seg.Range,
			Path:    out,
			Snippet: seg.Snippet,
			NoAudio: noAudio,
		})
	}

	assembled := in.AssembledPath
	if assembled == "" {
		assembled = naming.EditedPath(in.Source)
	}
	warning, err := u.concatWithFallback(ctx, res.Segments, assembled, allAudio)
	if err != nil {
		return res, &SegmentExtractionError{Path: assembled, Err: err}
	}
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}
	res.Assembled = assembled
	return res, nil
}

func (u Usecase) concatWithFallback(ctx context.Context, segs []Output, out string, withAudio bool) (string, error) {
	paths := make([]string, 0, len(segs))
	for _, s := range segs {
		paths = append(paths, s.Path)
	}
	u.d.Logger.Info().Int("segments", len(paths)).Str("out", out).Msg("assembling")

	err := u.d.Media.Concat(ctx, paths, out, withAudio)
	if err == nil || !withAudio || !errors.Is(err, ports.ErrAudioFault) {
		return "", err
	}
	u.d.Logger.Warn().Err(err).Str("file", out).Msg("audio concat failed, retrying without audio")
	if err := u.d.Media.Concat(ctx, paths, out, false); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: audio dropped after an encoder fault", filepath.Base(out)), nil
}
