package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/forPelevin/takecut/internal/domain/timerange"
	"github.com/forPelevin/takecut/internal/ports"
)

type Deps struct {
	Media   ports.MediaTool
	ASR     ports.ASR
	Planner ports.EditPlanner
	Logger  zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

// SegmentExtractionError is fatal for a run. Ordinal 0 means the
// concatenation step. Files written before the failure stay on disk.
type SegmentExtractionError struct {
	Ordinal int
	Path    string
	Err     error
}

func (e *SegmentExtractionError) Error() string {
	if e.Ordinal == 0 {
		return fmt.Sprintf("assemble %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("extract segment %d (%s): %v", e.Ordinal, e.Path, e.Err)
}

func (e *SegmentExtractionError) Unwrap() error { return e.Err }

// Output is one file written by a run.
type Output struct {
	Ordinal int
	Range   timerange.Range
	Path    string
	Snippet string
	NoAudio bool
}

// probe returns media info for a source that is safe to cut.
func (u Usecase) probe(ctx context.Context, source string) (ports.MediaInfo, error) {
	info, err := u.d.Media.Probe(ctx, source)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("probe %s: %w", source, err)
	}
	if err := timerange.CheckDuration(info.Duration); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("%s: %w", source, err)
	}
	return info, nil
}

// renderWithFallback writes r to out. An audio fault triggers one retry
// without audio; the returned warning is non-empty in that case.
func (u Usecase) renderWithFallback(ctx context.Context, source string, r timerange.Range, out string, withAudio bool) (noAudio bool, warning string, err error) {
	err = u.d.Media.RenderRange(ctx, source, r.Start, r.End, out, withAudio)
	if err == nil {
		return !withAudio, "", nil
	}
	if !withAudio || !errors.Is(err, ports.ErrAudioFault) {
		return false, "", err
	}

	u.d.Logger.Warn().Err(err).Str("file", out).Msg("audio encode failed, retrying without audio")
	if err := u.d.Media.RenderRange(ctx, source, r.Start, r.End, out, false); err != nil {
		return false, "", err
	}
	return true, fmt.Sprintf("%s: audio dropped after an encoder fault", filepath.Base(out)), nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
