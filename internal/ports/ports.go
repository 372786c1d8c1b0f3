package ports

import (
	"context"
	"errors"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/types"
)

// ErrAudioFault marks an encode that failed inside the audio pipeline. Callers
// may retry the same write without audio.
var ErrAudioFault = errors.New("audio stream fault")

// MediaInfo is what the decoder reports before any cutting starts.
type MediaInfo struct {
	Duration float64
	HasAudio bool
}

type MediaTool interface {
	Probe(ctx context.Context, in string) (MediaInfo, error)
	ExtractAudio(ctx context.Context, in, out string) error
	RenderRange(ctx context.Context, in string, start, end float64, out string, withAudio bool) error
	Concat(ctx context.Context, inputs []string, out string, withAudio bool) error
}

type ASR interface {
	// AudioExt is the container ExtractAudio should produce for this backend.
	AudioExt() string
	Transcribe(ctx context.Context, audioPath, cacheDir string) (types.Transcript, error)
}

// EditPlanner nominates candidate edits from a transcript and a script. The
// script is opaque to everything but the planner.
type EditPlanner interface {
	Plan(ctx context.Context, tr types.Transcript, script string) (edits.Payload, error)
}
