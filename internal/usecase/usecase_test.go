package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/domain/split"
	"github.com/forPelevin/takecut/internal/domain/timerange"
	"github.com/forPelevin/takecut/internal/ports"
	"github.com/forPelevin/takecut/internal/types"
)

type renderCall struct {
	start, end float64
	out        string
	withAudio  bool
}

type fakeMedia struct {
	info      ports.MediaInfo
	renders   []renderCall
	concats   [][]string
	concatAud []bool
	extracted []string

	renderErr func(c renderCall) error
	concatErr func(withAudio bool) error
}

func (f *fakeMedia) Probe(_ context.Context, _ string) (ports.MediaInfo, error) {
	return f.info, nil
}

func (f *fakeMedia) ExtractAudio(_ context.Context, _, out string) error {
	f.extracted = append(f.extracted, out)
	return os.WriteFile(out, []byte("audio"), 0o644)
}

func (f *fakeMedia) RenderRange(_ context.Context, _ string, start, end float64, out string, withAudio bool) error {
	c := renderCall{start: start, end: end, out: out, withAudio: withAudio}
	f.renders = append(f.renders, c)
	if f.renderErr != nil {
		if err := f.renderErr(c); err != nil {
			return err
		}
	}
	return os.WriteFile(out, []byte("video"), 0o644)
}

func (f *fakeMedia) Concat(_ context.Context, inputs []string, out string, withAudio bool) error {
	f.concats = append(f.concats, inputs)
	f.concatAud = append(f.concatAud, withAudio)
	if f.concatErr != nil {
		if err := f.concatErr(withAudio); err != nil {
			return err
		}
	}
	return os.WriteFile(out, []byte("edited"), 0o644)
}

type fakeASR struct {
	tr types.Transcript
}

func (fakeASR) AudioExt() string { return ".wav" }

func (f fakeASR) Transcribe(_ context.Context, _, _ string) (types.Transcript, error) {
	return f.tr, nil
}

type fakePlanner struct {
	payload   edits.Payload
	gotScript string
}

func (f *fakePlanner) Plan(_ context.Context, _ types.Transcript, script string) (edits.Payload, error) {
	f.gotScript = script
	return f.payload, nil
}

func audioFault(c renderCall) error {
	if c.withAudio {
		return fmt.Errorf("ffmpeg render: %w: exit status 1", ports.ErrAudioFault)
	}
	return nil
}

func newTestUsecase(m *fakeMedia) Usecase {
	return New(Deps{Media: m, Logger: zerolog.Nop()})
}

func sourceIn(t *testing.T) (dir, source string) {
	t.Helper()
	dir = t.TempDir()
	source = filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(source, []byte("src"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return dir, source
}

func TestEdit_EndToEnd(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 20, HasAudio: true}}
	uc := newTestUsecase(media)

	res, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.Bare([]edits.CandidateEdit{{Start: 5, End: 10}}),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(res.Segments))
	}
	seg := res.Segments[0]
	if seg.Range != (timerange.Range{Start: 3, End: 12}) {
		t.Fatalf("unexpected range %+v", seg.Range)
	}
	if filepath.Base(seg.Path) != "segment_001_3.0s-12.0s.mp4" {
		t.Fatalf("unexpected segment name %s", seg.Path)
	}
	if _, err := os.Stat(seg.Path); err != nil {
		t.Fatalf("segment not written: %v", err)
	}
	if res.Assembled != filepath.Join(dir, "in_edited.mp4") {
		t.Fatalf("unexpected assembled path %s", res.Assembled)
	}
	if len(media.concats) != 1 || len(media.concats[0]) != 1 || !media.concatAud[0] {
		t.Fatalf("unexpected concat calls %v %v", media.concats, media.concatAud)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
}

func TestEdit_SegmentsFollowTimelineOrder(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 15, HasAudio: true}}
	uc := newTestUsecase(media)

	res, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.EditsField([]edits.CandidateEdit{{Start: 5, End: 10}, {Start: 1, End: 14}}),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	want := []string{"segment_001_0.0s-15.0s.mp4", "segment_002_3.0s-12.0s.mp4"}
	for i, w := range want {
		if got := filepath.Base(res.Segments[i].Path); got != w {
			t.Fatalf("segment %d = %s, want %s", i, got, w)
		}
		if got := filepath.Base(media.concats[0][i]); got != w {
			t.Fatalf("concat input %d = %s, want %s", i, got, w)
		}
	}
}

func TestEdit_AudioFaultRetriesWithoutAudio(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 20, HasAudio: true}, renderErr: audioFault}
	uc := newTestUsecase(media)

	res, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.Bare([]edits.CandidateEdit{{Start: 5, End: 10}}),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(media.renders) != 2 || !media.renders[0].withAudio || media.renders[1].withAudio {
		t.Fatalf("expected audio attempt then silent retry, got %+v", media.renders)
	}
	if !res.Segments[0].NoAudio {
		t.Fatalf("expected segment marked as video-only")
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "audio dropped") {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
	if media.concatAud[0] {
		t.Fatalf("assembly must drop audio when a segment has none")
	}
}

func TestEdit_ConcatAudioFaultRetries(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{
		info: ports.MediaInfo{Duration: 20, HasAudio: true},
		concatErr: func(withAudio bool) error {
			if withAudio {
				return ports.ErrAudioFault
			}
			return nil
		},
	}
	uc := newTestUsecase(media)

	res, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.Bare([]edits.CandidateEdit{{Start: 5, End: 10}}),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(media.concats) != 2 || media.concatAud[1] {
		t.Fatalf("expected silent concat retry, got %v", media.concatAud)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
}

func TestEdit_FatalErrorKeepsWrittenSegments(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	boom := errors.New("moov atom not found")
	media := &fakeMedia{
		info: ports.MediaInfo{Duration: 60, HasAudio: true},
		renderErr: func(c renderCall) error {
			if c.start > 20 {
				return boom
			}
			return nil
		},
	}
	uc := newTestUsecase(media)

	res, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.Bare([]edits.CandidateEdit{{Start: 30, End: 40}, {Start: 5, End: 10}}),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	var segErr *SegmentExtractionError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentExtractionError, got %v", err)
	}
	if segErr.Ordinal != 2 || !errors.Is(err, boom) {
		t.Fatalf("unexpected error %+v", segErr)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("expected first segment in partial result, got %d", len(res.Segments))
	}
	if _, err := os.Stat(res.Segments[0].Path); err != nil {
		t.Fatalf("partial output must stay on disk: %v", err)
	}
	if len(media.concats) != 0 {
		t.Fatalf("assembly must not run after a failure")
	}
}

func TestEdit_NoSegmentsKeepsSource(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 20, HasAudio: true}}
	uc := newTestUsecase(media)

	res, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.Bare(nil),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if res.Assembled != source {
		t.Fatalf("expected source as assembled output, got %s", res.Assembled)
	}
	if len(media.renders)+len(media.concats) != 0 {
		t.Fatalf("expected no media writes")
	}
}

func TestEdit_EmptyMedia(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 0}}
	uc := newTestUsecase(media)

	_, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.Bare([]edits.CandidateEdit{{Start: 0, End: 1}}),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if !errors.Is(err, timerange.ErrEmptyMedia) {
		t.Fatalf("expected ErrEmptyMedia, got %v", err)
	}
	if len(media.renders) != 0 {
		t.Fatalf("expected no renders")
	}
}

func TestEdit_SourceWithoutAudio(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 20}}
	uc := newTestUsecase(media)

	res, err := uc.Edit(context.Background(), EditInput{
		Source:     source,
		Payload:    edits.Bare([]edits.CandidateEdit{{Start: 5, End: 10}}),
		Buffer:     edits.DefaultBuffer,
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if media.renders[0].withAudio || media.concatAud[0] {
		t.Fatalf("audio must not be requested for a silent source")
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != noAudioTrackWarning {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
}

func TestCutRange(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 10, HasAudio: true}}
	uc := newTestUsecase(media)

	res, err := uc.CutRange(context.Background(), CutInput{Source: source, Start: 2, End: 5.5, OutDir: filepath.Join(dir, "run")})
	if err != nil {
		t.Fatalf("cut: %v", err)
	}
	if len(res.Outputs) != 1 || filepath.Base(res.Outputs[0].Path) != "in_2-5.mp4" {
		t.Fatalf("unexpected outputs %+v", res.Outputs)
	}
	if c := media.renders[0]; c.start != 2 || c.end != 5.5 {
		t.Fatalf("range must not be padded, got %+v", c)
	}
}

func TestCutRange_RejectsBeforeIO(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end float64
	}{
		{"reversed", 5, 3},
		{"negative", -1, 5},
		{"past end", 0, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, source := sourceIn(t)
			media := &fakeMedia{info: ports.MediaInfo{Duration: 10, HasAudio: true}}
			uc := newTestUsecase(media)
			outDir := filepath.Join(dir, "run")

			_, err := uc.CutRange(context.Background(), CutInput{Source: source, Start: tt.start, End: tt.end, OutDir: outDir})
			if !errors.Is(err, timerange.ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
			if len(media.renders) != 0 {
				t.Fatalf("expected no renders")
			}
			if _, err := os.Stat(outDir); !os.IsNotExist(err) {
				t.Fatalf("output dir must not be created, stat err=%v", err)
			}
		})
	}
}

func TestSplitEven(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 10, HasAudio: true}}
	uc := newTestUsecase(media)

	res, err := uc.SplitEven(context.Background(), SplitInput{Source: source, Parts: 3, OutDir: filepath.Join(dir, "run")})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(res.Outputs) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(res.Outputs))
	}
	for i, o := range res.Outputs {
		want := fmt.Sprintf("in_part_%02d.mp4", i+1)
		if filepath.Base(o.Path) != want {
			t.Fatalf("part %d = %s, want %s", i, o.Path, want)
		}
	}
	if last := res.Outputs[2].Range.End; last != 10 {
		t.Fatalf("last part must end on the duration, got %v", last)
	}
}

func TestSplitEven_InvalidParts(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 10, HasAudio: true}}
	uc := newTestUsecase(media)

	for _, parts := range []int{1, split.MaxParts + 1, 1 << 40} {
		_, err := uc.SplitEven(context.Background(), SplitInput{Source: source, Parts: parts, OutDir: filepath.Join(dir, "run")})
		if !errors.Is(err, split.ErrInvalidParts) {
			t.Fatalf("parts=%d: expected ErrInvalidParts, got %v", parts, err)
		}
	}
	if len(media.renders) != 0 {
		t.Fatalf("no part may be rendered, got %d", len(media.renders))
	}
}

func testTranscript() types.Transcript {
	return types.Transcript{
		Words: []types.Word{
			{Start: 5.1, End: 5.6, Word: "hello"},
			{Start: 5.8, End: 6.4, Word: "world"},
		},
	}
}

func TestProcess(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 20, HasAudio: true}}
	planner := &fakePlanner{payload: edits.EditsField([]edits.CandidateEdit{{Start: 5, End: 10, Snippet: "hello world"}})}
	uc := New(Deps{Media: media, ASR: fakeASR{tr: testTranscript()}, Planner: planner, Logger: zerolog.Nop()})

	exports := filepath.Join(dir, "exports")
	res, err := uc.Process(context.Background(), ProcessInput{
		Source:     source,
		Script:     "Hello world.",
		Buffer:     edits.DefaultBuffer,
		CacheDir:   filepath.Join(dir, "cache"),
		ExportsDir: exports,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if planner.gotScript != "Hello world." {
		t.Fatalf("script not passed through, got %q", planner.gotScript)
	}
	if len(media.extracted) != 1 || filepath.Base(media.extracted[0]) != "audio.wav" {
		t.Fatalf("unexpected audio extraction %v", media.extracted)
	}
	if len(res.Resolved) != 1 || res.Segments[0].Snippet != "hello world" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Subtitles != filepath.Join(exports, "in_edited.srt") {
		t.Fatalf("unexpected subtitles path %q", res.Subtitles)
	}
	b, err := os.ReadFile(res.Subtitles)
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	if !strings.Contains(string(b), "hello world") {
		t.Fatalf("unexpected subtitles %s", b)
	}
}

func TestProcess_RequiresAudio(t *testing.T) {
	t.Parallel()

	dir, source := sourceIn(t)
	media := &fakeMedia{info: ports.MediaInfo{Duration: 20}}
	uc := New(Deps{Media: media, ASR: fakeASR{}, Planner: &fakePlanner{}, Logger: zerolog.Nop()})

	_, err := uc.Process(context.Background(), ProcessInput{
		Source:     source,
		Script:     "x",
		CacheDir:   filepath.Join(dir, "cache"),
		ExportsDir: filepath.Join(dir, "exports"),
	})
	if err == nil {
		t.Fatalf("expected error for a silent source")
	}
	if len(media.extracted) != 0 {
		t.Fatalf("expected no audio extraction")
	}
}
