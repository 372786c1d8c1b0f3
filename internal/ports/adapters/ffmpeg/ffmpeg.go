package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/forPelevin/takecut/internal/ports"
)

const (
	VideoCodec = "libx264"
	AudioCodec = "aac"
	Preset     = "veryfast"
	CRF        = "18"

	installURL = "https://ffmpeg.org/download.html"
)

// DependencyError reports a missing external binary.
type DependencyError struct {
	Name       string
	InstallURL string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s not found. Install from: %s", e.Name, e.InstallURL)
}

type Adapter struct {
	ffmpeg  string
	ffprobe string
	logger  zerolog.Logger
}

func New(ffmpegPath, ffprobePath string, logger zerolog.Logger) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		logger:  logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// CheckDeps verifies both binaries resolve.
func (a *Adapter) CheckDeps() error {
	for _, bin := range []string{a.ffmpeg, a.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return &DependencyError{Name: filepath.Base(bin), InstallURL: installURL}
		}
	}
	return nil
}

func (a *Adapter) Probe(ctx context.Context, in string) (ports.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		in,
	)
	b, err := cmd.Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = string(ee.Stderr)
		}
		return ports.MediaInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, stderr)
	}
	return parseProbe(b)
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(b []byte) (ports.MediaInfo, error) {
	var pr probeResult
	if err := json.Unmarshal(b, &pr); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var info ports.MediaInfo
	if s := strings.TrimSpace(pr.Format.Duration); s != "" {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ports.MediaInfo{}, fmt.Errorf("parse duration %q: %w", s, err)
		}
		info.Duration = d
	}
	for _, st := range pr.Streams {
		switch st.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			// some containers only report duration per stream
			if info.Duration == 0 {
				if d, err := strconv.ParseFloat(st.Duration, 64); err == nil {
					info.Duration = d
				}
			}
		}
	}
	return info, nil
}

// ExtractAudio picks the encoding from the output extension: 16 kHz mono WAV
// for local ASR, 64 kbps mp3 for upload based ASR.
func (a *Adapter) ExtractAudio(ctx context.Context, in, out string) error {
	args, err := audioArgs(in, out)
	if err != nil {
		return err
	}
	return a.run(ctx, "extract audio", args, false)
}

func audioArgs(in, out string) ([]string, error) {
	var kw ffmpeggo.KwArgs
	switch strings.ToLower(filepath.Ext(out)) {
	case ".wav":
		kw = ffmpeggo.KwArgs{"map": "0:a:0", "ac": "1", "ar": "16000", "f": "wav"}
	case ".mp3":
		kw = ffmpeggo.KwArgs{"map": "0:a:0", "ac": "1", "ar": "22050", "c:a": "libmp3lame", "b:a": "64k"}
	default:
		return nil, fmt.Errorf("ffmpeg extract audio: unsupported output %q", out)
	}
	return ffmpeggo.Input(in).Output(out, kw).OverWriteOutput().GetArgs(), nil
}

func (a *Adapter) RenderRange(ctx context.Context, in string, start, end float64, out string, withAudio bool) error {
	if end <= start {
		return fmt.Errorf("ffmpeg render: empty range %.3f-%.3f", start, end)
	}
	return a.run(ctx, "render", renderArgs(in, start, end, out, withAudio), withAudio)
}

func renderArgs(in string, start, end float64, out string, withAudio bool) []string {
	kw := ffmpeggo.KwArgs{
		"c:v":    VideoCodec,
		"preset": Preset,
		"crf":    CRF,
	}
	if withAudio {
		kw["c:a"] = AudioCodec
		kw["b:a"] = "192k"
	} else {
		kw["map"] = "0:v:0"
	}
	return ffmpeggo.Input(in, ffmpeggo.KwArgs{
		"ss": fmtSeconds(start),
		"to": fmtSeconds(end),
	}).Output(out, kw).OverWriteOutput().GetArgs()
}

// Concat joins already encoded segments with the concat demuxer. Segments share
// codec settings so streams are copied.
func (a *Adapter) Concat(ctx context.Context, inputs []string, out string, withAudio bool) error {
	if len(inputs) == 0 {
		return fmt.Errorf("ffmpeg concat: no inputs")
	}
	list, err := writeConcatList(filepath.Dir(out), inputs)
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	defer os.Remove(list)

	return a.run(ctx, "concat", concatArgs(list, out, withAudio), withAudio)
}

func concatArgs(list, out string, withAudio bool) []string {
	kw := ffmpeggo.KwArgs{"c": "copy"}
	if !withAudio {
		kw["map"] = "0:v:0"
	}
	return ffmpeggo.Input(list, ffmpeggo.KwArgs{"f": "concat", "safe": "0"}).
		Output(out, kw).OverWriteOutput().GetArgs()
}

func writeConcatList(dir string, inputs []string) (string, error) {
	f, err := os.CreateTemp(dir, ".concat-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return "", err
		}
		// concat demuxer quoting: ' becomes '\''
		if _, err := fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`)); err != nil {
			return "", err
		}
	}
	return f.Name(), f.Close()
}

func (a *Adapter) run(ctx context.Context, op string, args []string, withAudio bool) error {
	a.logger.Debug().Str("op", op).Strs("args", args).Msg("executing ffmpeg")
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		out := tail(string(b), 2000)
		if withAudio && isAudioFault(out) {
			return fmt.Errorf("ffmpeg %s: %w: %v\n%s", op, ports.ErrAudioFault, err, out)
		}
		return fmt.Errorf("ffmpeg %s: %w\n%s", op, err, out)
	}
	return nil
}

var audioFaultRE = regexp.MustCompile(`(?i)(` +
	`stream map '0:a[^']*' matches no streams` +
	`|error while decoding stream #\d+:\d+.*audio` +
	`|could not find codec parameters for stream #\d+:\d+ \(audio` +
	`|audio[^\n]*(invalid data found|decoding error|not supported)` +
	`|error (initializing|opening) (output stream|encoder)[^\n]*#\d+:1` +
	`|broken pipe` +
	`)`)

func isAudioFault(stderr string) bool {
	return audioFaultRE.MatchString(stderr)
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
