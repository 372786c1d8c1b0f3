package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func argValue(args []string, flag string) (string, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}

// globalFlags may trail the output path; ffmpeg applies them to the whole run.
var globalFlags = map[string]bool{"-y": true}

// assertOutputLast checks that out is the final positional argument, followed
// only by global flags, and that overwrite is requested.
func assertOutputLast(t *testing.T, args []string, out string) {
	t.Helper()
	i := indexOf(args, out)
	if i < 0 {
		t.Fatalf("output %q missing: %v", out, args)
	}
	for _, a := range args[i+1:] {
		if !globalFlags[a] {
			t.Fatalf("only global flags may follow the output, got %q in %v", a, args)
		}
	}
	if indexOf(args, "-y") < 0 {
		t.Fatalf("expected overwrite flag: %v", args)
	}
}

func TestRenderArgs_WithAudio(t *testing.T) {
	args := renderArgs("in.mp4", 3, 12, "out.mp4", true)

	if v, _ := argValue(args, "-ss"); v != "3.000" {
		t.Fatalf("unexpected -ss in %v", args)
	}
	if v, _ := argValue(args, "-to"); v != "12.000" {
		t.Fatalf("unexpected -to in %v", args)
	}
	if indexOf(args, "-ss") > indexOf(args, "-i") {
		t.Fatalf("seek must precede the input: %v", args)
	}
	if v, _ := argValue(args, "-c:a"); v != AudioCodec {
		t.Fatalf("expected audio codec in %v", args)
	}
	if _, ok := argValue(args, "-map"); ok {
		t.Fatalf("audio render must not restrict streams: %v", args)
	}
	assertOutputLast(t, args, "out.mp4")
}

func TestRenderArgs_WithoutAudio(t *testing.T) {
	args := renderArgs("in.mp4", 0, 6, "out.mp4", false)
	if v, _ := argValue(args, "-map"); v != "0:v:0" {
		t.Fatalf("expected video-only map in %v", args)
	}
	if _, ok := argValue(args, "-c:a"); ok {
		t.Fatalf("unexpected audio codec in %v", args)
	}
}

func TestAudioArgs(t *testing.T) {
	wav, err := audioArgs("in.mp4", "a.wav")
	if err != nil {
		t.Fatalf("wav: %v", err)
	}
	if v, _ := argValue(wav, "-ar"); v != "16000" {
		t.Fatalf("unexpected wav args %v", wav)
	}
	assertOutputLast(t, wav, "a.wav")
	mp3, err := audioArgs("in.mp4", "a.mp3")
	if err != nil {
		t.Fatalf("mp3: %v", err)
	}
	if v, _ := argValue(mp3, "-b:a"); v != "64k" {
		t.Fatalf("unexpected mp3 args %v", mp3)
	}
	if _, err := audioArgs("in.mp4", "a.flac"); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestConcatArgs(t *testing.T) {
	args := concatArgs("list.txt", "final.mp4", true)
	if v, _ := argValue(args, "-f"); v != "concat" {
		t.Fatalf("expected concat demuxer in %v", args)
	}
	if indexOf(args, "-f") > indexOf(args, "-i") {
		t.Fatalf("demuxer must precede input: %v", args)
	}
	if v, _ := argValue(args, "-c"); v != "copy" {
		t.Fatalf("expected stream copy in %v", args)
	}
	assertOutputLast(t, args, "final.mp4")
}

func TestWriteConcatList_QuotesPaths(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "it's.mp4")
	list, err := writeConcatList(dir, []string{in})
	if err != nil {
		t.Fatalf("write list: %v", err)
	}
	b, err := os.ReadFile(list)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if !strings.Contains(string(b), `it'\''s.mp4'`) {
		t.Fatalf("path not escaped: %s", b)
	}
}

func TestParseProbe(t *testing.T) {
	doc := `{"streams":[{"codec_type":"video","duration":"19.9"},{"codec_type":"audio"}],"format":{"duration":"20.016"}}`
	info, err := parseProbe([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Duration != 20.016 || !info.HasAudio {
		t.Fatalf("unexpected info %+v", info)
	}

	silent, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","duration":"8.5"}],"format":{}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if silent.HasAudio || silent.Duration != 8.5 {
		t.Fatalf("unexpected info %+v", silent)
	}
}

func TestIsAudioFault(t *testing.T) {
	tests := map[string]bool{
		"Stream map '0:a' matches no streams.":                                    true,
		"[aac @ 0x1] Error while decoding stream #0:1: Invalid data found (audio)": true,
		"av_interleaved_write_frame(): Broken pipe":                               true,
		"moov atom not found":                                                     false,
		"No such file or directory":                                               false,
	}
	for in, want := range tests {
		if got := isAudioFault(in); got != want {
			t.Fatalf("isAudioFault(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCheckDeps_MissingBinary(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "ffmpeg-missing")
	err := New(missing, missing, zerolog.Nop()).CheckDeps()

	var depErr *DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("err = %v, want DependencyError", err)
	}
	if depErr.Name != "ffmpeg-missing" || depErr.InstallURL == "" {
		t.Fatalf("dependency error = %+v", depErr)
	}
	if !strings.Contains(err.Error(), "not found. Install from:") {
		t.Fatalf("message = %q", err.Error())
	}
}
