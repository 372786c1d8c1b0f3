//go:build integration

package itest

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/takecut/internal/types"
)

// makeFixture writes a test-pattern video with a sine tone, or a silent one.
func makeFixture(t *testing.T, dir string, seconds int, withAudio bool) string {
	t.Helper()
	in := filepath.Join(dir, "input.mp4")
	args := []string{"-y", "-f", "lavfi", "-i", "testsrc=size=320x240:rate=25:duration=" + itoa(seconds)}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", "sine=frequency=440:duration="+itoa(seconds), "-c:a", "aac", "-shortest")
	}
	args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p", in)
	if b, err := exec.Command("ffmpeg", args...).CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
	return in
}

func runDir(t *testing.T, output string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if rest, ok := strings.CutPrefix(line, "output:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("no output dir in:\n%s", output)
	return ""
}

func readManifest(t *testing.T, dir string) types.Manifest {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("missing manifest: %v", err)
	}
	var m types.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	return m
}

func cliEnv(tmp string) map[string]string {
	return map[string]string{
		"TAKECUT_DB":     filepath.Join(tmp, "takecut.db"),
		"OPENAI_API_KEY": "",
	}
}

func TestE2E_Cut(t *testing.T) {
	repoRoot := mustRepoRoot(t)
	tmp := t.TempDir()
	in := makeFixture(t, tmp, 10, true)
	out := filepath.Join(tmp, "out")

	res := runCLI(t, repoRoot, []string{"cut", in, "2", "0:05", "--out", out}, cliEnv(tmp))
	if res.exitCode != 0 {
		t.Fatalf("cut failed:\n%s", res.output)
	}
	dir := runDir(t, res.output)
	m := readManifest(t, dir)
	if len(m.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(m.Segments))
	}
	if m.Segments[0].File != "exports/input_2-5.mp4" {
		t.Fatalf("file = %q", m.Segments[0].File)
	}
	got, err := probeFile(filepath.Join(dir, m.Segments[0].File))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.duration-3) > 0.3 {
		t.Fatalf("cut duration = %.2f, want ~3", got.duration)
	}
	if !got.audioStream {
		t.Fatalf("cut lost its audio track")
	}
}

func TestE2E_Split(t *testing.T) {
	repoRoot := mustRepoRoot(t)
	tmp := t.TempDir()
	in := makeFixture(t, tmp, 9, false)
	out := filepath.Join(tmp, "out")

	res := runCLI(t, repoRoot, []string{"split", in, "--parts", "3", "--out", out}, cliEnv(tmp))
	if res.exitCode != 0 {
		t.Fatalf("split failed:\n%s", res.output)
	}
	dir := runDir(t, res.output)
	m := readManifest(t, dir)
	if len(m.Segments) != 3 {
		t.Fatalf("parts = %d, want 3", len(m.Segments))
	}
	if m.HasAudio {
		t.Fatalf("silent fixture reported audio")
	}
	for i, s := range m.Segments {
		if want := fmt.Sprintf("exports/input_part_%02d.mp4", i+1); s.File != want {
			t.Fatalf("part %d = %q, want %q", i+1, s.File, want)
		}
		got, err := probeFile(filepath.Join(dir, s.File))
		if err != nil {
			t.Fatal(err)
		}
		if got.audioStream {
			t.Fatalf("part %d has an audio stream", i+1)
		}
		if math.Abs(got.duration-3) > 0.3 {
			t.Fatalf("part %d duration = %.2f, want ~3", i+1, got.duration)
		}
	}
}

func TestE2E_EditWithBundle(t *testing.T) {
	repoRoot := mustRepoRoot(t)
	tmp := t.TempDir()
	in := makeFixture(t, tmp, 20, true)
	out := filepath.Join(tmp, "out")

	editsPath := filepath.Join(tmp, "edits.json")
	payload := `{"content":{"edits":[{"start":12,"end":14,"snippet":"b"},{"start":3,"end":5,"snippet":"a"}]}}`
	if err := os.WriteFile(editsPath, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	res := runCLI(t, repoRoot, []string{"edit", in, editsPath, "--out", out, "--padding", "1", "--bundle"}, cliEnv(tmp))
	if res.exitCode != 0 {
		t.Fatalf("edit failed:\n%s", res.output)
	}
	dir := runDir(t, res.output)
	m := readManifest(t, dir)
	if len(m.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(m.Segments))
	}
	if m.Segments[0].File != "exports/segment_001_2.0s-6.0s.mp4" {
		t.Fatalf("first segment = %q", m.Segments[0].File)
	}
	// the assembled file sits next to the source
	if want := filepath.Join(tmp, "input_edited.mp4"); m.Assembled != want {
		t.Fatalf("assembled = %q, want %q", m.Assembled, want)
	}
	got, err := probeFile(m.Assembled)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.duration-8) > 0.5 {
		t.Fatalf("assembled duration = %.2f, want ~8", got.duration)
	}

	zr, err := zip.OpenReader(filepath.Join(dir, "bundle.zip"))
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer zr.Close()
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"segment_001_2.0s-6.0s.mp4", "segment_002_11.0s-15.0s.mp4", "input_edited.mp4"} {
		if !names[want] {
			t.Fatalf("bundle missing %s: %v", want, names)
		}
	}

	hist := runCLI(t, repoRoot, []string{"history"}, cliEnv(tmp))
	if hist.exitCode != 0 || !strings.Contains(hist.output, "completed") {
		t.Fatalf("history:\n%s", hist.output)
	}
}

func TestE2E_Process(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY is not set")
	}
	if _, err := exec.LookPath("espeak-ng"); err != nil {
		t.Skip("espeak-ng is not installed")
	}
	repoRoot := mustRepoRoot(t)
	tmp := t.TempDir()

	wav := filepath.Join(tmp, "speech.wav")
	text := "Here is the key idea. Um, wait. Here is the key idea. Step one: do this. Step two: measure results."
	if b, err := exec.Command("espeak-ng", "-w", wav, text).CombinedOutput(); err != nil {
		t.Fatalf("espeak-ng failed: %v\n%s", err, string(b))
	}
	in := filepath.Join(tmp, "input.mp4")
	ff := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "color=c=black:s=640x360:d=20",
		"-i", wav,
		"-shortest", "-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac",
		in,
	)
	if b, err := ff.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}

	env := cliEnv(tmp)
	env["OPENAI_API_KEY"] = os.Getenv("OPENAI_API_KEY")
	script := "Here is the key idea. Step one: do this. Step two: measure results."
	res := runCLI(t, repoRoot, []string{"process", in, "--script", script, "--out", filepath.Join(tmp, "out")}, env)
	if res.exitCode != 0 {
		t.Fatalf("process failed:\n%s", res.output)
	}
	dir := runDir(t, res.output)
	for _, name := range []string{"manifest.json", "edits.json", "bundle.zip"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}
