package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// layout is where one run reads and writes. Nothing is created up front;
// the usecase creates exports on its first write.
type layout struct {
	input   string
	dir     string
	exports string
	cache   string
}

func (r *Runner) newLayout(input string) (layout, error) {
	if strings.TrimSpace(input) == "" {
		return layout{}, fmt.Errorf("%w: empty path", ErrInputNotFound)
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return layout{}, err
	}
	st, err := os.Stat(abs)
	if err != nil || st.IsDir() {
		return layout{}, fmt.Errorf("%w: %s", ErrInputNotFound, input)
	}

	outRoot, err := filepath.Abs(r.cfg.OutDir)
	if err != nil {
		return layout{}, err
	}
	dir := buildRunOutDir(outRoot, abs, r.now().UTC())
	return layout{
		input:   abs,
		dir:     dir,
		exports: filepath.Join(dir, "exports"),
		// keyed by content identity so transcripts are reused across runs
		cache: filepath.Join(outRoot, ".cache", hash(fmt.Sprintf("%s|%d|%d", abs, st.Size(), st.ModTime().UnixNano()))),
	}, nil
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// relPath is p relative to base in slash form, or p itself when it lies
// outside base.
func relPath(base, p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
