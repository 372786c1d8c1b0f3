// Package subtitles renders SRT captions for an assembled edit from the
// transcript of its source.
package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/takecut/internal/domain/timerange"
	"github.com/forPelevin/takecut/internal/types"
)

const (
	charBudget = 42
	wordBudget = 9
)

type cue struct {
	Start time.Duration
	End   time.Duration
	Words []string
}

type word struct {
	Part  int
	Start time.Duration
	End   time.Duration
	Text  string
}

// RenderSRT lays the words spoken inside each range onto the timeline of the
// concatenated output. Ranges are taken in the given order and may overlap in
// the source. Returns "" when no word falls inside any range.
func RenderSRT(tr types.Transcript, ranges []timerange.Range) string {
	all := tr.AllWords()
	var words []word
	var offset time.Duration
	for part, r := range ranges {
		start, end := dur(r.Start), dur(r.End)
		for _, w := range all {
			ws, we := dur(w.Start), dur(w.End)
			if we <= start || ws >= end {
				continue
			}
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			ws = max(ws, start)
			we = min(we, end)
			words = append(words, word{Part: part, Start: offset + ws - start, End: offset + we - start, Text: text})
		}
		offset += end - start
	}
	if len(words) == 0 {
		return ""
	}
	return render(pack(words))
}

func pack(words []word) []cue {
	var out []cue
	cur := cue{Start: words[0].Start}
	curLen := 0
	for i, w := range words {
		wl := len([]rune(w.Text))
		nextLen := curLen + wl
		if curLen > 0 {
			nextLen++
		}
		// a cut between source ranges always starts a new cue
		jump := i > 0 && w.Part != words[i-1].Part
		if len(cur.Words) > 0 && (len(cur.Words) >= wordBudget || nextLen > charBudget || jump) {
			cur.End = words[i-1].End
			out = append(out, cur)
			cur = cue{Start: w.Start}
			curLen = 0
			nextLen = wl
		}
		cur.Words = append(cur.Words, w.Text)
		curLen = nextLen
	}
	cur.End = words[len(words)-1].End
	return append(out, cur)
}

func render(cues []cue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(c.Start), srtTime(c.End), strings.Join(c.Words, " "))
	}
	return b.String()
}

func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, int(d/time.Millisecond))
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
