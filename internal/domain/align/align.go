// Package align finds the best take of each script sentence in a
// word-timestamped transcript without calling a model.
package align

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/types"
)

const (
	DefaultMinScore = 0.5
	lengthSlack     = 0.25
)

var ErrNoScript = errors.New("script is empty")

// Planner is an EditPlanner backed by Align.
type Planner struct {
	MinScore float64
}

func (p Planner) Plan(_ context.Context, tr types.Transcript, script string) (edits.Payload, error) {
	if strings.TrimSpace(script) == "" {
		return edits.Payload{}, ErrNoScript
	}
	minScore := p.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return edits.EditsField(Align(tr, script, minScore)), nil
}

type timedWord struct {
	Start float64
	End   float64
	Token string
}

func collectWords(tr types.Transcript) []timedWord {
	var out []timedWord
	for _, w := range tr.AllWords() {
		if w.End <= w.Start {
			continue
		}
		tok := normalizeToken(w.Word)
		if tok == "" {
			continue
		}
		out = append(out, timedWord{Start: w.Start, End: w.End, Token: tok})
	}
	return out
}

// Align returns one edit per matched sentence, in script order. For every
// sentence it scores windows of roughly the sentence's length by token F1 and
// keeps the best one at or above minScore. Equal scores go to the later take.
func Align(tr types.Transcript, script string, minScore float64) []edits.CandidateEdit {
	words := collectWords(tr)
	if len(words) == 0 {
		return nil
	}

	var out []edits.CandidateEdit
	for _, sentence := range SplitSentences(script) {
		target := tokenize(sentence)
		if len(target) == 0 {
			continue
		}
		lo := max(1, int(math.Floor(float64(len(target))*(1-lengthSlack))))
		hi := int(math.Ceil(float64(len(target)) * (1 + lengthSlack)))

		best, bi, bj := -1.0, -1, -1
		for i := range words {
			for n := lo; n <= hi && i+n <= len(words); n++ {
				s := f1(target, words[i:i+n])
				if s > best || (s == best && i >= bi) {
					best, bi, bj = s, i, i+n
				}
			}
		}
		if bi < 0 || best < minScore {
			continue
		}
		out = append(out, edits.CandidateEdit{
			Start:   words[bi].Start,
			End:     words[bj-1].End,
			Snippet: sentence,
		})
	}
	return out
}

var sentenceEndRE = regexp.MustCompile(`[.!?]+(\s+|$)|\n+`)

func SplitSentences(script string) []string {
	var out []string
	for _, part := range sentenceEndRE.Split(script, -1) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func tokenize(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if t := normalizeToken(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimFunc(strings.TrimSpace(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

// f1 is the harmonic mean of token precision and recall over multisets.
func f1(target []string, window []timedWord) float64 {
	counts := make(map[string]int, len(target))
	for _, t := range target {
		counts[t]++
	}
	common := 0
	for _, w := range window {
		if counts[w.Token] > 0 {
			counts[w.Token]--
			common++
		}
	}
	if common == 0 {
		return 0
	}
	p := float64(common) / float64(len(window))
	r := float64(common) / float64(len(target))
	return 2 * p * r / (p + r)
}
