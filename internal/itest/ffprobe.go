//go:build integration

package itest

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

type probed struct {
	duration    float64
	audioStream bool
}

func probeFile(path string) (probed, error) {
	b, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "json",
		path,
	).CombinedOutput()
	if err != nil {
		return probed{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	var raw struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return probed{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	sec, err := strconv.ParseFloat(raw.Format.Duration, 64)
	if err != nil {
		return probed{}, fmt.Errorf("parse duration %q: %w", raw.Format.Duration, err)
	}
	res := probed{duration: sec}
	for _, s := range raw.Streams {
		if s.CodecType == "audio" {
			res.audioStream = true
		}
	}
	return res, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
