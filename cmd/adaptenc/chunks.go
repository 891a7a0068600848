package main

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/five82/adaptenc/internal/chunk"
)

// ffprobeFormat is the subset of ffprobe's JSON output this command reads:
// just enough to turn a chunk file's duration into a frame range.
type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeDuration shells out to ffprobe for a chunk file's duration in
// seconds. Splitting and timestamp-accurate frame indexing are the chunk
// producer's job, external to this controller; this is only enough to size
// a ChunkSequence from files that already exist on disk.
func probeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "json", path).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	seconds, err := parseFFprobeDuration(out)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return seconds, nil
}

// parseFFprobeDuration extracts the duration in seconds from ffprobe's
// `-show_entries format=duration -of json` output, split out of
// probeDuration so the parsing logic is testable without a real ffprobe
// binary on PATH.
func parseFFprobeDuration(out []byte) (float64, error) {
	var parsed ffprobeFormat
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", parsed.Format.Duration, err)
	}
	return seconds, nil
}

// sequenceFromFiles builds a ChunkSequence from a sorted list of chunk file
// paths sharing a common fps, using durationOf to derive each file's frame
// range. A file whose duration can't be probed is skipped rather than
// aborting the whole sequence.
func sequenceFromFiles(paths []string, fps float64, durationOf func(string) (float64, error)) chunk.ChunkSequence {
	chunks := make([]chunk.Chunk, 0, len(paths))
	frame := 0
	for _, path := range paths {
		duration, err := durationOf(path)
		if err != nil {
			continue
		}
		frameCount := int(duration*fps + 0.5)
		if frameCount < 1 {
			frameCount = 1
		}
		chunks = append(chunks, chunk.Chunk{
			SourcePath: path,
			FirstFrame: frame,
			LastFrame:  frame + frameCount - 1,
			FPS:        fps,
		})
		frame += frameCount
	}
	input := ""
	if len(paths) > 0 {
		input = paths[0]
	}
	return chunk.NewSequence(input, chunks)
}
