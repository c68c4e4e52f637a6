// Package stacktrace extracts source locations from script stack traces in
// the V8 ("at fn (file:1:2)") and SpiderMonkey/JSC ("fn@file:1:2") formats.
package stacktrace

import (
	"regexp"
	"strconv"
	"strings"
)

type Frame struct {
	Function string `json:"functionName,omitempty"`
	File     string `json:"fileName"`
	Line     int    `json:"lineNumber"`
	Column   int    `json:"columnNumber"`
}

var (
	v8Frame    = regexp.MustCompile(`^\s*at (?:(.+?) \()?(?:eval at [^,]+, )?(.+?):(\d+):(\d+)\)?\s*$`)
	geckoFrame = regexp.MustCompile(`^\s*([^@]*)@(.+?):(\d+):(\d+)\s*$`)
)

// Parse returns the frames found in stack, innermost first. Lines that match
// neither format (the leading "Name: message" line included) are skipped.
func Parse(stack string) []Frame {
	var frames []Frame
	for _, line := range strings.Split(stack, "\n") {
		if f, ok := parseLine(line); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// First returns the innermost frame, or false when stack has none.
func First(stack string) (Frame, bool) {
	for _, line := range strings.Split(stack, "\n") {
		if f, ok := parseLine(line); ok {
			return f, true
		}
	}
	return Frame{}, false
}

func parseLine(line string) (Frame, bool) {
	m := v8Frame.FindStringSubmatch(line)
	if m == nil {
		m = geckoFrame.FindStringSubmatch(line)
	}
	if m == nil {
		return Frame{}, false
	}
	lineNo, _ := strconv.Atoi(m[3])
	col, _ := strconv.Atoi(m[4])
	return Frame{
		Function: strings.TrimSpace(m[1]),
		File:     m[2],
		Line:     lineNo,
		Column:   col,
	}, true
}
