// Package metajson decodes free-form JSON columns without failing the caller.
package metajson

import (
	"encoding/json"
	"strings"
)

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// Parse decodes s into a map. Blank or invalid input yields nil.
func Parse(s string) map[string]any {
	s = strings.TrimSpace(lineBreaks.Replace(s))
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

// ParseBytes is Parse over raw column bytes.
func ParseBytes(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	return Parse(string(b))
}

// Merge returns a copy of base with extra applied on top.
func Merge(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
