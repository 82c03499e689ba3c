package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/raycsg/pkg/interval"
)

// parseSequence parses a comma separated list of hit distances. "inf" is
// accepted for sentinel slots; an empty string is the empty sequence.
func parseSequence(s string) (interval.Sequence, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return interval.Sequence{}, nil
	}
	parts := strings.Split(s, ",")
	seq := make(interval.Sequence, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hit distance %q", strings.TrimSpace(p))
		}
		seq = append(seq, v)
	}
	return seq, nil
}

// parseVec parses "x,y,z".
func parseVec(s string) ([3]float64, error) {
	var v [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("invalid vector %q: want x,y,z", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v, fmt.Errorf("invalid vector %q: %w", s, err)
		}
		v[i] = f
	}
	return v, nil
}

func formatValue(v float64) string {
	if interval.IsSentinel(v) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatSequence renders every slot, sentinels included.
func formatSequence(s interval.Sequence) string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// formatIntervals renders a normalized sequence as closed intervals.
func formatIntervals(s interval.Sequence) string {
	if len(s) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		parts = append(parts, fmt.Sprintf("[%s, %s]", formatValue(s[i]), formatValue(s[i+1])))
	}
	return strings.Join(parts, " ")
}

// jsonSequence encodes sentinel slots as null, which JSON can represent
// and +Inf cannot.
type jsonSequence interval.Sequence

func (s jsonSequence) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if !interval.IsSentinel(s[i]) {
			out[i] = &s[i]
		}
	}
	return json.Marshal(out)
}
