package interval

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/golang/geo/r1"
)

// Sentinel marks a result slot that is not a boundary of the combined solid.
var Sentinel = math.Inf(1)

// ErrMalformed is returned by Validate and Intervals for sequences that
// break the hit sequence invariants.
var ErrMalformed = errors.New("malformed hit sequence")

// Sequence is the hit sequence of one ray: ascending boundary values where
// even indices enter the solid and odd indices leave it.
type Sequence []float64

// IsSentinel reports whether v marks an empty slot.
func IsSentinel(v float64) bool {
	return math.IsInf(v, 1)
}

// Finite returns the non-sentinel values of s in their current order.
func (s Sequence) Finite() Sequence {
	out := make(Sequence, 0, len(s))
	for _, v := range s {
		if !IsSentinel(v) {
			out = append(out, v)
		}
	}
	return out
}

// Pad returns a copy of s extended with sentinels to length n. A sequence
// already at least n long is copied unchanged.
func (s Sequence) Pad(n int) Sequence {
	out := make(Sequence, max(n, len(s)))
	copy(out, s)
	for i := len(s); i < len(out); i++ {
		out[i] = Sentinel
	}
	return out
}

// Validate checks the hit sequence invariants: even length, no NaN and
// non-decreasing values. Trailing sentinel pairs are valid. Combine does
// not call Validate; callers that cannot vouch for their input should.
func (s Sequence) Validate() error {
	if len(s)%2 != 0 {
		return fmt.Errorf("interval: odd length %d: %w", len(s), ErrMalformed)
	}
	for i, v := range s {
		if math.IsNaN(v) {
			return fmt.Errorf("interval: NaN at index %d: %w", i, ErrMalformed)
		}
		if i > 0 && v < s[i-1] {
			return fmt.Errorf("interval: value %g at index %d is below its predecessor %g: %w",
				v, i, s[i-1], ErrMalformed)
		}
	}
	return nil
}

// Intervals sorts the non-sentinel values of s and pairs them into closed
// intervals. Pairing is only meaningful for sorted output, which is why an
// unsorted result is sorted here first.
func (s Sequence) Intervals() ([]r1.Interval, error) {
	f := s.Finite()
	if len(f)%2 != 0 {
		return nil, fmt.Errorf("interval: %d boundaries cannot be paired: %w", len(f), ErrMalformed)
	}
	slices.Sort(f)
	out := make([]r1.Interval, 0, len(f)/2)
	for i := 0; i < len(f); i += 2 {
		out = append(out, r1.Interval{Lo: f[i], Hi: f[i+1]})
	}
	return out, nil
}

// Normalize returns the canonical form of the solid described by s: zero
// length intervals are dropped and touching or overlapping intervals are
// merged. Two sequences describe the same solid exactly when their
// normalized forms are equal.
func (s Sequence) Normalize() (Sequence, error) {
	ivs, err := s.Intervals()
	if err != nil {
		return nil, err
	}
	var merged []r1.Interval
	for _, iv := range ivs {
		if iv.Length() <= 0 {
			continue
		}
		if n := len(merged); n > 0 && iv.Lo <= merged[n-1].Hi {
			merged[n-1] = merged[n-1].Union(iv)
			continue
		}
		merged = append(merged, iv)
	}
	out := make(Sequence, 0, 2*len(merged))
	for _, iv := range merged {
		out = append(out, iv.Lo, iv.Hi)
	}
	return out, nil
}

// Measure returns the total length of the solid described by s.
func (s Sequence) Measure() (float64, error) {
	n, err := s.Normalize()
	if err != nil {
		return 0, err
	}
	var total float64
	for i := 0; i < len(n); i += 2 {
		total += n[i+1] - n[i]
	}
	return total, nil
}
