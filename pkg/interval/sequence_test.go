package interval

import (
	"math"
	"testing"

	"github.com/golang/geo/r1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOp(t *testing.T) {
	tests := []struct {
		in   string
		want Op
	}{
		{"union", Union},
		{" Union ", Union},
		{"+", Union},
		{"intersect", Intersect},
		{"intersection", Intersect},
		{"difference", Difference},
		{"diff", Difference},
		{"-", Difference},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}

	_, err := ParseOp("xor")
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), `"xor"`)
}

func mustParse(t *testing.T, s string) Op {
	t.Helper()
	op, err := ParseOp(s)
	require.NoError(t, err)
	return op
}

func TestSequenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		seq     Sequence
		wantErr bool
	}{
		{"empty", nil, false},
		{"pairs", Sequence{1, 4, 5, 10}, false},
		{"touching", Sequence{1, 2, 2, 3}, false},
		{"sentinel padded", Sequence{1, 2, inf, inf}, false},
		{"odd", Sequence{1, 2, 3}, true},
		{"descending", Sequence{1, 4, 3, 5}, true},
		{"nan", Sequence{1, math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seq.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSequenceIntervals(t *testing.T) {
	ivs, err := Sequence{5, inf, 1, 2, inf, 4}.Intervals()
	require.NoError(t, err)
	assert.Equal(t, []r1.Interval{{Lo: 1, Hi: 2}, {Lo: 4, Hi: 5}}, ivs)

	_, err = Sequence{1, 2, 3, inf}.Intervals()
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSequenceNormalize(t *testing.T) {
	got, err := Sequence{0, 1, 1, 2, 3, 3, 4, 6, 5, 7, inf, inf}.Normalize()
	require.NoError(t, err)
	// [0,1] and [1,2] touch, [3,3] is empty; sorting pairs 4,5 and 6,7.
	assert.Equal(t, Sequence{0, 2, 4, 5, 6, 7}, got)

	m, err := Sequence{0, 1, 1, 2, 5, 7}.Measure()
	require.NoError(t, err)
	assert.Equal(t, 4.0, m)
}

func TestSequenceFiniteAndPad(t *testing.T) {
	s := Sequence{1, inf, 2, inf}
	assert.Equal(t, Sequence{1, 2}, s.Finite())
	assert.Equal(t, Sequence{1, inf, 2, inf, inf, inf}, s.Pad(6))
	assert.Equal(t, s, s.Pad(2))
	assert.True(t, IsSentinel(Sentinel))
	assert.False(t, IsSentinel(math.Inf(-1)))
}

func TestBatchFromColumns(t *testing.T) {
	b := FromColumns(Sequence{1, 2}, Sequence{1, 2, 3, 4, 5}, nil)
	require.Equal(t, 6, b.Rows())
	require.Equal(t, 3, b.Cols())
	assert.Equal(t, Sequence{1, 2, inf, inf, inf, inf}, b.Column(0))
	assert.Equal(t, Sequence{1, 2, 3, 4, 5, inf}, b.Column(1))
	assert.Equal(t, Sequence{inf, inf, inf, inf, inf, inf}, b.Column(2))
	assert.Equal(t, 3.0, b.At(2, 1))

	b.Set(0, 2, 7)
	assert.Equal(t, 7.0, b.At(0, 2))
	assert.Len(t, b.Columns(), 3)

	// Column returns a copy.
	c := b.Column(0)
	c[0] = 100
	assert.Equal(t, 1.0, b.At(0, 0))
}

func TestBatchCompact(t *testing.T) {
	b := FromColumns(Sequence{1, 2, inf, inf, inf, inf}, Sequence{1, 2, 3, inf, inf, inf})
	c := b.Compact()
	assert.Equal(t, 4, c.Rows())
	assert.Equal(t, Sequence{1, 2, inf, inf}, c.Column(0))
	assert.Equal(t, Sequence{1, 2, 3, inf}, c.Column(1))

	empty := FromColumns(Sequence{inf, inf}).Compact()
	assert.Equal(t, 0, empty.Rows())
	assert.Equal(t, 1, empty.Cols())

	odd := NewBatch(3, 1)
	odd.Set(2, 0, 1)
	assert.Equal(t, 3, odd.Compact().Rows())
}

func TestOpText(t *testing.T) {
	b, err := Difference.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "difference", string(b))

	var op Op
	require.NoError(t, op.UnmarshalText([]byte("and")))
	assert.Equal(t, Intersect, op)

	_, err = Op(9).MarshalText()
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, op.UnmarshalText([]byte("xor")), ErrInvalidArgument)
}
