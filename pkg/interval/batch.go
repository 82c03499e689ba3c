package interval

// Batch is a rectangular set of hit sequences, one column per ray. All
// columns share the batch's row count; shorter sequences are padded with
// sentinel pairs, which behave as empty intervals.
type Batch struct {
	rows, cols int
	data       []float64 // column-major: column c occupies data[c*rows : (c+1)*rows]
}

// NewBatch returns a rows x cols batch filled with Sentinel.
func NewBatch(rows, cols int) *Batch {
	b := &Batch{rows: rows, cols: cols, data: make([]float64, rows*cols)}
	for i := range b.data {
		b.data[i] = Sentinel
	}
	return b
}

// FromColumns builds a batch with one column per sequence. The row count
// is the longest sequence length rounded up to even.
func FromColumns(cols ...Sequence) *Batch {
	rows := 0
	for _, c := range cols {
		rows = max(rows, len(c))
	}
	rows += rows % 2
	b := NewBatch(rows, len(cols))
	for i, c := range cols {
		copy(b.column(i), c)
	}
	return b
}

// Rows returns the number of boundary slots per ray.
func (b *Batch) Rows() int { return b.rows }

// Cols returns the number of rays.
func (b *Batch) Cols() int { return b.cols }

// At returns the boundary at row r of column c.
func (b *Batch) At(r, c int) float64 {
	return b.data[c*b.rows+r]
}

// Set stores v at row r of column c.
func (b *Batch) Set(r, c int, v float64) {
	b.data[c*b.rows+r] = v
}

// column aliases the storage of column c.
func (b *Batch) column(c int) []float64 {
	return b.data[c*b.rows : (c+1)*b.rows]
}

// Column returns a copy of column c.
func (b *Batch) Column(c int) Sequence {
	out := make(Sequence, b.rows)
	copy(out, b.column(c))
	return out
}

// Columns returns a copy of every column.
func (b *Batch) Columns() []Sequence {
	out := make([]Sequence, b.cols)
	for c := range out {
		out[c] = b.Column(c)
	}
	return out
}

// Compact returns a copy of b without the trailing rows that hold Sentinel
// in every column. The row count stays even so that sentinel slots keep
// forming pairs. Only sorted batches have their sentinels at the end.
func (b *Batch) Compact() *Batch {
	used := 0
	for c := 0; c < b.cols; c++ {
		col := b.column(c)
		for r := len(col) - 1; r >= used; r-- {
			if !IsSentinel(col[r]) {
				used = r + 1
				break
			}
		}
	}
	used = min(used+used%2, b.rows)
	out := NewBatch(used, b.cols)
	for c := 0; c < b.cols; c++ {
		copy(out.column(c), b.column(c)[:used])
	}
	return out
}
