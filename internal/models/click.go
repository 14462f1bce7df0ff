package models

import "encoding/json"

// Label is the sign of a simulated click.
type Label int

const (
	// Negative marks a region that should be background.
	Negative Label = 0
	// Positive marks a region that should be foreground.
	Positive Label = 1
)

func (l Label) String() string {
	if l == Positive {
		return "positive"
	}
	return "negative"
}

// Click is one simulated correction for one batch entry.
type Click struct {
	Entry int   `json:"entry"`
	Point Point `json:"point"`
	Label Label `json:"label"`
}

// MarshalJSON encodes a point as [z, y, x].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{p.Z, p.Y, p.X})
}

// UnmarshalJSON decodes a [z, y, x] triple.
func (p *Point) UnmarshalJSON(b []byte) error {
	var v [3]int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p.Z, p.Y, p.X = v[0], v[1], v[2]
	return nil
}

// ClickSet holds clicks in ascending entry order. Some samplers omit entries,
// so len(ClickSet) may be smaller than the batch size.
type ClickSet []Click

// Entries returns the batch index of each click.
func (cs ClickSet) Entries() []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.Entry
	}
	return out
}

// Points flattens the clicks into a (len, 1, 3) coordinate tensor in z, y, x order.
func (cs ClickSet) Points() []int64 {
	out := make([]int64, 0, 3*len(cs))
	for _, c := range cs {
		out = append(out, int64(c.Point.Z), int64(c.Point.Y), int64(c.Point.X))
	}
	return out
}

// Labels flattens the click signs into a (len, 1) tensor.
func (cs ClickSet) Labels() []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = int64(c.Label)
	}
	return out
}
