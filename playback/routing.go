package playback

import "sort"

// Routing is a crosspoint matrix: input channel -> output channel -> level.
type Routing map[int]map[int]float64

// Identity routes each of n inputs to the matching output at unity.
func Identity(n int) Routing {
	r := make(Routing, n)
	for i := 0; i < n; i++ {
		r[i] = map[int]float64{i: 1.0}
	}
	return r
}

func (r Routing) Clone() Routing {
	if r == nil {
		return nil
	}
	out := make(Routing, len(r))
	for in, outs := range r {
		row := make(map[int]float64, len(outs))
		for o, level := range outs {
			row[o] = level
		}
		out[in] = row
	}
	return out
}

// Set writes one crosspoint. A non-positive level removes it.
func (r Routing) Set(in, out int, level float64) {
	if level <= 0 {
		if row, ok := r[in]; ok {
			delete(row, out)
			if len(row) == 0 {
				delete(r, in)
			}
		}
		return
	}
	if level > 1 {
		level = 1
	}
	row, ok := r[in]
	if !ok {
		row = make(map[int]float64)
		r[in] = row
	}
	row[out] = level
}

func (r Routing) Level(in, out int) float64 {
	return r[in][out]
}

// Outputs lists the outputs an input feeds, ascending.
func (r Routing) Outputs(in int) []int {
	outs := make([]int, 0, len(r[in]))
	for o := range r[in] {
		outs = append(outs, o)
	}
	sort.Ints(outs)
	return outs
}
