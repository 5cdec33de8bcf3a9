package data

import (
	"math"
	"strings"
)

// Concat stacks frames vertically. The result has the union of all column
// names in order of first appearance. A column is numeric only if it is numeric
// in every frame that has it; missing numeric cells become NaN and missing text
// cells become "".
func Concat(frames ...*Frame) (*Frame, error) {
	var names []string
	numeric := map[string]bool{}
	total := 0
	for _, f := range frames {
		total += f.n
		for _, c := range f.cols {
			isNum, seen := numeric[c.name]
			if !seen {
				names = append(names, c.name)
				numeric[c.name] = c.num != nil
				continue
			}
			numeric[c.name] = isNum && c.num != nil
		}
	}

	out := NewFrame(total)
	for _, name := range names {
		if numeric[name] {
			col := make([]float64, 0, total)
			for _, f := range frames {
				if v, err := f.Float(name); err == nil {
					col = append(col, v...)
					continue
				}
				for iter := 0; iter < f.n; iter++ {
					col = append(col, math.NaN())
				}
			}
			if err := out.SetFloat(name, col); err != nil {
				return nil, err
			}
			continue
		}
		col := make([]string, 0, total)
		for _, f := range frames {
			if v, err := f.Text(name); err == nil {
				col = append(col, v...)
				continue
			}
			col = append(col, make([]string, f.n)...)
		}
		if err := out.SetText(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// JoinInner joins left and right on equal key columns. Rows keep the order of
// left; for duplicate keys on the right the first row wins. Non-key columns of
// right that also exist in left are skipped.
func JoinInner(left, right *Frame, keys ...string) (*Frame, error) {
	lk, err := keyStrings(left, keys)
	if err != nil {
		return nil, err
	}
	rk, err := keyStrings(right, keys)
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(rk))
	for i, k := range rk {
		if _, ok := pos[k]; !ok {
			pos[k] = i
		}
	}

	var lrows, rrows []int
	for i, k := range lk {
		if j, ok := pos[k]; ok {
			lrows = append(lrows, i)
			rrows = append(rrows, j)
		}
	}

	out := left.Take(lrows)
	picked := right.Take(rrows)
	for _, c := range picked.cols {
		if out.Has(c.name) {
			continue
		}
		if err := out.set(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func keyStrings(f *Frame, keys []string) ([]string, error) {
	cols := make([][]string, len(keys))
	for i, k := range keys {
		v, err := f.Text(k)
		if err != nil {
			return nil, err
		}
		cols[i] = v
	}
	out := make([]string, f.n)
	parts := make([]string, len(keys))
	for r := 0; r < f.n; r++ {
		for i := range cols {
			parts[i] = cols[i][r]
		}
		out[r] = strings.Join(parts, "\x1f")
	}
	return out, nil
}
