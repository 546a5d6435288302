// Package layout resolves a declarative arc template plus grid and block
// dimensions into the runtime lookup tables the solver's hot loop runs on:
// per-cell-kind arc lists with sister (reverse) indices, per-location shift
// vectors that turn an arc into a (Δblock, Δnode-subid) jump, and per
// block-location masks that hide arcs pointing outside the grid.
package layout

import (
	"fmt"

	"gridflow/pkg/apperror"
)

// Arc is one entry of an arc template: an edge emitted from node From of
// every cell to node To of the cell displaced by Offset. Every arc must
// have its sister (endpoints swapped, offset negated) in the same template.
type Arc struct {
	From   int
	To     int
	Offset []int
}

// Template is an ordered arc multiset. Order matters: the discharge engine
// tries arcs in template-declaration order.
type Template []Arc

// isSisterOf reports whether a is the reverse of b: endpoints swapped,
// offset negated.
func (a Arc) isSisterOf(b Arc) bool {
	if a.From != b.To || a.To != b.From || len(a.Offset) != len(b.Offset) {
		return false
	}
	for d := range a.Offset {
		if a.Offset[d] != -b.Offset[d] {
			return false
		}
	}
	return true
}

func (a Arc) String() string {
	return fmt.Sprintf("arc(%d->%d %v)", a.From, a.To, a.Offset)
}

// validate checks the template against the dimensionality and returns the
// node-per-cell count.
func (t Template) validate(dims int) (int, error) {
	if len(t) == 0 {
		return 0, apperror.New(apperror.CodeInvalidLayout, "arc template is empty")
	}

	nodesPerCell := 0
	for i, arc := range t {
		if arc.From < 0 || arc.To < 0 {
			return 0, apperror.Newf(apperror.CodeInvalidLayout,
				"template arc %d has negative cell index", i)
		}
		if len(arc.Offset) != dims {
			return 0, apperror.Newf(apperror.CodeInvalidLayout,
				"template arc %d has offset of rank %d, grid has rank %d", i, len(arc.Offset), dims)
		}
		if arc.From == arc.To {
			zero := true
			for _, o := range arc.Offset {
				if o != 0 {
					zero = false
					break
				}
			}
			if zero {
				return 0, apperror.Newf(apperror.CodeInvalidLayout,
					"template arc %d is a self loop", i)
			}
		}
		if arc.From >= nodesPerCell {
			nodesPerCell = arc.From + 1
		}
		if arc.To >= nodesPerCell {
			nodesPerCell = arc.To + 1
		}
	}
	return nodesPerCell, nil
}

// LineConnected returns the 1-D two-neighborhood template.
func LineConnected() Template {
	return Template{
		{From: 0, To: 0, Offset: []int{1}},
		{From: 0, To: 0, Offset: []int{-1}},
	}
}

// FourConnected returns the standard 2-D four-neighborhood template.
func FourConnected() Template {
	return Template{
		{From: 0, To: 0, Offset: []int{1, 0}},
		{From: 0, To: 0, Offset: []int{-1, 0}},
		{From: 0, To: 0, Offset: []int{0, 1}},
		{From: 0, To: 0, Offset: []int{0, -1}},
	}
}

// EightConnected returns the 2-D eight-neighborhood template, diagonals
// included.
func EightConnected() Template {
	t := FourConnected()
	for _, o := range [][]int{{1, 1}, {-1, -1}, {1, -1}, {-1, 1}} {
		t = append(t, Arc{From: 0, To: 0, Offset: o})
	}
	return t
}

// SixConnected returns the standard 3-D six-neighborhood template.
func SixConnected() Template {
	return Template{
		{From: 0, To: 0, Offset: []int{1, 0, 0}},
		{From: 0, To: 0, Offset: []int{-1, 0, 0}},
		{From: 0, To: 0, Offset: []int{0, 1, 0}},
		{From: 0, To: 0, Offset: []int{0, -1, 0}},
		{From: 0, To: 0, Offset: []int{0, 0, 1}},
		{From: 0, To: 0, Offset: []int{0, 0, -1}},
	}
}

// TwentySixConnected returns the full 3-D neighborhood template.
func TwentySixConnected() Template {
	var t Template
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				t = append(t, Arc{From: 0, To: 0, Offset: []int{x, y, z}})
			}
		}
	}
	return t
}

// ByConnectivity maps a connectivity degree to its preset template.
func ByConnectivity(connectivity int) (Template, error) {
	switch connectivity {
	case 2:
		return LineConnected(), nil
	case 4:
		return FourConnected(), nil
	case 6:
		return SixConnected(), nil
	case 8:
		return EightConnected(), nil
	case 26:
		return TwentySixConnected(), nil
	default:
		return nil, apperror.Newf(apperror.CodeInvalidLayout,
			"no preset template for connectivity %d", connectivity)
	}
}
