package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridflow/pkg/apperror"
)

func mustNew(t *testing.T, tpl Template, grid, block []int) *Layout {
	t.Helper()
	l, err := New(tpl, grid, block)
	require.NoError(t, err)
	return l
}

func TestNew_Constants(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	assert.Equal(t, 2, l.DimCount)
	assert.Equal(t, 1, l.NodesPerCell)
	assert.Equal(t, 4, l.MaxDegree)
	assert.Equal(t, 36, l.CellCount)
	assert.Equal(t, 36, l.NodeCount)
	assert.Equal(t, 4, l.BlockCount)
	assert.Equal(t, 9, l.CellsPerBlock)
	assert.Equal(t, 9, l.NodesPerBlock)
	assert.Equal(t, []int{2, 2}, l.BlocksPer)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		tpl   Template
		grid  []int
		block []int
		code  apperror.ErrorCode
	}{
		{
			name:  "not divisible",
			tpl:   FourConnected(),
			grid:  []int{7, 6},
			block: []int{3, 3},
			code:  apperror.CodeInvalidLayout,
		},
		{
			name:  "rank mismatch",
			tpl:   FourConnected(),
			grid:  []int{6, 6},
			block: []int{3},
			code:  apperror.CodeInvalidDimension,
		},
		{
			name:  "missing sister",
			tpl:   Template{{From: 0, To: 0, Offset: []int{1, 0}}},
			grid:  []int{6, 6},
			block: []int{3, 3},
			code:  apperror.CodeMissingSister,
		},
		{
			name: "offset beyond block",
			tpl: Template{
				{From: 0, To: 0, Offset: []int{2}},
				{From: 0, To: 0, Offset: []int{-2}},
			},
			grid:  []int{4},
			block: []int{1},
			code:  apperror.CodeInvalidLayout,
		},
		{
			name:  "self loop",
			tpl:   Template{{From: 0, To: 0, Offset: []int{0, 0}}},
			grid:  []int{6, 6},
			block: []int{3, 3},
			code:  apperror.CodeInvalidLayout,
		},
		{
			name:  "empty template",
			tpl:   Template{},
			grid:  []int{6, 6},
			block: []int{3, 3},
			code:  apperror.CodeInvalidLayout,
		},
		{
			name:  "offset rank mismatch",
			tpl:   Template{{From: 0, To: 0, Offset: []int{1}}},
			grid:  []int{6, 6},
			block: []int{3, 3},
			code:  apperror.CodeInvalidLayout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tpl, tt.grid, tt.block)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestSisters(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	// Template order: +x, -x, +y, -y.
	assert.Equal(t, 1, l.Sisters[0][0])
	assert.Equal(t, 0, l.Sisters[0][1])
	assert.Equal(t, 3, l.Sisters[0][2])
	assert.Equal(t, 2, l.Sisters[0][3])
}

func TestSisters_Presets(t *testing.T) {
	for _, tpl := range []Template{LineConnected(), EightConnected(), SixConnected(), TwentySixConnected()} {
		grid := make([]int, len(tpl[0].Offset))
		block := make([]int, len(tpl[0].Offset))
		for i := range grid {
			grid[i] = 4
			block[i] = 2
		}
		l := mustNew(t, tpl, grid, block)
		for k := range l.Arcs {
			for e, arc := range l.Arcs[k] {
				s := l.Sisters[k][e]
				require.True(t, l.Arcs[arc.To][s].isSisterOf(arc))
				assert.Equal(t, e, l.Sisters[arc.To][s])
			}
		}
	}
}

func TestSplitNodeID(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	tests := []struct {
		id    int64
		block int
		sub   int
	}{
		{id: 0, block: 0, sub: 0},   // (0,0)
		{id: 21, block: 3, sub: 0},  // (3,3) = block (1,1), local (0,0)
		{id: 14, block: 0, sub: 8},  // (2,2) = block (0,0), local (2,2)
		{id: 3, block: 1, sub: 0},   // (0,3) = block (0,1), local (0,0)
		{id: 35, block: 3, sub: 8},  // (5,5)
	}

	for _, tt := range tests {
		block, sub, err := l.SplitNodeID(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.block, block, "id %d", tt.id)
		assert.Equal(t, tt.sub, sub, "id %d", tt.id)
		assert.Equal(t, tt.id, l.NodeID(block, sub), "round trip of id %d", tt.id)
	}

	_, _, err := l.SplitNodeID(36)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidNode))
	_, _, err = l.SplitNodeID(-1)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidNode))
}

func TestShifts_Interior(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	// Local cell (1,1) is interior.
	loc := l.LocOf(4)
	shifts := l.Shifts[0][loc]

	assert.False(t, shifts[0].Crosses)
	assert.Equal(t, 3, shifts[0].DeltaSub) // +x moves one row down in the block
	assert.False(t, shifts[2].Crosses)
	assert.Equal(t, 1, shifts[2].DeltaSub) // +y moves one column right
	assert.Equal(t, -3, shifts[1].DeltaSub)
	assert.Equal(t, -1, shifts[3].DeltaSub)
}

func TestShifts_Crossing(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	// Local cell (2,0): +x crosses into the block below.
	loc := l.LocOf(6)
	sh := l.Shifts[0][loc][0]
	require.True(t, sh.Crosses)
	assert.Equal(t, 2, sh.DeltaBlock) // blocks are laid out 2x2 row-major
	assert.Equal(t, -6, sh.DeltaSub)  // lands at local (0,0)

	// From block 0 sub (2,0)=6, the arc lands at block 2 sub 0.
	assert.Equal(t, int64(18), l.NodeID(2, 0)) // global (3,0)
}

func TestMasks_GridBoundary(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	// Node (0,0): -x and -y leave the grid, +x and +y stay.
	loc := l.LocOf(0)
	mask := l.Masks[0][loc][l.BlockLoc[0]]
	assert.Equal(t, uint32(0b0101), mask)

	// Same location in block 3 (grid high corner): all four arcs stay in
	// the grid because crossings point into existing neighbor blocks.
	mask = l.Masks[0][loc][l.BlockLoc[3]]
	assert.Equal(t, uint32(0b1111), mask)

	// Node (5,5) = block 3 local (2,2): +x and +y leave the grid.
	loc = l.LocOf(8)
	mask = l.Masks[0][loc][l.BlockLoc[3]]
	assert.Equal(t, uint32(0b1010), mask)
}

func TestMasks_SingleBlockAxis(t *testing.T) {
	// One block along each axis: low and high grid faces coincide.
	l := mustNew(t, FourConnected(), []int{3, 3}, []int{3, 3})
	require.Equal(t, 1, l.BlockCount)

	loc := l.LocOf(0) // (0,0)
	mask := l.Masks[0][loc][l.BlockLoc[0]]
	assert.Equal(t, uint32(0b0101), mask)

	loc = l.LocOf(8) // (2,2)
	mask = l.Masks[0][loc][l.BlockLoc[0]]
	assert.Equal(t, uint32(0b1010), mask)

	loc = l.LocOf(4) // interior
	mask = l.Masks[0][loc][l.BlockLoc[0]]
	assert.Equal(t, uint32(0b1111), mask)
}

func TestBlockNeighbors(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	assert.Equal(t, []int32{1, 2}, l.BlockNeighbors(0))
	assert.Equal(t, []int32{0, 3}, l.BlockNeighbors(1))
	assert.Equal(t, []int32{0, 3}, l.BlockNeighbors(2))
	assert.Equal(t, []int32{1, 2}, l.BlockNeighbors(3))
}

func TestBlockNeighbors_Diagonal(t *testing.T) {
	// Diagonal arcs make diagonal blocks neighbors too.
	l := mustNew(t, EightConnected(), []int{4, 4}, []int{2, 2})

	assert.Equal(t, []int32{1, 2, 3}, l.BlockNeighbors(0))
	assert.Equal(t, []int32{0, 2, 3}, l.BlockNeighbors(1))
	assert.Equal(t, []int32{0, 1, 3}, l.BlockNeighbors(2))
	assert.Equal(t, []int32{0, 1, 2}, l.BlockNeighbors(3))
}

func TestFindArc(t *testing.T) {
	l := mustNew(t, FourConnected(), []int{6, 6}, []int{3, 3})

	e, ok := l.FindArc(0, 0, []int{0, 1})
	require.True(t, ok)
	assert.Equal(t, 2, e)

	_, ok = l.FindArc(0, 0, []int{0, 2})
	assert.False(t, ok)
	_, ok = l.FindArc(1, 0, []int{0, 1})
	assert.False(t, ok)
}

func TestByConnectivity(t *testing.T) {
	for _, tt := range []struct {
		connectivity int
		arcs         int
	}{
		{2, 2}, {4, 4}, {6, 6}, {8, 8}, {26, 26},
	} {
		tpl, err := ByConnectivity(tt.connectivity)
		require.NoError(t, err)
		assert.Len(t, tpl, tt.arcs)
	}

	_, err := ByConnectivity(5)
	assert.Error(t, err)
}

func TestNarrowBlocks(t *testing.T) {
	// Blocks of width 1: every coordinate is its own class.
	l := mustNew(t, LineConnected(), []int{4}, []int{1})

	assert.Equal(t, 4, l.BlockCount)
	assert.Equal(t, 1, l.NodesPerBlock)

	loc := l.LocOf(0)
	// Interior block: both arcs valid, both cross.
	mask := l.Masks[0][loc][l.BlockLoc[1]]
	assert.Equal(t, uint32(0b11), mask)
	sh := l.Shifts[0][loc][0]
	assert.True(t, sh.Crosses)
	assert.Equal(t, 1, sh.DeltaBlock)
	assert.Equal(t, 0, sh.DeltaSub)

	// First block: -x leaves the grid.
	mask = l.Masks[0][loc][l.BlockLoc[0]]
	assert.Equal(t, uint32(0b01), mask)
	// Last block: +x leaves the grid.
	mask = l.Masks[0][loc][l.BlockLoc[3]]
	assert.Equal(t, uint32(0b10), mask)
}
