package world

import (
	"math"
)

// Grid is a uniform broad-phase grid over the X/Y plane.
// Height is ignored here; the narrow phase in Space checks the full 3D shape.
//
// Cells are stored in row-major order (cells[row*cols+col]) and hold body indices,
// not pointers, so a rebuild is a handful of slice truncations.
type Grid struct {
	originX, originY float64
	cellSize         float64
	invCellSize      float64
	cols, rows       int
	cells            [][]uint32
	scratch          []uint32
	stamp            []uint32 // per-body query generation, used to dedup multi-cell bodies
	generation       uint32
}

// Bounds is the X/Y extent covered by the grid. Bodies outside are clamped to the edge cells.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// NewGrid creates a grid for the given bounds. cellSize should be close to the typical
// query radius; maxBodies preallocates cell capacity.
func NewGrid(b Bounds, cellSize float64, maxBodies int) *Grid {
	if cellSize <= 0 {
		cellSize = 100
	}
	cols := int(math.Ceil((b.MaxX - b.MinX) / cellSize))
	rows := int(math.Ceil((b.MaxY - b.MinY) / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxBodies / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &Grid{
		originX:     b.MinX,
		originY:     b.MinY,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *Grid) colRow(x, y float64) (int, int) {
	col := int(math.Floor((x - g.originX) * g.invCellSize))
	row := int(math.Floor((y - g.originY) * g.invCellSize))

	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// Insert adds a body covering the X/Y rectangle [minX,maxX]x[minY,maxY].
func (g *Grid) Insert(index uint32, minX, minY, maxX, maxY float64) {
	c0, r0 := g.colRow(minX, minY)
	c1, r1 := g.colRow(maxX, maxY)
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			idx := row*g.cols + col
			g.cells[idx] = append(g.cells[idx], index)
		}
	}
	for int(index) >= len(g.stamp) {
		g.stamp = append(g.stamp, 0)
	}
}

// Query returns the indices of bodies whose cells touch the rectangle.
// Each index appears once.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
func (g *Grid) Query(minX, minY, maxX, maxY float64) []uint32 {
	g.scratch = g.scratch[:0]
	g.generation++
	if g.generation == 0 {
		// wrapped: clear stamps so stale values cannot collide
		for i := range g.stamp {
			g.stamp[i] = 0
		}
		g.generation = 1
	}

	c0, r0 := g.colRow(minX, minY)
	c1, r1 := g.colRow(maxX, maxY)
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			for _, index := range g.cells[row*g.cols+col] {
				if g.stamp[index] == g.generation {
					continue
				}
				g.stamp[index] = g.generation
				g.scratch = append(g.scratch, index)
			}
		}
	}
	return g.scratch
}

// QueryRadius returns candidates within the square enclosing the circle.
// The caller performs the precise check.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	return g.Query(cx-radius, cy-radius, cx+radius, cy+radius)
}

// Stats returns grid statistics for debugging/profiling.
func (g *Grid) Stats() GridStats {
	var total, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		total += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}

	avg := 0.0
	if nonEmpty > 0 {
		avg = float64(total) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntries:   total,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avg,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	TotalCells     int     `json:"totalCells"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	TotalEntries   int     `json:"totalEntries"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
