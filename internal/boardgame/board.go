// Package boardgame implements the pure, side-effect-free rules of the
// 3x3 board: legality, move application, visibility, and win/draw
// detection. Nothing here reaches outside the board itself — no seat
// bookkeeping, no timers, no I/O.
package boardgame

import "errors"

// ErrIllegalMove is returned by ApplyMove when the target slot is
// already occupied or the cell index is out of range.
var ErrIllegalMove = errors.New("boardgame: illegal move")

// Color identifies a seat's pieces on the board.
type Color string

const (
	NoColor Color = ""
	Red     Color = "red"
	Blue    Color = "blue"
	Green   Color = "green"
	Yellow  Color = "yellow"
)

// DefaultPalette is the ordered color assignment pool a Room draws from
// on join, first-unused first.
var DefaultPalette = []Color{Red, Blue, Green, Yellow}

// Size identifies one of the three independent slots a cell carries.
// Larger sizes take visual precedence in Visible but do not physically
// block smaller ones from occupying the same cell: this implements the
// slot-based legality rule, not a nested-blocking variant.
type Size string

const (
	Small Size = "P"
	Mid   Size = "M"
	Large Size = "G"
)

// Sizes enumerates the three slots in size order, smallest first.
var Sizes = [3]Size{Small, Mid, Large}

// Cell is the state of one of the 9 board positions: at most one color
// per size slot, and the three slots are independent of one another.
type Cell struct {
	P Color
	M Color
	G Color
}

func (c Cell) slot(size Size) Color {
	switch size {
	case Small:
		return c.P
	case Mid:
		return c.M
	default:
		return c.G
	}
}

func (c Cell) withSlot(size Size, color Color) Cell {
	switch size {
	case Small:
		c.P = color
	case Mid:
		c.M = color
	default:
		c.G = color
	}
	return c
}

// Board is the 9-cell, row-major playing surface.
type Board [9]Cell

// Inventory is the remaining piece count per size for one seat. It is
// monotonically non-increasing within a single match and reset to
// {3,3,3} whenever a match (re)initializes.
type Inventory struct {
	P int
	M int
	G int
}

// NewInventory returns the starting allotment of 3 pieces per size.
func NewInventory() Inventory { return Inventory{P: 3, M: 3, G: 3} }

// Count returns the remaining pieces for the given size.
func (inv Inventory) Count(size Size) int {
	switch size {
	case Small:
		return inv.P
	case Mid:
		return inv.M
	default:
		return inv.G
	}
}

// Decrement returns inv with one piece of size removed. It returns
// ErrIllegalMove if none remain — callers must check Count first for a
// typed error more specific than this generic guard.
func (inv Inventory) Decrement(size Size) (Inventory, error) {
	if inv.Count(size) <= 0 {
		return inv, ErrIllegalMove
	}
	switch size {
	case Small:
		inv.P--
	case Mid:
		inv.M--
	default:
		inv.G--
	}
	return inv, nil
}

// IsLegal reports whether placing a piece of the given size on the
// given cell is allowed: the cell index must be in range and the slot
// for that size must be empty. Color is irrelevant to legality —
// different sizes in the same cell may carry different colors.
func IsLegal(b Board, cell int, size Size) bool {
	if cell < 0 || cell > 8 {
		return false
	}
	return b[cell].slot(size) == NoColor
}

// ApplyMove returns a new board with the given slot set to color. It
// returns ErrIllegalMove if IsLegal would reject the placement.
func ApplyMove(b Board, cell int, size Size, color Color) (Board, error) {
	if !IsLegal(b, cell, size) {
		return b, ErrIllegalMove
	}
	b[cell] = b[cell].withSlot(size, color)
	return b, nil
}

// Visible returns the color of the largest occupied slot in a cell (G
// over M over P), or NoColor if the cell is empty. Only the visible
// piece participates in win detection.
func Visible(c Cell) Color {
	if c.G != NoColor {
		return c.G
	}
	if c.M != NoColor {
		return c.M
	}
	return c.P
}

// lines enumerates the 8 winning alignments: 3 rows, 3 columns, 2
// diagonals over a row-major 3x3 board.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// HasWin reports whether any line has the given color visible in all
// three cells. This is the single win condition — size-order alignments
// and fully-nested trios are not independent conditions; they win only
// when they happen to coincide with the visible-piece pattern.
func HasWin(b Board, color Color) bool {
	if color == NoColor {
		return false
	}
	for _, ln := range lines {
		if Visible(b[ln[0]]) == color && Visible(b[ln[1]]) == color && Visible(b[ln[2]]) == color {
			return true
		}
	}
	return false
}

// AnyLegalMoveFor reports whether some (cell, size) pair exists where
// the inventory still has that size available and the slot is empty.
func AnyLegalMoveFor(b Board, inv Inventory) bool {
	for _, size := range Sizes {
		if inv.Count(size) <= 0 {
			continue
		}
		for cell := 0; cell < 9; cell++ {
			if IsLegal(b, cell, size) {
				return true
			}
		}
	}
	return false
}
