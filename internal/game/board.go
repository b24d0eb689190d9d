package game

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mrand "math/rand"
)

// BoardSize is the width and height of the grid.
const BoardSize = 10

// NumShips is the fleet size the proving service expects.
const NumShips = 5

// DefaultSalt is the salt the web client commits with.
const DefaultSalt uint32 = 0xDEADBEEF

var shipSpans = [NumShips]uint32{2, 3, 3, 4, 5} // total 17

type Position struct {
	X uint32 `json:"x" yaml:"x"`
	Y uint32 `json:"y" yaml:"y"`
}

func (p Position) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

func (p Position) InBounds() bool { return p.X < BoardSize && p.Y < BoardSize }

type Direction string

const (
	Vertical   Direction = "Vertical"
	Horizontal Direction = "Horizontal"
)

type Ship struct {
	Pos     Position  `json:"pos" yaml:"pos"`
	Dir     Direction `json:"dir" yaml:"dir"`
	HitMask uint32    `json:"hit_mask" yaml:"hit_mask"`
}

// State is the hidden board a player commits to: five ships plus a salt.
type State struct {
	Ships [NumShips]Ship `json:"ships" yaml:"ships"`
	Salt  uint32         `json:"salt" yaml:"salt"`
}

// RoundParams pairs a state with the shot that must be proven against it.
type RoundParams struct {
	State State    `json:"state"`
	Shot  Position `json:"shot"`
}

// Span returns how many cells the i-th ship covers.
func Span(i int) uint32 { return shipSpans[i] }

// Cells lists the positions covered by a ship of the given span.
func (s Ship) Cells(span uint32) []Position {
	out := make([]Position, 0, span)
	for i := uint32(0); i < span; i++ {
		if s.Dir == Vertical {
			out = append(out, Position{X: s.Pos.X, Y: s.Pos.Y + i})
		} else {
			out = append(out, Position{X: s.Pos.X + i, Y: s.Pos.Y})
		}
	}
	return out
}

func (s Ship) fits(span uint32) bool {
	if !s.Pos.InBounds() {
		return false
	}
	switch s.Dir {
	case Vertical:
		return s.Pos.Y+span <= BoardSize
	case Horizontal:
		return s.Pos.X+span <= BoardSize
	}
	return false
}

// Validate checks placement only: every ship on the board, no overlap, hit masks within span.
func (st *State) Validate() error {
	var taken [BoardSize][BoardSize]bool
	for i, s := range st.Ships {
		span := shipSpans[i]
		if s.Dir != Vertical && s.Dir != Horizontal {
			return fmt.Errorf("ship %d: invalid direction %q", i, s.Dir)
		}
		if !s.fits(span) {
			return fmt.Errorf("ship %d at %s does not fit on the board", i, s.Pos)
		}
		if s.HitMask>>span != 0 {
			return fmt.Errorf("ship %d: hit mask %#x exceeds span %d", i, s.HitMask, span)
		}
		for _, c := range s.Cells(span) {
			if taken[c.X][c.Y] {
				return fmt.Errorf("ship %d overlaps another ship at %s", i, c)
			}
			taken[c.X][c.Y] = true
		}
	}
	return nil
}

// Sunk reports whether every cell of the i-th ship has been hit.
func (st *State) Sunk(i int) bool {
	full := uint32(1)<<shipSpans[i] - 1
	return st.Ships[i].HitMask&full == full
}

// RandomState places the fleet without overlap and draws a fresh salt.
func RandomState() (State, error) {
	var st State
	var taken [BoardSize][BoardSize]bool
	tries := 0
	for i := range st.Ships {
		span := shipSpans[i]
		for {
			if tries > 10000 {
				return State{}, errors.New("failed to place ships")
			}
			tries++
			s := Ship{
				Pos: Position{X: uint32(mrand.Intn(BoardSize)), Y: uint32(mrand.Intn(BoardSize))},
				Dir: Horizontal,
			}
			if mrand.Intn(2) == 0 {
				s.Dir = Vertical
			}
			if !s.fits(span) {
				continue
			}
			cells := s.Cells(span)
			free := true
			for _, c := range cells {
				if taken[c.X][c.Y] {
					free = false
					break
				}
			}
			if !free {
				continue
			}
			for _, c := range cells {
				taken[c.X][c.Y] = true
			}
			st.Ships[i] = s
			break
		}
	}

	var salt [4]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return State{}, err
	}
	st.Salt = binary.LittleEndian.Uint32(salt[:])
	return st, nil
}
