// Package navigation picks the shortest rotation between facings arranged
// on a ring around the player.
package navigation

import (
	"fmt"
	"strings"
)

// Direction is a facing token. The set is closed; stations pick a subset
// and an order when building a Ring.
type Direction int

const (
	Front Direction = iota
	FrontRight
	Right
	BackRight
	Back
	BackLeft
	Left
	FrontLeft
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Front:
		return "Front"
	case FrontRight:
		return "FrontRight"
	case Right:
		return "Right"
	case BackRight:
		return "BackRight"
	case Back:
		return "Back"
	case BackLeft:
		return "BackLeft"
	case Left:
		return "Left"
	case FrontLeft:
		return "FrontLeft"
	case Up:
		return "Up"
	case Down:
		return "Down"
	default:
		return "Unknown"
	}
}

// ParseDirection accepts the String form of a direction, case-insensitive.
func ParseDirection(s string) (Direction, error) {
	for d := Front; d <= Down; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Step is one hop on the ring with its signed turn angle in degrees.
// Positive turns right.
type Step struct {
	From  Direction
	To    Direction
	Angle float64
}

// Ring is an ordered cycle of directions. Angles[i] is the turn from
// Order[i] to Order[(i+1)%n].
type Ring struct {
	order  []Direction
	angles []float64
	index  map[Direction]int
}

// NewRing validates and builds a ring.
func NewRing(order []Direction, angles []float64) (*Ring, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("ring needs at least one direction")
	}
	if len(order) != len(angles) {
		return nil, fmt.Errorf("ring has %d directions but %d angles", len(order), len(angles))
	}

	index := make(map[Direction]int, len(order))
	for i, d := range order {
		if _, dup := index[d]; dup {
			return nil, fmt.Errorf("direction %s appears twice", d)
		}
		index[d] = i
	}

	return &Ring{
		order:  append([]Direction(nil), order...),
		angles: append([]float64(nil), angles...),
		index:  index,
	}, nil
}

// Uniform builds a ring where every hop is the same angle, e.g. four
// facings 90 degrees apart.
func Uniform(order ...Direction) *Ring {
	angles := make([]float64, len(order))
	for i := range angles {
		angles[i] = 360 / float64(len(order))
	}
	r, err := NewRing(order, angles)
	if err != nil {
		panic(err)
	}
	return r
}

// Order returns the directions in ring order.
func (r *Ring) Order() []Direction {
	return append([]Direction(nil), r.order...)
}

// Contains reports whether d is on the ring.
func (r *Ring) Contains(d Direction) bool {
	_, ok := r.index[d]
	return ok
}

// Path returns the hops from current to target, taking whichever direction
// around the ring is shorter. Ties go forward. Backward hops carry negated
// angles. current == target yields an empty path.
func (r *Ring) Path(current, target Direction) ([]Step, error) {
	ci, ok := r.index[current]
	if !ok {
		return nil, fmt.Errorf("direction %s not on ring", current)
	}
	ti, ok := r.index[target]
	if !ok {
		return nil, fmt.Errorf("direction %s not on ring", target)
	}

	n := len(r.order)
	forward := (ti - ci + n) % n
	backward := (n - forward) % n
	if forward == 0 {
		return nil, nil
	}

	var steps []Step
	if forward <= backward {
		for i, at := 0, ci; i < forward; i++ {
			next := (at + 1) % n
			steps = append(steps, Step{From: r.order[at], To: r.order[next], Angle: r.angles[at]})
			at = next
		}
		return steps, nil
	}

	for i, at := 0, ci; i < backward; i++ {
		prev := (at - 1 + n) % n
		steps = append(steps, Step{From: r.order[at], To: r.order[prev], Angle: -r.angles[prev]})
		at = prev
	}
	return steps, nil
}

// Total sums the signed angles of a path.
func Total(steps []Step) float64 {
	var sum float64
	for _, s := range steps {
		sum += s.Angle
	}
	return sum
}
