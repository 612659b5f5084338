// Package spin implements the weighted prize wheel for the daily
// spin-and-win action.
package spin

import (
	"errors"
	"fmt"
	"math/rand"
)

// Errors for wheel construction and draws.
var (
	ErrNoSegments     = errors.New("prize wheel needs at least one segment")
	ErrInvalidWeight  = errors.New("segment weight must be positive")
	ErrInvalidPrize   = errors.New("segment prize must not be negative")
	ErrRollOutOfRange = errors.New("roll outside wheel range")
)

// Segment is one prize band on the wheel. Its probability is
// Weight / TotalWeight, so integer weights always sum to exactly 1
// across the wheel.
type Segment struct {
	Points int64
	Label  string
	Weight int
}

// Wheel is an immutable weighted prize table. The table comes from
// configuration, not code; construction validates it once.
type Wheel struct {
	segments []Segment
	total    int
}

// New builds a wheel from configured segments.
func New(segments []Segment) (*Wheel, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	total := 0
	for i, s := range segments {
		if s.Weight <= 0 {
			return nil, fmt.Errorf("%w: segment %d has weight %d", ErrInvalidWeight, i, s.Weight)
		}
		if s.Points < 0 {
			return nil, fmt.Errorf("%w: segment %d has prize %d", ErrInvalidPrize, i, s.Points)
		}
		total += s.Weight
	}

	return &Wheel{
		segments: append([]Segment(nil), segments...),
		total:    total,
	}, nil
}

// TotalWeight returns the sum of all segment weights.
func (w *Wheel) TotalWeight() int {
	return w.total
}

// Segments returns a copy of the prize table for display.
func (w *Wheel) Segments() []Segment {
	return append([]Segment(nil), w.segments...)
}

// Draw maps a roll in [0, TotalWeight) onto its segment. Rolls are
// uniform, so each segment lands with probability Weight/TotalWeight.
// Deterministic given the roll; randomness stays with the caller.
func (w *Wheel) Draw(roll int) (Segment, error) {
	if roll < 0 || roll >= w.total {
		return Segment{}, fmt.Errorf("%w: roll %d, wheel total %d", ErrRollOutOfRange, roll, w.total)
	}

	for _, s := range w.segments {
		if roll < s.Weight {
			return s, nil
		}
		roll -= s.Weight
	}
	// Unreachable: the loop consumes exactly TotalWeight.
	return Segment{}, ErrRollOutOfRange
}

// Spin draws a uniform roll and returns the landed segment. A nil rng
// uses the shared math/rand source, which is safe for concurrent use;
// tests pass a seeded rng for reproducible draws.
func (w *Wheel) Spin(rng *rand.Rand) Segment {
	var roll int
	if rng != nil {
		roll = rng.Intn(w.total)
	} else {
		roll = rand.Intn(w.total)
	}
	s, _ := w.Draw(roll)
	return s
}
