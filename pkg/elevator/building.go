package elevator

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownFloor is returned for floor identifiers not in the building.
var ErrUnknownFloor = errors.New("unknown floor")

// Floor is a named stop and its height above the datum in meters.
// Floor는 층 식별자와 기준면으로부터의 높이(미터)입니다.
type Floor struct {
	ID       string  `yaml:"id" json:"id"`
	Position float64 `yaml:"position" json:"position"`
}

// FloorTable maps floor identifiers to positions. Immutable after construction.
// FloorTable은 생성 후 변경되지 않는 층 위치 조회 테이블입니다.
type FloorTable struct {
	floors []Floor
	index  map[string]int
}

// DefaultFloors returns the reference building: a 4m basement and ground
// floor, eight 3m floors and a 4m technical floor on top.
func DefaultFloors() []Floor {
	floors := []Floor{
		{ID: "subsolo", Position: 0},
		{ID: "terreo", Position: 4},
	}
	for i := 1; i <= 8; i++ {
		floors = append(floors, Floor{
			ID:       fmt.Sprintf("andar_%d", i),
			Position: 8 + float64(i-1)*3,
		})
	}
	return append(floors, Floor{ID: "tecnico", Position: 33})
}

// NewFloorTable validates and copies floors, which must be ordered bottom to top.
func NewFloorTable(floors []Floor) (*FloorTable, error) {
	if len(floors) < 2 {
		return nil, fmt.Errorf("building needs at least 2 floors, got %d", len(floors))
	}
	t := &FloorTable{
		floors: make([]Floor, len(floors)),
		index:  make(map[string]int, len(floors)),
	}
	copy(t.floors, floors)

	for i, f := range t.floors {
		if f.ID == "" {
			return nil, fmt.Errorf("floor %d has no id", i)
		}
		if _, dup := t.index[f.ID]; dup {
			return nil, fmt.Errorf("duplicate floor id %q", f.ID)
		}
		if math.IsNaN(f.Position) || f.Position < 0 {
			return nil, fmt.Errorf("floor %q: invalid position %g", f.ID, f.Position)
		}
		if i > 0 && f.Position <= t.floors[i-1].Position {
			return nil, fmt.Errorf("floor %q (%gm) is not above %q (%gm)",
				f.ID, f.Position, t.floors[i-1].ID, t.floors[i-1].Position)
		}
		t.index[f.ID] = i
	}
	return t, nil
}

// Position returns the height of a floor.
func (t *FloorTable) Position(id string) (float64, error) {
	i, ok := t.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFloor, id)
	}
	return t.floors[i].Position, nil
}

// Lookup returns the floor with the given id.
func (t *FloorTable) Lookup(id string) (Floor, error) {
	i, ok := t.index[id]
	if !ok {
		return Floor{}, fmt.Errorf("%w: %q", ErrUnknownFloor, id)
	}
	return t.floors[i], nil
}

// Nearest returns the floor closest to pos. Ties go to the lower floor.
func (t *FloorTable) Nearest(pos float64) Floor {
	best := t.floors[0]
	bestDist := math.Abs(pos - best.Position)
	for _, f := range t.floors[1:] {
		if d := math.Abs(pos - f.Position); d < bestDist {
			best, bestDist = f, d
		}
	}
	return best
}

// Floors returns a copy of the floors, bottom to top.
func (t *FloorTable) Floors() []Floor {
	out := make([]Floor, len(t.floors))
	copy(out, t.floors)
	return out
}

// IDs returns the floor identifiers, bottom to top.
func (t *FloorTable) IDs() []string {
	ids := make([]string, len(t.floors))
	for i, f := range t.floors {
		ids[i] = f.ID
	}
	return ids
}
