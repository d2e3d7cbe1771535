package dynamo

import "gonum.org/v1/gonum/spatial/r2"

// TrajectoryCapacity bounds every body's position history.
const TrajectoryCapacity = 100

// Trajectory is a FIFO-bounded history of positions.
type Trajectory struct {
	points   []r2.Vec
	capacity int
}

func NewTrajectory(capacity int) *Trajectory {
	if capacity <= 0 {
		capacity = TrajectoryCapacity
	}
	return &Trajectory{
		points:   make([]r2.Vec, 0, capacity),
		capacity: capacity,
	}
}

// Append records p, evicting the oldest entry once capacity is exceeded.
func (t *Trajectory) Append(p r2.Vec) {
	t.points = append(t.points, p)
	if len(t.points) > t.capacity {
		copy(t.points, t.points[1:])
		t.points = t.points[:t.capacity]
	}
}

func (t *Trajectory) Len() int { return len(t.points) }

func (t *Trajectory) Cap() int { return t.capacity }

// Points returns a copy of the history, oldest first.
func (t *Trajectory) Points() []r2.Vec {
	out := make([]r2.Vec, len(t.points))
	copy(out, t.points)
	return out
}

func (t *Trajectory) Clone() *Trajectory {
	c := &Trajectory{
		points:   make([]r2.Vec, len(t.points), t.capacity),
		capacity: t.capacity,
	}
	copy(c.points, t.points)
	return c
}
