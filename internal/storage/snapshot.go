package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logging"
	"gonum.org/v1/gonum/spatial/r2"
)

// Record is one body in a snapshot file. Kind-specific fields are present
// only for the matching type.
type Record struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Mass     float64   `json:"mass"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Color    []int     `json:"color"`
	Radius   float64   `json:"radius"`

	Temperature  *float64 `json:"temperature,omitempty"`
	Atmosphere   *string  `json:"atmosphere,omitempty"`
	Surface      *string  `json:"surface,omitempty"`
	ParentPlanet *string  `json:"parent_planet,omitempty"`
	TailLength   *float64 `json:"tail_length,omitempty"`
	Composition  *string  `json:"composition,omitempty"`
	Mission      *string  `json:"mission,omitempty"`
}

// SkippedRecord is a snapshot entry dropped because its type is unknown.
type SkippedRecord struct {
	Index int
	Name  string
	Type  string
}

// LoadReport lists what a lossy load left out.
type LoadReport struct {
	Loaded  int
	Skipped []SkippedRecord
}

func (r LoadReport) Lossy() bool { return len(r.Skipped) > 0 }

// DecodeSnapshot parses an ordered body list. Records with an unknown type
// are skipped and reported; any other malformed record fails the whole load
// with ErrSnapshotLoad.
func DecodeSnapshot(rd io.Reader) ([]dynamo.Body, LoadReport, error) {
	var records []Record
	if err := json.NewDecoder(rd).Decode(&records); err != nil {
		return nil, LoadReport{}, fmt.Errorf("%w: %v", dynamo.ErrSnapshotLoad, err)
	}

	var report LoadReport
	bodies := make([]dynamo.Body, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for i, rec := range records {
		kind, err := dynamo.ParseKind(rec.Type)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedRecord{Index: i, Name: rec.Name, Type: rec.Type})
			continue
		}

		b, err := rec.body(kind)
		if err != nil {
			return nil, LoadReport{}, fmt.Errorf("%w: record %d: %v", dynamo.ErrSnapshotLoad, i, err)
		}
		if err := b.Validate(); err != nil {
			return nil, LoadReport{}, fmt.Errorf("%w: record %d: %v", dynamo.ErrSnapshotLoad, i, err)
		}
		if _, dup := seen[b.Name]; dup {
			return nil, LoadReport{}, fmt.Errorf("%w: record %d: %v", dynamo.ErrSnapshotLoad, i,
				&dynamo.BodyError{Op: "load", Name: b.Name, Err: dynamo.ErrDuplicateName})
		}
		seen[b.Name] = struct{}{}
		bodies = append(bodies, b)
	}

	report.Loaded = len(bodies)
	return bodies, report, nil
}

// ReadSnapshot loads a snapshot file and logs every skipped record.
func ReadSnapshot(path string, logger *log.Logger) ([]dynamo.Body, LoadReport, error) {
	logger = logging.OrDiscard(logger)

	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("%w: %v", dynamo.ErrSnapshotLoad, err)
	}
	defer f.Close()

	bodies, report, err := DecodeSnapshot(f)
	if err != nil {
		return nil, report, fmt.Errorf("%s: %w", path, err)
	}
	for _, s := range report.Skipped {
		logger.Warn("skipped snapshot record with unknown type", "path", path, "index", s.Index, "name", s.Name, "type", s.Type)
	}
	logger.Info("snapshot loaded", "path", path, "bodies", report.Loaded, "skipped", len(report.Skipped))
	return bodies, report, nil
}

// EncodeSnapshot writes bodies as an indented JSON list.
func EncodeSnapshot(w io.Writer, bodies []dynamo.Body) error {
	records := make([]Record, len(bodies))
	for i, b := range bodies {
		records[i] = NewRecord(b)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(records)
}

// WriteSnapshot replaces path atomically, creating parent directories.
func WriteSnapshot(path string, bodies []dynamo.Body) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := EncodeSnapshot(tmp, bodies); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func NewRecord(b dynamo.Body) Record {
	rec := Record{
		Name:     b.Name,
		Type:     string(b.Kind),
		Mass:     b.Mass,
		Position: []float64{b.Position.X, b.Position.Y},
		Velocity: []float64{b.Velocity.X, b.Velocity.Y},
		Color:    []int{int(b.Color.R), int(b.Color.G), int(b.Color.B)},
		Radius:   b.Radius,
	}

	switch d := b.Details.(type) {
	case dynamo.StarDetails:
		rec.Temperature = &d.Temperature
	case dynamo.PlanetDetails:
		rec.Atmosphere = &d.Atmosphere
		rec.Surface = &d.Surface
	case dynamo.MoonDetails:
		rec.ParentPlanet = &d.ParentPlanet
	case dynamo.CometDetails:
		rec.TailLength = &d.TailLength
	case dynamo.AsteroidDetails:
		rec.Composition = &d.Composition
	case dynamo.SpacecraftDetails:
		rec.Mission = &d.Mission
	}
	return rec
}

func (rec Record) body(kind dynamo.Kind) (dynamo.Body, error) {
	pos, err := vec2("position", rec.Position)
	if err != nil {
		return dynamo.Body{}, err
	}
	vel, err := vec2("velocity", rec.Velocity)
	if err != nil {
		return dynamo.Body{}, err
	}
	color, err := rgb(rec.Color)
	if err != nil {
		return dynamo.Body{}, err
	}

	b := dynamo.Body{
		Name:     rec.Name,
		Kind:     kind,
		Mass:     rec.Mass,
		Position: pos,
		Velocity: vel,
		Radius:   rec.Radius,
		Color:    color,
	}

	switch kind {
	case dynamo.KindStar:
		b.Details = dynamo.StarDetails{Temperature: deref(rec.Temperature)}
	case dynamo.KindPlanet:
		b.Details = dynamo.PlanetDetails{Atmosphere: deref(rec.Atmosphere), Surface: deref(rec.Surface)}
	case dynamo.KindMoon:
		b.Details = dynamo.MoonDetails{ParentPlanet: deref(rec.ParentPlanet)}
	case dynamo.KindComet:
		b.Details = dynamo.CometDetails{TailLength: deref(rec.TailLength)}
	case dynamo.KindAsteroid:
		b.Details = dynamo.AsteroidDetails{Composition: deref(rec.Composition)}
	case dynamo.KindSpacecraft:
		b.Details = dynamo.SpacecraftDetails{Mission: deref(rec.Mission)}
	}
	return b, nil
}

func vec2(field string, v []float64) (r2.Vec, error) {
	if len(v) != 2 {
		return r2.Vec{}, dynamo.Validationf("%s must have 2 components, got %d", field, len(v))
	}
	return r2.Vec{X: v[0], Y: v[1]}, nil
}

func rgb(c []int) (dynamo.Color, error) {
	if len(c) != 3 {
		return dynamo.Color{}, dynamo.Validationf("color must have 3 components, got %d", len(c))
	}
	for _, ch := range c {
		if ch < 0 || ch > 255 {
			return dynamo.Color{}, dynamo.Validationf("color component %d out of range", ch)
		}
	}
	return dynamo.Color{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2])}, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
