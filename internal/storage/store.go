package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Store keeps finished runs on disk, one directory per run holding
// metadata.json, bodies.json and trajectories.csv.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Source     string             `json:"source"`
	Timestamp  time.Time          `json:"timestamp"`
	Integrator string             `json:"integrator"`
	Dt         float64            `json:"dt"`
	Ticks      uint64             `json:"ticks"`
	SimTime    float64            `json:"sim_time"`
	Bodies     int                `json:"bodies"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes a run and returns its generated ID. ID and Timestamp in meta
// are filled in.
func (s *Store) Save(meta RunMetadata, bodies []dynamo.Body) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now()
	meta.Bodies = len(bodies)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := WriteSnapshot(filepath.Join(runDir, "bodies.json"), bodies); err != nil {
		return "", err
	}

	if err := writeTrajectories(filepath.Join(runDir, "trajectories.csv"), bodies); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func writeTrajectories(path string, bodies []dynamo.Body) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"name", "index", "x", "y"}); err != nil {
		return err
	}
	for _, b := range bodies {
		for i, p := range b.Trajectory() {
			row := []string{
				b.Name,
				strconv.Itoa(i),
				strconv.FormatFloat(p.X, 'g', -1, 64),
				strconv.FormatFloat(p.Y, 'g', -1, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("run %q: %w", runID, dynamo.ErrValidation)
	}

	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadBodies returns the final bodies of a run with their trajectories
// restored.
func (s *Store) LoadBodies(runID string) ([]dynamo.Body, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, err
	}

	bodies, _, err := ReadSnapshot(filepath.Join(s.baseDir, runID, "bodies.json"), nil)
	if err != nil {
		return nil, err
	}

	trajectories, err := s.LoadTrajectories(runID)
	if err != nil {
		return nil, err
	}

	reg, err := dynamo.NewRegistryFrom(bodies)
	if err != nil {
		return nil, err
	}
	for name, points := range trajectories {
		if err := reg.RestoreTrajectory(name, points); err != nil {
			return nil, err
		}
	}
	return reg.All(), nil
}

// LoadTrajectories returns each body's recorded positions, oldest first.
func (s *Store) LoadTrajectories(runID string) (map[string][]r2.Vec, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "trajectories.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 4

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]r2.Vec)
	for i := 1; i < len(records); i++ {
		record := records[i]

		x, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("trajectories.csv line %d: %w", i+1, err)
		}
		y, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("trajectories.csv line %d: %w", i+1, err)
		}
		out[record[0]] = append(out[record[0]], r2.Vec{X: x, Y: y})
	}

	return out, nil
}
