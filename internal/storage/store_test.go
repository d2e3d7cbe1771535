package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	bodies, _, err := DecodeSnapshot(strings.NewReader(sampleSnapshot))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	reg, err := dynamo.NewRegistryFrom(bodies)
	if err != nil {
		t.Fatalf("registry failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		g := reg.Generation()
		g[1].Position = r2.Add(g[1].Position, r2.Vec{Y: 1e9})
		_ = reg.Apply(g)
		reg.RecordTrajectories()
	}

	runID, err := st.Save(RunMetadata{
		Source:     "sample",
		Integrator: "rk4",
		Dt:         3600,
		Ticks:      3,
		SimTime:    3 * 3600,
		Metrics:    map[string]float64{"energy_drift": 1.5e-9},
	}, reg.All())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Source != "sample" || meta.Bodies != 4 || meta.Ticks != 3 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Metrics["energy_drift"] != 1.5e-9 {
		t.Errorf("expected drift 1.5e-9, got %g", meta.Metrics["energy_drift"])
	}

	trajectories, err := st.LoadTrajectories(runID)
	if err != nil {
		t.Fatalf("load trajectories failed: %v", err)
	}
	if len(trajectories["Earth"]) != 3 {
		t.Errorf("expected 3 Earth points, got %d", len(trajectories["Earth"]))
	}
	if trajectories["Earth"][2].Y != 3e9 {
		t.Errorf("expected last Earth y 3e9, got %g", trajectories["Earth"][2].Y)
	}

	loaded, err := st.LoadBodies(runID)
	if err != nil {
		t.Fatalf("load bodies failed: %v", err)
	}
	if len(loaded) != 4 || len(loaded[1].Trajectory()) != 3 {
		t.Errorf("bodies not restored with trajectories: %d bodies", len(loaded))
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	_ = st.Init()

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	for i := 0; i < 2; i++ {
		if _, err := st.Save(RunMetadata{Source: "sample"}, nil); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(st.baseDir, "not-a-run"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if len(runs) == 2 && runs[0].Timestamp.Before(runs[1].Timestamp) {
		t.Error("runs not sorted newest first")
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "nope"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestStoreLoadRejectsBadID(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("../etc"); !errors.Is(err, dynamo.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
