package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/san-kum/orbitsim/internal/analysis"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/sim"
	"github.com/san-kum/orbitsim/internal/storage"
	"gonum.org/v1/gonum/spatial/r2"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dynamo.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dynamo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dynamo.ErrDuplicateName):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// record counts a mutation outcome.
func (s *Server) record(op string, err error) {
	if s.metrics != nil {
		s.metrics.Mutation(op, err)
	}
}

func parseFactor(r *http.Request) (float64, error) {
	raw := r.PathValue("factor")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, dynamo.Validationf("factor %q is not a number", raw)
	}
	return f, nil
}

func (s *Server) handleBodies(w http.ResponseWriter, r *http.Request) {
	bodies := s.engine.Bodies()
	out := make([]sim.Detail, len(bodies))
	for i, b := range bodies {
		out[i] = sim.NewDetail(b)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBody(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Detail(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	points, err := s.engine.Trajectory(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p.X, p.Y}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trajectory": out})
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sim.NewSceneState(s.engine.Scene()))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	paused := s.engine.TogglePause()
	s.record("pause", nil)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (s *Server) handleTimeScale(w http.ResponseWriter, r *http.Request) {
	f, err := parseFactor(r)
	if err == nil {
		f, err = s.engine.SetTimeScaleFactor(f)
	}
	s.record("time_scale", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"time_scale": f})
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	f, err := parseFactor(r)
	if err == nil {
		f, err = s.engine.SetZoomFactor(f)
	}
	s.record("zoom", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"scale": f})
}

type panRequest struct {
	Dx *float64 `json:"dx"`
	Dy *float64 `json:"dy"`
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	var req panRequest
	var err error
	var offset r2.Vec
	if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
		err = dynamo.Validationf("pan body: %v", derr)
	} else if req.Dx == nil || req.Dy == nil {
		err = dynamo.Validationf("pan requires dx and dy")
	} else {
		offset, err = s.engine.Pan(*req.Dx, *req.Dy)
	}
	s.record("pan", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][2]float64{"offset": {offset.X, offset.Y}})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := s.engine.Track(name)
	s.record("track", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tracked_body": name})
}

func (s *Server) handleUntrack(w http.ResponseWriter, r *http.Request) {
	s.engine.Untrack()
	s.record("untrack", nil)
	writeJSON(w, http.StatusOK, map[string]any{"tracked_body": nil})
}

type launchRequest struct {
	Name     string     `json:"name"`
	Mass     float64    `json:"mass"`
	Position [2]float64 `json:"position"`
	Velocity [2]float64 `json:"velocity"`
	Radius   float64    `json:"radius"`
	Mission  string     `json:"mission"`
	Origin   string     `json:"origin,omitempty"`
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	var err error
	var craft dynamo.Body
	if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
		err = dynamo.Validationf("launch body: %v", derr)
	} else {
		craft, err = s.engine.Launch(sim.LaunchRequest{
			Name:     req.Name,
			Mass:     req.Mass,
			Position: r2.Vec{X: req.Position[0], Y: req.Position[1]},
			Velocity: r2.Vec{X: req.Velocity[0], Y: req.Velocity[1]},
			Radius:   req.Radius,
			Mission:  req.Mission,
			Origin:   req.Origin,
		})
	}
	s.record("launch", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sim.NewDetail(craft))
}

func (s *Server) handleStudy(w http.ResponseWriter, r *http.Request) {
	aspect, err := sim.ParseAspect(r.PathValue("aspect"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.engine.Study(r.PathValue("name"), aspect)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": studyMessage(res)})
}

func studyMessage(res sim.StudyResult) string {
	switch {
	case res.Aspect == sim.AspectAtmosphere && res.Present:
		return fmt.Sprintf("Atmosphere of %s: %s", res.Body, res.Value)
	case res.Aspect == sim.AspectAtmosphere:
		return fmt.Sprintf("%s has no atmosphere.", res.Body)
	case res.Present:
		return fmt.Sprintf("Surface of %s: %s", res.Body, res.Value)
	default:
		return fmt.Sprintf("No surface data for %s.", res.Body)
	}
}

// handleOrbit reports osculating elements around the body's primary.
// Infinite values (unbound orbits) are encoded as null.
func (s *Server) handleOrbit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	bodies := s.engine.Bodies()

	idx := slices.IndexFunc(bodies, func(b dynamo.Body) bool { return b.Name == name })
	if idx < 0 {
		s.writeError(w, &dynamo.BodyError{Op: "orbit", Name: name, Err: dynamo.ErrNotFound})
		return
	}
	primary, ok := analysis.Primary(bodies, bodies[idx])
	if !ok {
		s.writeError(w, &dynamo.BodyError{Op: "orbit", Name: name, Err: fmt.Errorf("no primary: %w", dynamo.ErrNotFound)})
		return
	}
	el := analysis.ElementsOf(primary, bodies[idx])
	writeJSON(w, http.StatusOK, map[string]any{
		"body":            el.Body,
		"primary":         el.Primary,
		"distance":        el.Distance,
		"speed":           el.Speed,
		"eccentricity":    finiteOrNil(el.Eccentricity),
		"semi_major_axis": finiteOrNil(el.SemiMajorAxis),
		"periapsis":       finiteOrNil(el.Periapsis),
		"apoapsis":        finiteOrNil(el.Apoapsis),
		"period":          finiteOrNil(el.Period),
		"bound":           el.Bound,
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	err := storage.WriteSnapshot(s.opts.StatePath, s.engine.Bodies())
	s.record("save", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("state saved", "path", s.opts.StatePath)
	writeJSON(w, http.StatusOK, map[string]string{"message": "state saved", "path": s.opts.StatePath})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	initial, err := json.Marshal(s.engine.Frame())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.ServeWS(w, r, initial)
}
