package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/metrics"
	"github.com/san-kum/orbitsim/internal/sim"
	"github.com/san-kum/orbitsim/internal/storage"
)

func newTestServer(t *testing.T, opts Options) (*Server, *sim.Engine) {
	t.Helper()

	preset, _ := config.GetPreset("solar")
	reg, err := dynamo.NewRegistryFrom(preset.Bodies())
	if err != nil {
		t.Fatal(err)
	}
	engine, err := sim.NewEngine(reg, sim.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if opts.StatePath == "" {
		opts.StatePath = filepath.Join(t.TempDir(), "state.json")
	}
	return New(engine, opts), engine
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStatusCodes(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list bodies", "GET", "/bodies", "", 200},
		{"one body", "GET", "/bodies/Earth", "", 200},
		{"collect alias", "GET", "/collect/data/Mars", "", 200},
		{"unknown body", "GET", "/bodies/Vulcan", "", 404},
		{"trajectory", "GET", "/trajectory/Earth", "", 200},
		{"unknown trajectory", "GET", "/trajectory/Vulcan", "", 404},
		{"scene", "GET", "/scene", "", 200},
		{"time scale", "POST", "/scene/time_scale/2", "", 200},
		{"time scale not a number", "POST", "/scene/time_scale/fast", "", 422},
		{"time scale zero", "POST", "/scene/time_scale/0", "", 422},
		{"zoom negative", "POST", "/scene/zoom/-1", "", 422},
		{"pan", "POST", "/scene/pan", `{"dx": 10, "dy": -5}`, 200},
		{"pan missing dy", "POST", "/scene/pan", `{"dx": 10}`, 422},
		{"pan bad json", "POST", "/scene/pan", `{`, 422},
		{"track unknown", "POST", "/scene/track/Vulcan", "", 404},
		{"track", "POST", "/scene/track/Mars", "", 200},
		{"untrack", "POST", "/scene/untrack", "", 200},
		{"study atmosphere", "GET", "/study/atmosphere/Earth", "", 200},
		{"study bad aspect", "GET", "/study/magnetosphere/Earth", "", 422},
		{"study star", "GET", "/study/surface/Sun", "", 404},
		{"launch duplicate", "POST", "/spacecraft/launch", `{"name":"Earth","mass":1,"radius":1}`, 409},
		{"launch invalid", "POST", "/spacecraft/launch", `{"name":"","mass":1,"radius":1}`, 422},
		{"wrong method", "GET", "/scene/pause", "", 405},
		{"orbit", "GET", "/orbit/Moon", "", 200},
		{"orbit unknown", "GET", "/orbit/Vulcan", "", 404},
		{"no index", "GET", "/", "", 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
			if rec.Code >= 400 && rec.Code != 405 && tt.name != "no index" {
				body := decode[errorBody](t, rec)
				if body.Error == "" {
					t.Error("error body is empty")
				}
			}
		})
	}
}

func TestSceneMutations(t *testing.T) {
	srv, engine := newTestServer(t, Options{})
	h := srv.Handler()

	rec := do(t, h, "POST", "/scene/pause", "")
	if got := decode[map[string]bool](t, rec); !got["paused"] {
		t.Errorf("pause = %v, want paused", got)
	}
	if !engine.Scene().Paused {
		t.Error("engine not paused")
	}

	rec = do(t, h, "POST", "/scene/time_scale/100", "")
	if got := decode[map[string]float64](t, rec); got["time_scale"] != sim.MaxTimeScale {
		t.Errorf("time_scale = %v, want clamped to %v", got["time_scale"], sim.MaxTimeScale)
	}

	before := engine.Scene().Scale
	rec = do(t, h, "POST", "/scene/zoom/2", "")
	if got := decode[map[string]float64](t, rec); got["scale"] != before*2 {
		t.Errorf("scale = %v, want %v", got["scale"], before*2)
	}

	do(t, h, "POST", "/scene/untrack", "")
	offset := engine.Scene().Offset
	rec = do(t, h, "POST", "/scene/pan", `{"dx": 3, "dy": 4}`)
	got := decode[map[string][2]float64](t, rec)
	if got["offset"] != [2]float64{offset.X + 3, offset.Y + 4} {
		t.Errorf("offset = %v", got["offset"])
	}

	rec = do(t, h, "GET", "/scene", "")
	scene := decode[sim.SceneState](t, rec)
	if scene.TrackedBody != nil {
		t.Errorf("tracked_body = %q, want null", *scene.TrackedBody)
	}
}

func TestLaunch(t *testing.T) {
	srv, engine := newTestServer(t, Options{})
	h := srv.Handler()

	rec := do(t, h, "POST", "/spacecraft/launch",
		`{"name":"Probe","mass":720,"velocity":[0,30000],"radius":2,"mission":"survey","origin":"Earth"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("launch = %d: %s", rec.Code, rec.Body.String())
	}
	d := decode[sim.Detail](t, rec)
	if d.Kind != dynamo.KindSpacecraft || d.Mission == nil || *d.Mission != "survey" {
		t.Errorf("detail = %+v", d)
	}
	if d.Color != "#ffffff" {
		t.Errorf("color = %s, want white", d.Color)
	}

	earth, _ := engine.Body("Earth")
	if want := earth.Position.Y + (earth.Radius + sim.LaunchClearance); d.Position[1] != want {
		t.Errorf("y = %v, want %v", d.Position[1], want)
	}
}

func TestStudyMessages(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	tests := []struct {
		path string
		want string
	}{
		{"/study/atmosphere/Earth", "Atmosphere of Earth: nitrogen, oxygen"},
		{"/study/atmosphere/Mercury", "Mercury has no atmosphere."},
		{"/study/surface/Earth", "Surface of Earth: oceans, continents"},
	}
	for _, tt := range tests {
		rec := do(t, h, "GET", tt.path, "")
		if got := decode[map[string]string](t, rec)["result"]; got != tt.want {
			t.Errorf("%s = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestOrbit(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv.Handler(), "GET", "/orbit/Earth", "")
	got := decode[map[string]any](t, rec)
	if got["primary"] != "Sun" || got["bound"] != true {
		t.Errorf("orbit = %v", got)
	}
	if e, ok := got["eccentricity"].(float64); !ok || e > 1e-4 {
		t.Errorf("eccentricity = %v, want near circular", got["eccentricity"])
	}

	rec = do(t, srv.Handler(), "GET", "/orbit/Moon", "")
	if got := decode[map[string]any](t, rec); got["primary"] != "Earth" {
		t.Errorf("moon primary = %v", got["primary"])
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	srv, _ := newTestServer(t, Options{StatePath: path})

	rec := do(t, srv.Handler(), "POST", "/save", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("save = %d: %s", rec.Code, rec.Body.String())
	}

	bodies, report, err := storage.ReadSnapshot(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Lossy() || len(bodies) == 0 || bodies[0].Name != "Sun" {
		t.Errorf("saved %d bodies, report %+v", len(bodies), report)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimit: 0.001, Burst: 2})
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		if rec := do(t, h, "POST", "/scene/pause", ""); rec.Code != 200 {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	if rec := do(t, h, "POST", "/scene/pause", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("over budget = %d, want 429", rec.Code)
	}
	if rec := do(t, h, "GET", "/scene", ""); rec.Code != 200 {
		t.Errorf("queries are not limited, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	srv, engine := newTestServer(t, Options{Metrics: collector, Gatherer: reg})
	engine.AddObserver(collector)
	h := srv.Handler()

	do(t, h, "POST", "/scene/zoom/2", "")
	do(t, h, "POST", "/scene/zoom/abc", "")
	if _, err := engine.Tick(); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, "GET", "/metrics", "")
	if rec.Code != 200 {
		t.Fatalf("metrics = %d", rec.Code)
	}
	for _, name := range []string{"orbitsim_ticks_total 1", `orbitsim_mutations_total{op="zoom",result="validation"} 1`} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
	if n, err := testutil.GatherAndCount(reg, "orbitsim_mutations_total"); err != nil || n != 2 {
		t.Errorf("mutation series = %d (%v), want 2", n, err)
	}
}

func TestWebsocketStream(t *testing.T) {
	srv, engine := newTestServer(t, Options{PublishBuffer: 4})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Hub().Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/simulation"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var initial sim.Frame
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatal(err)
	}
	if initial.Tick != 0 || len(initial.Bodies) == 0 {
		t.Errorf("initial frame = tick %d, %d bodies", initial.Tick, len(initial.Bodies))
	}

	clock := sim.NewClock(engine, time.Millisecond)
	clock.AddSink(srv.Hub())

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, err := clock.Step(); err != nil {
		t.Fatal(err)
	}

	var next sim.Frame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Tick != 1 {
		t.Errorf("streamed tick = %d, want 1", next.Tick)
	}
}
