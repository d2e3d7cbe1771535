package viz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logging"
	"github.com/san-kum/orbitsim/internal/physics"
	"github.com/san-kum/orbitsim/internal/sim"
	"github.com/san-kum/orbitsim/internal/storage"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	canvasWidth     = 80
	canvasHeight    = 24
	historyCapacity = 300

	timeScaleStep = 2.0
	zoomStep      = 1.5
	panStep       = 50.0 // pixels

	launchOrigin = "Earth"
	probeMass    = 1000.0
	probeRadius  = 5.0
)

type TickMsg time.Time

type Options struct {
	Interval  time.Duration
	StatePath string
	// Viewport is the size in pixels of the screen the scene maps onto.
	Viewport r2.Vec
	Theme    string
	Logger   *log.Logger
}

// Model steps the engine on every TickMsg and renders the scene. All state
// changes go through the engine's mutation methods.
type Model struct {
	engine   *sim.Engine
	opts     Options
	canvas   *Canvas
	theme    Theme
	logger   *log.Logger
	frame    sim.Frame
	last     sim.TickResult
	lastErr  error
	energy   []float64
	tickTime []float64
	message  string
	probes   int
	showHelp bool
}

func NewModel(engine *sim.Engine, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = 50 * time.Millisecond
	}
	if !(opts.Viewport.X > 0 && opts.Viewport.Y > 0) {
		c := engine.Scene().Center
		opts.Viewport = r2.Scale(2, c)
	}
	return Model{
		engine:   engine,
		opts:     opts,
		canvas:   NewCanvas(canvasWidth, canvasHeight),
		theme:    GetTheme(opts.Theme),
		logger:   logging.OrDiscard(opts.Logger),
		frame:    engine.Frame(),
		energy:   make([]float64, 0, historyCapacity),
		tickTime: make([]float64, 0, historyCapacity),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.handleKey(msg.String())
	case TickMsg:
		m.step()
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) handleKey(key string) {
	var err error
	switch key {
	case " ", "p":
		if m.engine.TogglePause() {
			m.message = "paused"
		} else {
			m.message = "resumed"
		}
	case "+", "=":
		var ts float64
		ts, err = m.engine.SetTimeScaleFactor(timeScaleStep)
		m.message = fmt.Sprintf("time scale %.2gx", ts)
	case "-", "_":
		var ts float64
		ts, err = m.engine.SetTimeScaleFactor(1 / timeScaleStep)
		m.message = fmt.Sprintf("time scale %.2gx", ts)
	case "z":
		_, err = m.engine.SetZoomFactor(zoomStep)
		m.message = "zoom in"
	case "x":
		_, err = m.engine.SetZoomFactor(1 / zoomStep)
		m.message = "zoom out"
	case "left":
		_, err = m.engine.Pan(panStep, 0)
	case "right":
		_, err = m.engine.Pan(-panStep, 0)
	case "up":
		_, err = m.engine.Pan(0, panStep)
	case "down":
		_, err = m.engine.Pan(0, -panStep)
	case "tab":
		err = m.trackNext()
	case "u":
		m.engine.Untrack()
		m.message = "tracking off"
	case "l":
		err = m.launchProbe()
	case "s":
		err = m.save()
	case "t":
		m.theme = m.theme.next()
		m.message = "theme " + m.theme.Name
	case "?":
		m.showHelp = !m.showHelp
	default:
		return
	}
	if err != nil {
		m.message = err.Error()
		m.logger.Warn("key action failed", "key", key, "err", err)
	}
	m.frame = m.engine.Frame()
}

// trackNext tracks the body after the tracked one in registry order, or the
// first body when nothing is tracked.
func (m *Model) trackNext() error {
	bodies := m.engine.Bodies()
	if len(bodies) == 0 {
		return &dynamo.BodyError{Op: "track", Err: dynamo.ErrNotFound}
	}
	next := 0
	current := m.engine.Scene().Tracked
	for i, b := range bodies {
		if b.Name == current {
			next = (i + 1) % len(bodies)
			break
		}
	}
	name := bodies[next].Name
	if err := m.engine.Track(name); err != nil {
		return err
	}
	m.message = "tracking " + name
	return nil
}

// launchProbe places a probe above Earth moving at circular speed
// relative to it.
func (m *Model) launchProbe() error {
	m.probes++
	req := sim.LaunchRequest{
		Name:    fmt.Sprintf("Probe-%d", m.probes),
		Mass:    probeMass,
		Radius:  probeRadius,
		Mission: "survey",
		Origin:  launchOrigin,
	}
	if earth, err := m.engine.Body(launchOrigin); err == nil {
		v := physics.CircularVelocity(earth.Mass, earth.Radius+sim.LaunchClearance)
		req.Velocity = r2.Add(earth.Velocity, r2.Vec{X: v})
	}

	craft, err := m.engine.Launch(req)
	if err != nil {
		return err
	}
	m.message = "launched " + craft.Name
	return nil
}

func (m *Model) save() error {
	if m.opts.StatePath == "" {
		return dynamo.Validationf("no state path configured")
	}
	if err := storage.WriteSnapshot(m.opts.StatePath, m.engine.Bodies()); err != nil {
		return err
	}
	m.message = "saved " + m.opts.StatePath
	return nil
}

func (m *Model) step() {
	res, err := m.engine.Tick()
	m.last, m.lastErr, m.frame = res, err, res.Frame

	var simErr *dynamo.SimulationError
	if errors.As(err, &simErr) {
		m.message = "tick discarded: " + simErr.Error()
	}
	if res.TrackingLost != "" {
		m.message = "lost track of " + res.TrackingLost
	}
	if err == nil && res.SubSteps > 0 {
		m.energy = appendBounded(m.energy, res.Energy)
	}
	m.tickTime = appendBounded(m.tickTime, float64(res.Duration.Microseconds()))
}

func appendBounded(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

// project maps screen pixels onto canvas dots.
func (m *Model) project(p r2.Vec) (int, int) {
	x := p.X / m.opts.Viewport.X * float64(m.canvas.SubWidth())
	y := p.Y / m.opts.Viewport.Y * float64(m.canvas.SubHeight())
	return int(x), int(y)
}

func (m *Model) draw() {
	m.canvas.Clear()
	scene := m.engine.Scene()

	for _, b := range m.frame.Bodies {
		col := dynamo.Color{R: uint8(b.Color[0]), G: uint8(b.Color[1]), B: uint8(b.Color[2])}

		trail, err := m.engine.Trajectory(b.Name)
		if err == nil {
			for i := 1; i < len(trail); i++ {
				x0, y0 := m.project(scene.ToScreen(trail[i-1]))
				x1, y1 := m.project(scene.ToScreen(trail[i]))
				if onCanvas(m.canvas, x0, y0) || onCanvas(m.canvas, x1, y1) {
					m.canvas.DrawLine(x0, y0, x1, y1, col)
				}
			}
		}

		pos := r2.Vec{X: b.Position[0], Y: b.Position[1]}
		x, y := m.project(scene.ToScreen(pos))
		px := b.Radius * scene.Scale / m.opts.Viewport.X * float64(m.canvas.SubWidth())
		m.canvas.Disc(x, y, int(min(px, 4)), col)
	}
}

func onCanvas(c *Canvas, x, y int) bool {
	return x >= 0 && y >= 0 && x < c.SubWidth() && y < c.SubHeight()
}

func (m Model) View() string {
	st := m.theme.styles()
	m.draw()

	var s strings.Builder
	s.WriteString(st.header.Render(GradientText("ORBITSIM", m.theme.Primary, m.theme.Accent)) + "\n")

	scene := m.frame.Scene
	if scene.Paused {
		s.WriteString(st.paused.Render("PAUSED") + "\n\n")
	} else {
		s.WriteString(st.running.Render("RUNNING") + "\n\n")
	}

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy (J)"))
		s.WriteString(st.graph.Render(chart) + "\n\n")
	}

	tracked := "none"
	if scene.TrackedBody != nil {
		tracked = *scene.TrackedBody
	}
	rows := [][2]string{
		{"Tick", fmt.Sprintf("%d", m.frame.Tick)},
		{"Sim time", formatDays(m.frame.SimTime)},
		{"Time scale", fmt.Sprintf("%.2fx (%d steps)", scene.TimeScale, m.last.SubSteps)},
		{"Scale", fmt.Sprintf("%.3g px/m", scene.Scale)},
		{"Tracking", tracked},
		{"Bodies", fmt.Sprintf("%d", len(m.frame.Bodies))},
		{"Tick cost", SparklineChart(m.tickTime, 20)},
	}
	for _, r := range rows {
		s.WriteString(st.label.Render(r[0]) + st.value.Render(r[1]) + "\n")
	}

	if m.message != "" {
		msgStyle := st.value
		if m.lastErr != nil {
			msgStyle = st.warn
		}
		s.WriteString("\n" + msgStyle.Render(m.message) + "\n")
	}
	s.WriteString(st.help.Render("SP:Pause +/-:Speed Z/X:Zoom\nTab:Track U:Untrack L:Launch\nS:Save T:Theme ?:Help Q:Quit"))

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Padding(1, 2).Render(m.canvas.Render()),
		st.panel.Render(s.String()),
	)
	if m.showHelp {
		return helpText + "\n" + main
	}
	return main
}

func formatDays(seconds float64) string {
	return fmt.Sprintf("%.1f d", seconds/86400)
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space/P  - Pause/Resume             ║
║  + / -    - Time scale x2 / x0.5     ║
║  Z / X    - Zoom in / out            ║
║  Arrows   - Pan                      ║
║  Tab      - Track next body          ║
║  U        - Untrack                  ║
║  L        - Launch probe from Earth  ║
║  S        - Save snapshot            ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run starts the viewer and blocks until the user quits.
func Run(engine *sim.Engine, opts Options) error {
	p := tea.NewProgram(NewModel(engine, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
