package sim

import (
	"math"
	"sync"
	"time"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// gatedSystem blocks the first acceleration evaluation until released.
type gatedSystem struct {
	inner   dynamo.System
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSystem) Accel(gen dynamo.Generation, i int) r2.Vec {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.inner.Accel(gen, i)
}

type nanSystem struct{}

func (nanSystem) Accel(dynamo.Generation, int) r2.Vec { return r2.Vec{X: math.NaN()} }

var _ = Describe("Engine", func() {
	var (
		cfg    Config
		engine *Engine
	)

	BeforeEach(func() {
		cfg = DefaultConfig()
		engine = newTestEngine(cfg)
	})

	Describe("construction", func() {
		It("tracks the configured body when present", func() {
			Expect(engine.Scene().Tracked).To(Equal("Sun"))
		})

		It("starts untracked when the configured body is absent", func() {
			cfg.Track = "Vulcan"
			Expect(newTestEngine(cfg).Scene().Tracked).To(BeEmpty())
		})

		It("rejects an invalid configuration", func() {
			cfg.MaxSubSteps = 51
			_, err := NewEngine(innerSystem(), cfg)
			Expect(err).To(MatchError(dynamo.ErrValidation))

			cfg = DefaultConfig()
			cfg.Integrator = "rk45"
			_, err = NewEngine(innerSystem(), cfg)
			Expect(err).To(MatchError(dynamo.ErrValidation))
		})
	})

	Describe("Tick", func() {
		It("performs floor(time scale) sub-steps of dt", func() {
			_, err := engine.SetTimeScaleFactor(3.7)
			Expect(err).NotTo(HaveOccurred())

			res, err := engine.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.SubSteps).To(Equal(3))
			Expect(res.SimTime).To(Equal(3 * cfg.Dt))
			Expect(res.Frame.Bodies).To(HaveLen(4))
		})

		It("caps sub-steps at 50 even for an unclamped time scale", func() {
			engine.scene.TimeScale = 500

			res, err := engine.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.SubSteps).To(Equal(SubStepCap))
			Expect(res.SimTime).To(Equal(SubStepCap * cfg.Dt))
		})

		It("performs no integration below a time scale of one", func() {
			_, _ = engine.SetTimeScaleFactor(0.5)
			before := engine.Generation()

			res, err := engine.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.SubSteps).To(BeZero())
			Expect(engine.Generation()).To(Equal(before))

			traj, err := engine.Trajectory("Earth")
			Expect(err).NotTo(HaveOccurred())
			Expect(traj).To(BeEmpty())
		})

		It("leaves bodies and trajectories untouched while paused", func() {
			Expect(engine.TogglePause()).To(BeTrue())
			before := engine.Generation()

			for i := 0; i < 3; i++ {
				res, err := engine.Tick()
				Expect(err).NotTo(HaveOccurred())
				Expect(res.SubSteps).To(BeZero())
			}
			Expect(engine.Generation()).To(Equal(before))

			traj, err := engine.Trajectory("Earth")
			Expect(err).NotTo(HaveOccurred())
			Expect(traj).To(BeEmpty())

			Expect(engine.TogglePause()).To(BeFalse())
		})

		It("appends exactly one trajectory point per tick", func() {
			engine.scene.TimeScale = 10
			for i := 0; i < 5; i++ {
				_, err := engine.Tick()
				Expect(err).NotTo(HaveOccurred())
			}
			traj, _ := engine.Trajectory("Mars")
			Expect(traj).To(HaveLen(5))

			mars, _ := engine.Body("Mars")
			Expect(traj[4]).To(Equal(mars.Position))
		})

		It("bounds every trajectory at 100 points", func() {
			for i := 0; i < 130; i++ {
				_, _ = engine.Tick()
			}
			for _, b := range engine.Bodies() {
				Expect(b.Trajectory()).To(HaveLen(dynamo.TrajectoryCapacity))
			}
		})

		It("reports energy for the gravity model", func() {
			res, _ := engine.Tick()
			Expect(res.Energy).To(BeNumerically("<", 0))
		})

		It("discards a non-finite generation", func() {
			before := engine.Generation()
			engine.SetSystem(nanSystem{})

			_, err := engine.Tick()
			Expect(err).To(MatchError(dynamo.ErrNonFinite))

			var simErr *dynamo.SimulationError
			Expect(err).To(BeAssignableToTypeOf(simErr))
			Expect(engine.Generation()).To(Equal(before))
		})

		It("notifies observers after each tick", func() {
			var seen []uint64
			engine.AddObserver(ObserverFunc(func(res TickResult, err error) {
				seen = append(seen, res.Tick)
			}))
			_, _ = engine.Tick()
			_, _ = engine.Tick()
			Expect(seen).To(Equal([]uint64{1, 2}))
		})
	})

	Describe("time scale and view", func() {
		DescribeTable("clamps the time scale into [0.1, 50]",
			func(factors []float64, want float64) {
				for _, f := range factors {
					got, err := engine.SetTimeScaleFactor(f)
					Expect(err).NotTo(HaveOccurred())
					Expect(got).To(BeNumerically(">=", MinTimeScale))
					Expect(got).To(BeNumerically("<=", MaxTimeScale))
				}
				Expect(engine.Scene().TimeScale).To(BeNumerically("~", want, 1e-12))
			},
			Entry("doubling", []float64{2}, 2.0),
			Entry("upper bound", []float64{10, 10}, 50.0),
			Entry("lower bound", []float64{0.5, 0.1, 0.1}, 0.1),
			Entry("back down from the cap", []float64{100, 0.5}, 25.0),
		)

		DescribeTable("rejects invalid factors",
			func(f float64) {
				_, err := engine.SetTimeScaleFactor(f)
				Expect(err).To(MatchError(dynamo.ErrValidation))
				_, err = engine.SetZoomFactor(f)
				Expect(err).To(MatchError(dynamo.ErrValidation))
			},
			Entry("zero", 0.0),
			Entry("negative", -2.0),
			Entry("NaN", math.NaN()),
			Entry("infinite", math.Inf(1)),
		)

		It("multiplies the zoom without bounds", func() {
			scale := engine.Scene().Scale
			got, err := engine.SetZoomFactor(1e6)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(scale * 1e6))
		})

		It("pans by finite deltas only", func() {
			engine.Untrack()
			start := engine.Scene().Offset

			off, err := engine.Pan(10, -5)
			Expect(err).NotTo(HaveOccurred())
			Expect(off).To(Equal(r2.Add(start, r2.Vec{X: 10, Y: -5})))

			_, err = engine.Pan(math.NaN(), 1)
			Expect(err).To(MatchError(dynamo.ErrValidation))
			Expect(engine.Scene().Offset).To(Equal(off))
		})
	})

	Describe("tracking", func() {
		It("keeps the tracked body at the viewport center every tick", func() {
			Expect(engine.Track("Mars")).To(Succeed())
			engine.scene.TimeScale = 20

			for i := 0; i < 10; i++ {
				_, err := engine.Tick()
				Expect(err).NotTo(HaveOccurred())

				mars, _ := engine.Body("Mars")
				screen := engine.Scene().ToScreen(mars.Position)
				Expect(screen.X).To(BeNumerically("~", cfg.Center.X, 1e-6))
				Expect(screen.Y).To(BeNumerically("~", cfg.Center.Y, 1e-6))
			}
		})

		It("fails to track an unknown body and keeps the previous target", func() {
			err := engine.Track("Vulcan")
			Expect(err).To(MatchError(dynamo.ErrNotFound))
			Expect(engine.Scene().Tracked).To(Equal("Sun"))
		})

		It("stops following after untrack", func() {
			Expect(engine.Track("Earth")).To(Succeed())
			engine.Untrack()
			offset := engine.Scene().Offset

			_, _ = engine.Tick()
			Expect(engine.Scene().Offset).To(Equal(offset))
			Expect(engine.Frame().Scene.TrackedBody).To(BeNil())
		})

		It("clears tracking when the target no longer resolves", func() {
			engine.scene.Tracked = "Ghost"

			res, err := engine.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.TrackingLost).To(Equal("Ghost"))
			Expect(engine.Scene().Tracked).To(BeEmpty())
		})
	})

	Describe("Launch", func() {
		req := LaunchRequest{
			Name:     "Explorer",
			Mass:     1000,
			Position: r2.Vec{X: 5e11, Y: 5e11},
			Velocity: r2.Vec{X: 100},
			Radius:   10,
			Mission:  "survey",
		}

		It("injects a white spacecraft that joins the next tick", func() {
			craft, err := engine.Launch(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(craft.Kind).To(Equal(dynamo.KindSpacecraft))
			Expect(craft.Color).To(Equal(dynamo.White))

			_, err = engine.Tick()
			Expect(err).NotTo(HaveOccurred())

			moved, _ := engine.Body("Explorer")
			Expect(moved.Velocity).NotTo(Equal(req.Velocity))
			Expect(moved.Trajectory()).To(HaveLen(1))
		})

		It("rejects a duplicate name", func() {
			_, err := engine.Launch(req)
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.Launch(req)
			Expect(err).To(MatchError(dynamo.ErrDuplicateName))
		})

		It("rejects invalid physical values", func() {
			bad := req
			bad.Mass = -1
			_, err := engine.Launch(bad)
			Expect(err).To(MatchError(dynamo.ErrValidation))
		})

		It("places the craft above an origin body", func() {
			withOrigin := req
			withOrigin.Origin = "Earth"
			craft, err := engine.Launch(withOrigin)
			Expect(err).NotTo(HaveOccurred())

			earth, _ := engine.Body("Earth")
			Expect(craft.Position).To(Equal(r2.Add(earth.Position, r2.Vec{Y: earth.Radius + LaunchClearance})))
		})

		It("falls back to the first body when the origin is missing", func() {
			withOrigin := req
			withOrigin.Origin = "Vulcan"
			craft, err := engine.Launch(withOrigin)
			Expect(err).NotTo(HaveOccurred())

			sun, _ := engine.Body("Sun")
			Expect(craft.Position.Y).To(Equal(sun.Position.Y + sun.Radius + LaunchClearance))
		})

		It("never lets a body injected mid-tick influence that tick", func() {
			reference := newTestEngine(cfg)
			_, err := reference.Tick()
			Expect(err).NotTo(HaveOccurred())
			wantEarth, _ := reference.Body("Earth")

			gate := &gatedSystem{inner: physics.NewGravity(), entered: make(chan struct{}), release: make(chan struct{})}
			engine.SetSystem(gate)

			tickDone := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				_, err := engine.Tick()
				Expect(err).NotTo(HaveOccurred())
				close(tickDone)
			}()
			Eventually(gate.entered).Should(BeClosed())

			heavy := req
			heavy.Mass = 1e31
			heavy.Position = r2.Vec{X: auMeters, Y: 1e9}
			launched := make(chan error, 1)
			go func() {
				_, err := engine.Launch(heavy)
				launched <- err
			}()
			Consistently(launched, 50*time.Millisecond).ShouldNot(Receive())

			close(gate.release)
			Eventually(tickDone).Should(BeClosed())
			Eventually(launched).Should(Receive(BeNil()))

			gotEarth, _ := engine.Body("Earth")
			Expect(gotEarth.Position).To(Equal(wantEarth.Position))
			Expect(gotEarth.Velocity).To(Equal(wantEarth.Velocity))

			_, err = engine.Tick()
			Expect(err).NotTo(HaveOccurred())
			_, _ = reference.Tick()
			after, _ := engine.Body("Earth")
			afterRef, _ := reference.Body("Earth")
			Expect(after.Velocity).NotTo(Equal(afterRef.Velocity))
		})
	})

	Describe("queries", func() {
		It("reports kind-specific detail fields only when present", func() {
			d, err := engine.Detail("Halley")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.TailLength).NotTo(BeNil())
			Expect(*d.TailLength).To(Equal(1e8))
			Expect(d.Atmosphere).To(BeNil())

			_, err = engine.Detail("Vulcan")
			Expect(err).To(MatchError(dynamo.ErrNotFound))
		})

		It("studies planets only", func() {
			res, err := engine.Study("Earth", AspectAtmosphere)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Present).To(BeTrue())
			Expect(res.Value).To(Equal("nitrogen, oxygen"))

			res, err = engine.Study("Mars", AspectSurface)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Present).To(BeFalse())

			_, err = engine.Study("Sun", AspectAtmosphere)
			Expect(err).To(MatchError(dynamo.ErrNotFound))

			_, err = engine.Study("Earth", Aspect("core"))
			Expect(err).To(MatchError(dynamo.ErrValidation))
		})

		It("returns not-found for an unknown trajectory", func() {
			_, err := engine.Trajectory("Vulcan")
			Expect(err).To(MatchError(dynamo.ErrNotFound))
		})
	})
})
