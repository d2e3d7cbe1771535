package sim

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// bufferedSink keeps frames in a channel and counts the ones that did not
// fit, the way the websocket hub treats a slow subscriber.
type bufferedSink struct {
	c       chan Frame
	dropped atomic.Uint64
}

func newBufferedSink(n int) *bufferedSink {
	return &bufferedSink{c: make(chan Frame, n)}
}

func (s *bufferedSink) Publish(f Frame) {
	select {
	case s.c <- f:
	default:
		s.dropped.Add(1)
	}
}

var _ = Describe("Clock", func() {
	var (
		engine *Engine
		clock  *Clock
	)

	BeforeEach(func() {
		engine = newTestEngine(DefaultConfig())
		clock = NewClock(engine, 5*time.Millisecond)
	})

	It("allows only one Run at a time", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- clock.Run(ctx) }()

		Eventually(clock.Running).Should(BeTrue())
		Expect(clock.Run(context.Background())).To(MatchError(ErrClockRunning))

		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
		Expect(clock.Running()).To(BeFalse())
	})

	It("publishes a frame to every sink after each tick", func() {
		a := newBufferedSink(16)
		var mu sync.Mutex
		var ticks []uint64
		clock.AddSink(a)
		clock.AddSink(SinkFunc(func(f Frame) {
			mu.Lock()
			defer mu.Unlock()
			ticks = append(ticks, f.Tick)
		}))

		for i := 0; i < 3; i++ {
			_, err := clock.Step()
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(a.c).To(HaveLen(3))
		first := <-a.c
		Expect(first.Tick).To(Equal(uint64(1)))
		Expect(first.Bodies).To(HaveLen(4))
		Expect(ticks).To(Equal([]uint64{1, 2, 3}))
	})

	It("drops frames for a slow sink without stalling the tick", func() {
		slow := newBufferedSink(1)
		clock.AddSink(slow)

		for i := 0; i < 5; i++ {
			_, err := clock.Step()
			Expect(err).NotTo(HaveOccurred())
		}

		tick, _ := engine.SimTime()
		Expect(tick).To(Equal(uint64(5)))
		Expect(slow.dropped.Load()).To(Equal(uint64(4)))
	})

	It("keeps ticking while mutations arrive concurrently", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = clock.Run(ctx) }()

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_, _ = engine.Pan(1, 1)
					_, _ = engine.SetZoomFactor(1.01)
					_, _ = engine.SetTimeScaleFactor(1.1)
					_ = engine.Track("Earth")
					_ = engine.Frame()
				}
			}()
		}
		wg.Wait()

		Eventually(func() uint64 {
			tick, _ := engine.SimTime()
			return tick
		}).Should(BeNumerically(">", 0))
		Expect(engine.Generation().IsValid()).To(BeTrue())
	})
})

var _ = Describe("Frame", func() {
	It("serializes bodies and scene with the published field names", func() {
		engine := newTestEngine(DefaultConfig())
		res, err := engine.Tick()
		Expect(err).NotTo(HaveOccurred())

		raw, err := json.Marshal(res.Frame)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKey("tick"))
		Expect(decoded).To(HaveKey("sim_time"))

		scene := decoded["scene"].(map[string]any)
		Expect(scene).To(HaveKeyWithValue("tracked_body", "Sun"))
		Expect(scene).To(HaveKeyWithValue("paused", false))
		Expect(scene).To(HaveKey("offset"))

		bodies := decoded["bodies"].([]any)
		earth := bodies[1].(map[string]any)
		Expect(earth).To(HaveKeyWithValue("name", "Earth"))
		Expect(earth).To(HaveKeyWithValue("kind", "planet"))
		Expect(earth).NotTo(HaveKey("tail_length"))

		halley := bodies[3].(map[string]any)
		Expect(halley).To(HaveKeyWithValue("tail_length", 1e8))
	})
})
