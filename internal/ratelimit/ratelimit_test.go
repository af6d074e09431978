package ratelimit_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/hh-interviewer/internal/ratelimit"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiterAdmit(t *testing.T) {
	Convey("Given a limiter with a policy of 3 requests per minute", t, func() {
		clock := newFakeClock()
		limiter := ratelimit.New(ratelimit.WithClock(clock.Now))
		policy := ratelimit.Policy{MaxRequests: 3, Window: time.Minute}

		Convey("When a burst of N+1 requests arrives on one key", func() {
			var decisions []ratelimit.Decision
			for range 4 {
				decisions = append(decisions, limiter.Admit(ratelimit.NamespaceScoring, "10.0.0.1", policy))
			}

			Convey("Then exactly the last one is denied", func() {
				So(decisions[0], ShouldResemble, ratelimit.Decision{Allowed: true, Remaining: 2})
				So(decisions[1], ShouldResemble, ratelimit.Decision{Allowed: true, Remaining: 1})
				So(decisions[2], ShouldResemble, ratelimit.Decision{Allowed: true, Remaining: 0})
				So(decisions[3], ShouldResemble, ratelimit.Decision{Allowed: false, Remaining: 0})
			})

			Convey("And admission succeeds again once the window elapses", func() {
				clock.Advance(time.Minute + time.Millisecond)
				decision := limiter.Admit(ratelimit.NamespaceScoring, "10.0.0.1", policy)
				So(decision.Allowed, ShouldBeTrue)
				So(decision.Remaining, ShouldEqual, 2)
			})

			Convey("And a denied request does not extend the window", func() {
				clock.Advance(30 * time.Second)
				So(limiter.Admit(ratelimit.NamespaceScoring, "10.0.0.1", policy).Allowed, ShouldBeFalse)
				clock.Advance(30*time.Second + time.Millisecond)
				So(limiter.Admit(ratelimit.NamespaceScoring, "10.0.0.1", policy).Allowed, ShouldBeTrue)
			})
		})

		Convey("When requests slide through the window", func() {
			So(limiter.Admit("ns", "id", policy).Allowed, ShouldBeTrue)
			clock.Advance(20 * time.Second)
			So(limiter.Admit("ns", "id", policy).Allowed, ShouldBeTrue)
			clock.Advance(20 * time.Second)
			So(limiter.Admit("ns", "id", policy).Allowed, ShouldBeTrue)
			So(limiter.Admit("ns", "id", policy).Allowed, ShouldBeFalse)

			Convey("Then only the oldest timestamp expires first", func() {
				clock.Advance(20*time.Second + time.Millisecond)
				decision := limiter.Admit("ns", "id", policy)
				So(decision.Allowed, ShouldBeTrue)
				So(decision.Remaining, ShouldEqual, 0)
				So(limiter.Admit("ns", "id", policy).Allowed, ShouldBeFalse)
			})
		})

		Convey("When different namespaces and identifiers are used", func() {
			for range 3 {
				limiter.Admit(ratelimit.NamespaceScoring, "a", policy)
			}

			Convey("Then their budgets are independent", func() {
				So(limiter.Admit(ratelimit.NamespaceScoring, "a", policy).Allowed, ShouldBeFalse)
				So(limiter.Admit(ratelimit.NamespaceTranscript, "a", policy).Allowed, ShouldBeTrue)
				So(limiter.Admit(ratelimit.NamespaceScoring, "b", policy).Allowed, ShouldBeTrue)
			})
		})

		Convey("When the policy is invalid", func() {
			Convey("Then every request is denied", func() {
				So(limiter.Admit("ns", "id", ratelimit.Policy{}).Allowed, ShouldBeFalse)
				So(limiter.Admit("ns", "id", ratelimit.Policy{MaxRequests: 1}).Allowed, ShouldBeFalse)
				So(limiter.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestLimiterSweep(t *testing.T) {
	Convey("Given a limiter sweeping every 5 calls", t, func() {
		clock := newFakeClock()
		limiter := ratelimit.New(ratelimit.WithClock(clock.Now), ratelimit.WithSweepEvery(5))
		policy := ratelimit.Policy{MaxRequests: 10, Window: time.Second}

		limiter.Admit("ns", "a", policy)
		limiter.Admit("ns", "b", policy)
		limiter.Admit("ns", "c", policy)
		So(limiter.Len(), ShouldEqual, 3)

		Convey("When the windows expire and the sweep cadence is reached", func() {
			clock.Advance(2 * time.Second)
			limiter.Admit("ns", "d", policy)
			So(limiter.Len(), ShouldEqual, 4)
			limiter.Admit("ns", "e", policy)

			Convey("Then expired keys are removed and live keys stay", func() {
				So(limiter.Len(), ShouldEqual, 2)
			})
		})
	})
}

func TestLimiterConcurrentSameKey(t *testing.T) {
	Convey("Given many goroutines racing on one key", t, func() {
		clock := newFakeClock()
		var observed atomic.Int64
		limiter := ratelimit.New(
			ratelimit.WithClock(clock.Now),
			ratelimit.WithSweepEvery(7),
			ratelimit.WithObserver(func(string, bool) { observed.Add(1) }),
		)
		policy := ratelimit.Policy{MaxRequests: 25, Window: time.Minute}

		var allowed atomic.Int64
		var wg sync.WaitGroup
		for range 200 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Admit(ratelimit.NamespaceTranscript, "shared", policy).Allowed {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()

		So(allowed.Load(), ShouldEqual, 25)
		So(observed.Load(), ShouldEqual, 200)
	})
}
