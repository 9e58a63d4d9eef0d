package circuitbreaker

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func newTestBreaker(threshold int, openTimeout time.Duration) (*Breaker, *time.Time) {
	b := New(threshold, openTimeout)
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestAllowWhenClosed(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	if !b.Allow("trends") {
		t.Fatal("expected closed circuit to allow")
	}
}

func TestTripsAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	b.RecordFailure("trends")
	if !b.Allow("trends") {
		t.Fatal("should still allow before threshold")
	}

	b.RecordFailure("trends")
	if b.Allow("trends") {
		t.Fatal("should be open after 2 failures")
	}
	if b.State("trends") != StateOpen {
		t.Fatalf("state = %v, want open", b.State("trends"))
	}
}

func TestOpenRejectsWithoutProducer(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute)

	b.RecordFailure("trends")
	b.RecordFailure("trends")

	// Before the timeout every call is rejected outright.
	*now = now.Add(30 * time.Second)
	if b.Allow("trends") {
		t.Fatal("should reject before openTimeout")
	}
	if got := b.RetryAfter("trends"); got != 30*time.Second {
		t.Fatalf("retryAfter = %s, want 30s", got)
	}
}

func TestSingleHalfOpenTrial(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute)

	b.RecordFailure("trends")
	b.RecordFailure("trends")
	*now = now.Add(time.Minute)

	if !b.Allow("trends") {
		t.Fatal("first caller after timeout should win the trial")
	}
	if b.State("trends") != StateHalfOpen {
		t.Fatalf("state = %v, want half_open", b.State("trends"))
	}
	if b.Allow("trends") {
		t.Fatal("second caller must be rejected while trial is in flight")
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute)

	b.RecordFailure("trends")
	b.RecordFailure("trends")
	*now = now.Add(time.Minute)
	b.Allow("trends") // Wins the trial

	b.RecordSuccess("trends")
	if b.State("trends") != StateClosed {
		t.Fatalf("state = %v, want closed", b.State("trends"))
	}

	// Failure count was zeroed: one new failure must not re-trip.
	b.RecordFailure("trends")
	if !b.Allow("trends") {
		t.Fatal("should still be closed after reset")
	}
}

func TestHalfOpenFailureReopensAndResetsTimer(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute)

	b.RecordFailure("trends")
	b.RecordFailure("trends")
	*now = now.Add(time.Minute)
	b.Allow("trends") // Wins the trial

	b.RecordFailure("trends")
	if b.State("trends") != StateOpen {
		t.Fatalf("state = %v, want open", b.State("trends"))
	}

	// The failure timer restarted: a call 30s later is still rejected.
	*now = now.Add(30 * time.Second)
	if b.Allow("trends") {
		t.Fatal("timer should have reset on trial failure")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure("trends")
	b.RecordFailure("trends")
	b.RecordSuccess("trends")

	b.RecordFailure("trends")
	if !b.Allow("trends") {
		t.Fatal("should still be closed after success reset")
	}
}

func TestServicesAreIndependent(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	b.RecordFailure("trends")
	b.RecordFailure("trends")

	if b.Allow("trends") {
		t.Fatal("trends should be open")
	}
	if !b.Allow("competitors") {
		t.Fatal("competitors should be unaffected")
	}
}

func TestConcurrentTrialExactlyOne(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute)

	b.RecordFailure("trends")
	b.RecordFailure("trends")
	*now = now.Add(time.Minute)

	var wg sync.WaitGroup
	results := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- b.Allow("trends")
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for r := range results {
		if r {
			allowed++
		}
	}
	if allowed != 1 {
		t.Fatalf("allowed = %d, want exactly 1 half-open trial", allowed)
	}
}

func TestOnTransition(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	var transitions []string
	b.OnTransition(func(service string, from, to State) {
		transitions = append(transitions, service+":"+from.String()+"->"+to.String())
	})

	b.RecordFailure("trends")
	if len(transitions) != 1 || transitions[0] != "trends:closed->open" {
		t.Fatalf("transitions = %v", transitions)
	}
}

func TestOnTransitionConcurrentWithTrips(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.OnTransition(func(string, State, State) {})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.RecordFailure("svc-" + strconv.Itoa(i))
		}
	}()
	wg.Wait()
}
