package scraper

import "testing"

func TestNewProxyRotatorEmpty(t *testing.T) {
	r := NewProxyRotator(nil)
	if r != nil {
		t.Fatal("empty proxy list should yield a nil rotator")
	}

	// A nil rotator means direct connections, never an error.
	if got := r.Next(); got != "" {
		t.Errorf("Next on nil rotator = %q", got)
	}
	if r.Exhausted() {
		t.Error("nil rotator must never report exhaustion")
	}
	r.ReportSuccess("http://proxy-a:8080")
	r.ReportFailure("http://proxy-a:8080")
}

func TestProxyRotatorPrefersHealthy(t *testing.T) {
	r := NewProxyRotator([]string{"http://proxy-a:8080", "http://proxy-b:8080"})

	// Exercise both once so neither ranks as untried, then make one
	// clearly worse.
	r.ReportSuccess("http://proxy-a:8080")
	r.ReportFailure("http://proxy-b:8080")

	for i := 0; i < 4; i++ {
		if got := r.Next(); got != "http://proxy-a:8080" {
			t.Fatalf("Next() = %q, want the healthy proxy", got)
		}
	}
}

func TestProxyRotatorTriesUntriedFirst(t *testing.T) {
	r := NewProxyRotator([]string{"http://proxy-a:8080", "http://proxy-b:8080"})

	// proxy-a has a perfect record, but proxy-b has never been tried and
	// should still get a turn.
	r.ReportSuccess("http://proxy-a:8080")

	if got := r.Next(); got != "http://proxy-b:8080" {
		t.Errorf("Next() = %q, want the untried proxy", got)
	}
}

func TestProxyRotatorDisablesFailing(t *testing.T) {
	r := NewProxyRotator([]string{"http://proxy-a:8080"})

	// Four failures are not enough attempts to disable.
	for i := 0; i < 4; i++ {
		r.ReportFailure("http://proxy-a:8080")
	}
	if r.Exhausted() {
		t.Fatal("proxy disabled before the attempt minimum")
	}

	r.ReportFailure("http://proxy-a:8080")
	if !r.Exhausted() {
		t.Error("proxy should be disabled after 5 failures at 0% success")
	}
	if got := r.Next(); got != "" {
		t.Errorf("Next() after exhaustion = %q, want empty", got)
	}
}

func TestProxyRotatorKeepsMostlyHealthy(t *testing.T) {
	r := NewProxyRotator([]string{"http://proxy-a:8080"})

	// 2 successes over 7 attempts is above the 20% cutoff.
	r.ReportSuccess("http://proxy-a:8080")
	r.ReportSuccess("http://proxy-a:8080")
	for i := 0; i < 5; i++ {
		r.ReportFailure("http://proxy-a:8080")
	}

	if r.Exhausted() {
		t.Error("proxy above the success cutoff must stay enabled")
	}
}
