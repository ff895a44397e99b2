package deploy

import (
	"math/rand"
	"time"
)

// Policy bounds a fixed-delay retry loop. It is passed explicitly to every
// component that waits on an external resource so timeout behavior is
// testable without real sleep.
type Policy struct {
	Attempts int           // probe budget; zero means a single attempt
	Delay    time.Duration // fixed pause between attempts
	Jitter   time.Duration // optional random addition to each pause

	// Sleep overrides time.Sleep. Tests set it to a no-op.
	Sleep func(time.Duration)
}

// Budget returns the number of attempts the policy allows, at least one.
func (p Policy) Budget() int {
	if p.Attempts > 0 {
		return p.Attempts
	}
	return 1
}

// Pause blocks for Delay plus up to Jitter.
func (p Policy) Pause() {
	d := p.Delay
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}
