package acquire

import (
	"log"
	"time"

	"github.com/relabs-tech/vibration_monitor/internal/sensors"
)

// Pauser suspends background network activity that would introduce
// scheduling jitter during a sampling burst.
type Pauser interface {
	Pause()
	Resume()
}

// Result describes the achieved timing of one sampling burst.
type Result struct {
	SampleCount int
	Duration    time.Duration
	// EffectiveRateHz is samples / duration, for diagnostics only; runs are
	// never retried or extended when timing drifts.
	EffectiveRateHz float64
}

// Sampler fills an AcquisitionBuffer at a fixed rate from a tri-axial
// reader.
type Sampler struct {
	RateHz int
	// Pauser, when set, is invoked around each run.
	Pauser Pauser
}

// Run samples buf.SampleCount() readings at the configured rate.
//
// Timing uses an absolute deadline advanced by the fixed inter-sample
// interval; the loop spins (does not sleep) until each deadline, since no
// sleep primitive on the host is fine enough for multi-kHz rates. A failed
// read becomes a zero sample for its slot; the run always completes its
// full count.
func (s *Sampler) Run(buf *AcquisitionBuffer, reader sensors.TriaxialReader) Result {
	if s.Pauser != nil {
		s.Pauser.Pause()
		defer s.Pauser.Resume()
	}

	interval := time.Second / time.Duration(s.RateHz)
	start := time.Now()
	deadline := start

	for i := range buf.X {
		// Hard deadline spin-wait for timing accuracy.
		for time.Now().Before(deadline) {
		}
		deadline = deadline.Add(interval)

		x, y, z, err := reader.ReadAccel()
		if err != nil {
			x, y, z = 0, 0, 0
		}
		buf.X[i] = x
		buf.Y[i] = y
		buf.Z[i] = z
	}

	elapsed := time.Since(start)
	res := Result{
		SampleCount:     buf.SampleCount(),
		Duration:        elapsed,
		EffectiveRateHz: float64(buf.SampleCount()) / elapsed.Seconds(),
	}

	log.Printf("sampler: %d samples in %.3fs (%.1f Hz effective)",
		res.SampleCount, elapsed.Seconds(), res.EffectiveRateHz)
	return res
}
