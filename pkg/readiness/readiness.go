package readiness

import (
	"time"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/metrics"
)

// sleepFn is swapped in tests.
var sleepFn = time.Sleep

// Probe reports whether an external condition currently holds. A false
// result carries no diagnostic detail; the gate just retries.
type Probe func() bool

// WaitUntil blocks the calling flow until probe returns true, sleeping
// interval between attempts. There is no deadline, no backoff, and no
// jitter: transient conditions like "cluster not yet reachable" and
// "virtual IP not yet assigned" are expected to clear eventually, and a
// condition that never clears is recovered by infrastructure-level
// timeout, not here. Keep it blunt.
func WaitUntil(gate string, interval time.Duration, probe Probe) {
	logger := log.WithComponent("readiness")

	for attempt := 1; ; attempt++ {
		if probe() {
			metrics.ProbeAttempts.WithLabelValues(gate, "success").Inc()
			logger.Info().Str("gate", gate).Int("attempt", attempt).Msg("readiness gate passed")
			return
		}
		metrics.ProbeAttempts.WithLabelValues(gate, "retry").Inc()
		logger.Info().Str("gate", gate).Int("attempt", attempt).Dur("retry_in", interval).Msg("not ready yet, retrying")
		sleepFn(interval)
	}
}
