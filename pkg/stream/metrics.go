package stream

import "time"

// Stream directions used as metric labels.
const (
	DirectionRead   = "read"
	DirectionWrite  = "write"
	DirectionCommit = "commit"
)

// Metrics receives stream activity. A nil Metrics disables collection; the
// Prometheus implementation lives in pkg/metrics.
type Metrics interface {
	// ObserveStreamOp records one caller-level Read or Write.
	ObserveStreamOp(direction string, bytes int, duration time.Duration)

	// ObserveProtocolOp records one remote READ, WRITE or COMMIT.
	ObserveProtocolOp(direction string, bytes int, duration time.Duration, err error)

	// RecordPrefetch records whether a requested block had been prefetched.
	RecordPrefetch(hit bool)

	// RecordBackpressure records a writer stalled on outstanding write-backs.
	RecordBackpressure()
}

type noopMetrics struct{}

func (noopMetrics) ObserveStreamOp(string, int, time.Duration)          {}
func (noopMetrics) ObserveProtocolOp(string, int, time.Duration, error) {}
func (noopMetrics) RecordPrefetch(bool)                                 {}
func (noopMetrics) RecordBackpressure()                                 {}

func orNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
