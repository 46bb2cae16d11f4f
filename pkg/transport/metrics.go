package transport

import "time"

// Metrics receives transport activity. A nil Metrics disables collection;
// the Prometheus implementation lives in pkg/metrics.
type Metrics interface {
	// ObserveCall records a finished call, successful or not.
	ObserveCall(program, procedure uint32, duration time.Duration, err error)

	// RecordRetry records an attempt abandoned after CallTimeout.
	RecordRetry(program, procedure uint32)

	// RecordReconnect records a lost connection.
	RecordReconnect()

	// RecordOrphanReply records a reply whose xid no call was waiting for.
	RecordOrphanReply()

	// SetPending reports the number of calls awaiting a reply.
	SetPending(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCall(uint32, uint32, time.Duration, error) {}
func (noopMetrics) RecordRetry(uint32, uint32)                       {}
func (noopMetrics) RecordReconnect()                                 {}
func (noopMetrics) RecordOrphanReply()                               {}
func (noopMetrics) SetPending(int)                                   {}
