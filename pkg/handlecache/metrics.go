package handlecache

// Metrics receives cache activity. Implementations must be safe for
// concurrent use; the Prometheus one lives in pkg/metrics.
type Metrics interface {
	RecordLookup(hit bool)
	RecordEviction()
	SetSize(entries int)
}

type noopMetrics struct{}

func (noopMetrics) RecordLookup(bool) {}
func (noopMetrics) RecordEviction()   {}
func (noopMetrics) SetSize(int)       {}
