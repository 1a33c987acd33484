// Package metrics records conversation, oracle and notification metrics.
package metrics

import "time"

// Recorder defines the interface for recording bot metrics.
type Recorder interface {
	// ObserveMessage counts one inbound message by conversation mode and outcome
	// (e.g. "advanced", "classified", "acknowledged", "opt_out", "invalid", "error").
	ObserveMessage(mode, outcome string)

	// ObserveQualification counts one classification event.
	ObserveQualification(classification, source string)

	// ObserveOracle records one oracle call. kind is "score" or "chat".
	ObserveOracle(provider, kind string, success bool, duration time.Duration)

	// ObserveNotification records one notification dispatch per channel.
	ObserveNotification(channel string, success bool)

	// IncConflict counts version conflicts seen by the router.
	IncConflict()
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveMessage does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveMessage(_, _ string) {}

// ObserveQualification does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveQualification(_, _ string) {}

// ObserveOracle does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveOracle(_, _ string, _ bool, _ time.Duration) {}

// ObserveNotification does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveNotification(_ string, _ bool) {}

// IncConflict does nothing in the no-op recorder.
func (n *NoopRecorder) IncConflict() {}

// OrNop returns r, or a no-op recorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop()
	}
	return r
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
