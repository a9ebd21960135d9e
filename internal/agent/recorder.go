package agent

import "time"

// Recorder observes loop activity. Implementations must be safe for
// concurrent use since one Recorder is shared by every inquiry.
type Recorder interface {
	ModelCall(phase Phase, elapsed time.Duration, err error)
	ToolCall(tool string, isError bool)
	InquiryFinished(outcome Outcome, turns int)
}

type nopRecorder struct{}

func (nopRecorder) ModelCall(Phase, time.Duration, error) {}
func (nopRecorder) ToolCall(string, bool)                 {}
func (nopRecorder) InquiryFinished(Outcome, int)          {}
