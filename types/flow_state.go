package types

// FlowState is a state of the session flow controller.
type FlowState int

const (
	StateConnectingDevice FlowState = iota
	StateShowingInstructions
	StateAwaitingQuiz
	StateRepeatingInstructions
	StateCalibrating
	StateRunningHalf
	StateInterrupted
	StateFinished
	StateAborted
)

var flowStateNames = [...]string{
	"connecting_device",
	"showing_instructions",
	"awaiting_quiz",
	"repeating_instructions",
	"calibrating",
	"running_half",
	"interrupted",
	"finished",
	"aborted",
}

func (s FlowState) String() string {
	if s < 0 || int(s) >= len(flowStateNames) {
		return "unknown"
	}
	return flowStateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s FlowState) Terminal() bool {
	return s == StateFinished || s == StateAborted
}
