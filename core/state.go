package orchestration

// State is the orchestrator's turn state. Continuous mode cycles
// listening -> speaking -> transcribing -> thinking -> responding ->
// listening; push-to-talk replaces the first two with an explicit
// user-held recording state.
type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateSpeaking     State = "speaking"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateThinking     State = "thinking"
	StateResponding   State = "responding"
)

// processing reports whether a turn is in flight. A speech-end arriving
// while processing is ignored rather than starting an overlapping turn; a
// speech-start while processing is a barge-in.
func (s State) processing() bool {
	switch s {
	case StateTranscribing, StateThinking, StateResponding:
		return true
	}
	return false
}
