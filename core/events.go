package orchestration

// Events drive every state transition through the orchestrator's single
// event loop. VAD callbacks, push-to-talk controls, and the goroutines a
// turn spawns all funnel through the same queue, so transitions stay
// serialized and auditable in one place.
type event interface {
	isEvent()
}

type speechStartedEvent struct{}

// speechEndedEvent carries the captured utterance as float32 samples.
type speechEndedEvent struct {
	samples []float32
}

type misfireEvent struct{}

// promptEvent starts a turn from text directly, skipping transcription.
type promptEvent struct {
	text string
}

// recordingStoppedEvent carries the push-to-talk blob, already PCM encoded.
type recordingStoppedEvent struct {
	pcm []byte
}

// transcriptionEvent reports the transcript of turn's utterance. An empty
// transcript abandons the turn silently.
type transcriptionEvent struct {
	turn       int
	transcript string
}

// responseDeltaEvent carries one streamed text delta of turn's response.
type responseDeltaEvent struct {
	turn  int
	delta string
}

// responseEndedEvent reports that turn's stream finished with the full
// accumulated response.
type responseEndedEvent struct {
	turn     int
	response string
}

// playbackDrainedEvent reports that the playback queue finished turn's audio.
type playbackDrainedEvent struct {
	turn int
}

// turnErrorEvent aborts turn with a single surfaced error.
type turnErrorEvent struct {
	turn int
	err  error
}

type continuousEnabledEvent struct{}

type continuousDisabledEvent struct{}

type recordingStartedEvent struct{}

type cancelTurnEvent struct{}

type stopEvent struct{}

func (speechStartedEvent) isEvent()      {}
func (speechEndedEvent) isEvent()        {}
func (misfireEvent) isEvent()            {}
func (promptEvent) isEvent()             {}
func (recordingStoppedEvent) isEvent()   {}
func (transcriptionEvent) isEvent()      {}
func (responseDeltaEvent) isEvent()      {}
func (responseEndedEvent) isEvent()      {}
func (playbackDrainedEvent) isEvent()    {}
func (turnErrorEvent) isEvent()          {}
func (continuousEnabledEvent) isEvent()  {}
func (continuousDisabledEvent) isEvent() {}
func (recordingStartedEvent) isEvent()   {}
func (cancelTurnEvent) isEvent()         {}
func (stopEvent) isEvent()               {}
