package protocol

// NewListeningMessage creates a listening message
func NewListeningMessage(turnID string, windowMs int) (*Message, error) {
	return NewMessage(TypeListening, turnID, ListeningData{WindowMs: windowMs})
}

// NewWakeMessage creates a wake message
func NewWakeMessage(turnID, detector string) (*Message, error) {
	return NewMessage(TypeWake, turnID, WakeData{Detector: detector})
}

// NewTranscriptMessage creates a transcript message
func NewTranscriptMessage(turnID, text, display string) (*Message, error) {
	return NewMessage(TypeTranscript, turnID, TranscriptData{Text: text, Display: display})
}

// NewReplyMessage creates a reply message
func NewReplyMessage(turnID, text string) (*Message, error) {
	return NewMessage(TypeReply, turnID, ReplyData{Text: text})
}

// NewStateMessage creates a state message
func NewStateMessage(turnID, state, previous string) (*Message, error) {
	return NewMessage(TypeState, turnID, StateData{State: state, Previous: previous})
}

// NewBlinkMessage creates a blink message
func NewBlinkMessage(target string, err error) (*Message, error) {
	d := BlinkData{Target: target}
	if err != nil {
		d.Error = err.Error()
	}
	return NewMessage(TypeBlink, "", d)
}

// NewTurnMessage creates a turn summary message
func NewTurnMessage(turnID string, d TurnData) (*Message, error) {
	return NewMessage(TypeTurn, turnID, d)
}

// NewShutdownMessage creates a shutdown message
func NewShutdownMessage(reason string) (*Message, error) {
	return NewMessage(TypeShutdown, "", ShutdownData{Reason: reason})
}

// MustBytes encodes m, returning nil on failure. Event payloads are plain
// structs, so encoding only fails on programmer error.
func MustBytes(m *Message) []byte {
	if m == nil {
		return nil
	}
	b, err := m.Bytes()
	if err != nil {
		return nil
	}
	return b
}
