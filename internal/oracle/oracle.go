package oracle

import "context"

// Language identifies a detected language.
type Language struct {
	Name    string `json:"language_name"`
	ISOCode string `json:"iso_code"`
}

// Synthesizer generates speech for one text segment. The returned bytes are
// raw little-endian PCM-16 at 24 kHz; a nil result with a nil error means
// the oracle produced no audio for the input.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Translator translates an ordered batch of texts. The response carries
// exactly one translation per input, in input order; anything else fails the
// whole batch.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

// Detector identifies the language of a text or transcribed audio sample.
type Detector interface {
	DetectLanguage(ctx context.Context, sample string) (*Language, error)
}

// ServerMessage is one message received on a duplex session. The three
// signal types are independent: any combination may be present and each must
// be handled.
type ServerMessage struct {
	// Audio is raw PCM-16 at 24 kHz, nil when the message carries none.
	Audio []byte
	// Transcript is an incremental transcription fragment, empty when absent.
	Transcript string
	// Interrupted signals that queued playback should be dropped.
	Interrupted bool
	// TurnComplete signals the end of the oracle's speaking turn.
	TurnComplete bool
}

// SessionHandlers are the callbacks a duplex session dispatches into. All
// callbacks are invoked from the session's read loop, one at a time.
type SessionHandlers struct {
	OnOpen    func()
	OnMessage func(ServerMessage)
	OnError   func(error)
	// OnClose fires exactly once, whether the close was local, remote or
	// caused by an error.
	OnClose func()
}

// DuplexSession is an open bidirectional streaming connection.
type DuplexSession interface {
	// SendAudio transmits one raw PCM-16 16 kHz frame. Fire-and-forget: no
	// acknowledgment is awaited and no backpressure is applied.
	SendAudio(frame []byte) error
	Close() error
}

// DuplexDialer opens duplex sessions.
type DuplexDialer interface {
	OpenDuplex(ctx context.Context, systemInstruction, voiceID string, handlers SessionHandlers) (DuplexSession, error)
}
