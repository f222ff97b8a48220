package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/GeekyJ160/ADA/internal/audio"
)

// duplexSetup is the first message sent on a new duplex session.
type duplexSetup struct {
	SystemInstruction string `json:"system_instruction"`
	VoiceID           string `json:"voice_id"`
	InputRate         int    `json:"input_rate"`
	OutputRate        int    `json:"output_rate"`
}

type duplexClientMessage struct {
	Setup      *duplexSetup      `json:"setup,omitempty"`
	AudioFrame *duplexAudioFrame `json:"audio_frame,omitempty"`
}

type duplexAudioFrame struct {
	Data     string `json:"data"` // base64 PCM-16 at 16 kHz
	MimeType string `json:"mime_type"`
}

// duplexServerMessage is the tagged union received from the oracle. Fields
// are independent signals; any combination may be set on one message.
type duplexServerMessage struct {
	Audio        string `json:"audio,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	Interrupted  bool   `json:"interrupted,omitempty"`
	TurnComplete bool   `json:"turn_complete,omitempty"`
}

// Duplex is a websocket-backed duplex oracle session.
type Duplex struct {
	conn     *websocket.Conn
	handlers SessionHandlers

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// OpenDuplex dials the oracle's live endpoint, sends the session setup and
// starts the read loop. The OnOpen handler fires once the setup message has
// been accepted by the transport.
func (c *Client) OpenDuplex(ctx context.Context, systemInstruction, voiceID string, handlers SessionHandlers) (DuplexSession, error) {
	wsURL, err := liveURL(c.config.Endpoint)
	if err != nil {
		return nil, err
	}

	header := http.Header{"Authorization": {"Bearer " + c.config.APIKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to open duplex session: %w", err)
	}

	d := &Duplex{
		conn:     conn,
		handlers: handlers,
		closed:   make(chan struct{}),
	}

	setup := duplexClientMessage{Setup: &duplexSetup{
		SystemInstruction: systemInstruction,
		VoiceID:           voiceID,
		InputRate:         audio.OracleInputRate,
		OutputRate:        audio.OracleOutputRate,
	}}
	if err := d.writeJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send duplex setup: %w", err)
	}

	if handlers.OnOpen != nil {
		handlers.OnOpen()
	}

	go d.readLoop()

	return d, nil
}

// liveURL converts the configured HTTP endpoint to its websocket form.
func liveURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid oracle endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported oracle endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/live"
	return u.String(), nil
}

// SendAudio transmits one raw PCM-16 frame. Fire-and-forget per the session
// contract: errors indicate transport failure, not rejection.
func (d *Duplex) SendAudio(frame []byte) error {
	select {
	case <-d.closed:
		return fmt.Errorf("duplex session closed")
	default:
	}

	msg := duplexClientMessage{AudioFrame: &duplexAudioFrame{
		Data:     base64.StdEncoding.EncodeToString(frame),
		MimeType: fmt.Sprintf("audio/pcm;rate=%d", audio.OracleInputRate),
	}}
	if err := d.writeJSON(msg); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// Close ends the session. Safe to call more than once; OnClose fires exactly
// once regardless of who initiated the close.
func (d *Duplex) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
		d.writeMu.Lock()
		d.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		d.writeMu.Unlock()
		d.conn.Close()
		if d.handlers.OnClose != nil {
			d.handlers.OnClose()
		}
	})
	return nil
}

func (d *Duplex) writeJSON(v any) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.conn.WriteJSON(v)
}

// readLoop receives and dispatches server messages until the connection
// ends. Every exit path funnels into Close so teardown is identical for
// local stops, remote closes and transport errors.
func (d *Duplex) readLoop() {
	defer d.Close()

	for {
		var wire duplexServerMessage
		if err := d.conn.ReadJSON(&wire); err != nil {
			select {
			case <-d.closed:
				// Local close already in progress.
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					if d.handlers.OnError != nil {
						d.handlers.OnError(err)
					}
				}
			}
			return
		}

		msg := ServerMessage{
			Transcript:   wire.Transcript,
			Interrupted:  wire.Interrupted,
			TurnComplete: wire.TurnComplete,
		}
		if wire.Audio != "" {
			pcm, err := audio.DecodeOracleAudio(wire.Audio)
			if err != nil {
				if d.handlers.OnError != nil {
					d.handlers.OnError(fmt.Errorf("duplex audio payload: %w", err))
				}
				continue
			}
			msg.Audio = pcm
		}

		if d.handlers.OnMessage != nil {
			d.handlers.OnMessage(msg)
		}
	}
}
