package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type SynthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

type SynthesizeResponse struct {
	Audio    string `json:"audio"`
	MimeType string `json:"mime_type"`
}

type TranslateRequest struct {
	Texts          []string `json:"texts"`
	TargetLanguage string   `json:"target_language"`
}

type TranslateResponse struct {
	Translations []string `json:"translations"`
}

type DetectResponse struct {
	Name    string `json:"language_name"`
	ISOCode string `json:"iso_code"`
}

type LiveClientMessage struct {
	Setup *struct {
		SystemInstruction string `json:"system_instruction"`
		VoiceID           string `json:"voice_id"`
		InputRate         int    `json:"input_rate"`
		OutputRate        int    `json:"output_rate"`
	} `json:"setup,omitempty"`
	AudioFrame *struct {
		Data     string `json:"data"`
		MimeType string `json:"mime_type"`
	} `json:"audio_frame,omitempty"`
}

type LiveServerMessage struct {
	Audio        string `json:"audio,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	Interrupted  bool   `json:"interrupted,omitempty"`
	TurnComplete bool   `json:"turn_complete,omitempty"`
}

// fakeSpeech produces a 440 Hz tone sized to roughly 60 ms per word, encoded
// as base64 PCM-16 at 24 kHz like the real oracle.
func fakeSpeech(text string) string {
	words := 1
	for _, r := range text {
		if r == ' ' {
			words++
		}
	}
	numSamples := words * 24000 * 60 / 1000
	pcm := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		sample := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/24000))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}
	return base64.StdEncoding.EncodeToString(pcm)
}

func synthesizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error parsing request", http.StatusBadRequest)
		return
	}

	log.Printf("🔊 SYNTHESIZE REQUEST:")
	log.Printf("    Voice: %s", req.VoiceID)
	log.Printf("    Text: %q", req.Text)

	// Simulate oracle latency
	time.Sleep(150 * time.Millisecond)

	response := SynthesizeResponse{
		Audio:    fakeSpeech(req.Text),
		MimeType: "audio/pcm;rate=24000",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ SYNTHESIZE RESPONSE SENT: %d base64 bytes", len(response.Audio))
	log.Println("---")
}

func translateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error parsing request", http.StatusBadRequest)
		return
	}

	log.Printf("🌐 TRANSLATE REQUEST: %d texts -> %s", len(req.Texts), req.TargetLanguage)

	translations := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		translations[i] = fmt.Sprintf("[%s] %s", req.TargetLanguage, text)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(TranslateResponse{Translations: translations})

	log.Printf("✅ TRANSLATE RESPONSE SENT: %d translations", len(translations))
	log.Println("---")
}

func detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log.Printf("🔎 DETECT REQUEST received")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(DetectResponse{Name: "Ukrainian", ISOCode: "uk"})

	log.Printf("✅ DETECT RESPONSE SENT: Ukrainian (uk)")
	log.Println("---")
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func liveHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ LIVE UPGRADE FAILED: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("📡 LIVE SESSION OPENED from %s", r.RemoteAddr)

	frames := 0
	for {
		var msg LiveClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("📡 LIVE SESSION CLOSED after %d frames: %v", frames, err)
			return
		}

		if msg.Setup != nil {
			log.Printf("  ⚙️  Setup: voice=%s in=%d out=%d",
				msg.Setup.VoiceID, msg.Setup.InputRate, msg.Setup.OutputRate)
			continue
		}

		if msg.AudioFrame != nil {
			frames++
			// Every 20th frame, pretend a turn finished and answer with
			// a transcript, some speech and a turn-complete signal.
			if frames%20 == 0 {
				responses := []LiveServerMessage{
					{Transcript: fmt.Sprintf("тестова репліка %d ", frames/20)},
					{Audio: fakeSpeech("тестова репліка")},
					{TurnComplete: true},
				}
				for _, resp := range responses {
					if err := conn.WriteJSON(resp); err != nil {
						log.Printf("❌ LIVE WRITE FAILED: %v", err)
						return
					}
				}
				log.Printf("  🗣️  Turn %d answered", frames/20)
			}
		}
	}
}

func main() {
	http.HandleFunc("/v1/synthesize", synthesizeHandler)
	http.HandleFunc("/v1/translate", translateHandler)
	http.HandleFunc("/v1/detect", detectHandler)
	http.HandleFunc("/v1/live", liveHandler)

	port := ":9000"
	log.Printf("🚀 Test Oracle Server starting on port %s", port)
	log.Printf("📡 Endpoints: http://localhost%s/v1/{synthesize,translate,detect} + ws /v1/live", port)
	log.Println("💡 Update your config to use: endpoint: http://localhost:9000")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
