package script

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/GeekyJ160/ADA/internal/oracle"
)

// Segment is one unit of dialogue: the text to speak, the voice to speak it
// with and the original text kept for display. Immutable once enqueued.
type Segment struct {
	Text         string
	VoiceID      string
	OriginalText string
}

// VoiceResolver maps a speaker label to an oracle voice identifier.
type VoiceResolver interface {
	ResolveVoice(speaker string) string
}

// DefaultSpeaker is assigned to lines without a "Name:" prefix.
const DefaultSpeaker = "Unknown"

// speakerPattern matches the "Name: text" line form. The name part stops at
// the first colon and must not contain brackets, so a leading [SFX: ...] tag
// is never mistaken for a speaker.
var speakerPattern = regexp.MustCompile(`^\s*([^:\n\[\]]+?)\s*:\s*(.+)$`)

// ParseLine splits a raw script line into speaker and content. Lines without
// a speaker prefix get DefaultSpeaker and the whole line as content.
func ParseLine(line string) (speaker, content string) {
	if m := speakerPattern.FindStringSubmatch(line); m != nil {
		return m[1], m[2]
	}
	return DefaultSpeaker, strings.TrimSpace(line)
}

// sfxPattern matches a leading [SFX: Name] tag, case-insensitively.
var sfxPattern = regexp.MustCompile(`(?i)^\s*\[SFX:\s*([^\]]+?)\s*\]\s*`)

// ExtractSFX detects a leading sound-effect tag. It returns the effect name
// (empty if no tag) and the line with the tag stripped.
func ExtractSFX(text string) (effect, remainder string) {
	m := sfxPattern.FindStringSubmatch(text)
	if m == nil {
		return "", text
	}
	return m[1], strings.TrimSpace(text[len(m[0]):])
}

// PrepareSegments parses raw lines into segments and runs the translation
// pass. Target language "original" (or empty) skips translation. Translation
// runs as one batch; a failed batch falls back to the untranslated content
// for every segment, and a short response falls back per index. Blank lines
// are dropped.
func PrepareSegments(ctx context.Context, lines []string, targetLang string, resolver VoiceResolver, translator oracle.Translator, logger *slog.Logger) []Segment {
	if logger == nil {
		logger = slog.Default()
	}

	segments := make([]Segment, 0, len(lines))
	contents := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		speaker, content := ParseLine(line)
		segments = append(segments, Segment{
			Text:         content,
			VoiceID:      resolver.ResolveVoice(speaker),
			OriginalText: content,
		})
		contents = append(contents, content)
	}

	if len(segments) == 0 || targetLang == "" || strings.EqualFold(targetLang, "original") {
		return segments
	}

	translations, err := translator.TranslateBatch(ctx, contents, targetLang)
	if err != nil {
		logger.Warn("Translation batch failed, using original text",
			"language", targetLang,
			"segments", len(segments),
			"error", err)
		return segments
	}

	for i := range segments {
		if i < len(translations) && translations[i] != "" {
			segments[i].Text = translations[i]
		}
	}
	return segments
}
