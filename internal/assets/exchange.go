package assets

import (
	"encoding/json"
	"fmt"
	"os"
)

// ExportDocument is the interchange format for asset backup files.
type ExportDocument struct {
	VoicePacks   []VoicePack   `json:"voicePacks"`
	Characters   []Character   `json:"characters"`
	SoundEffects []SoundEffect `json:"soundEffects"`
}

// ImportResult reports how many new entries an import added per asset kind.
type ImportResult struct {
	VoicePacksAdded   int
	CharactersAdded   int
	SoundEffectsAdded int
}

// Total returns the number of entries added across all kinds.
func (r ImportResult) Total() int {
	return r.VoicePacksAdded + r.CharactersAdded + r.SoundEffectsAdded
}

// Export returns a snapshot of all assets as an interchange document.
func (s *Store) Export() ExportDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ExportDocument{
		VoicePacks:   append([]VoicePack(nil), s.voicePacks...),
		Characters:   append([]Character(nil), s.characters...),
		SoundEffects: append([]SoundEffect(nil), s.soundEffects...),
	}
}

// ExportJSON serializes the asset snapshot for download.
func (s *Store) ExportJSON() ([]byte, error) {
	doc := s.Export()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize assets: %w", err)
	}
	return data, nil
}

// Import merges an interchange document into the store. Entries whose id
// already exists are skipped. Malformed JSON is rejected with no mutation.
func (s *Store) Import(data []byte) (ImportResult, error) {
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("invalid asset file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result ImportResult

	packIDs := make(map[string]struct{}, len(s.voicePacks))
	for _, p := range s.voicePacks {
		packIDs[p.ID] = struct{}{}
	}
	for _, p := range doc.VoicePacks {
		if p.ID == "" {
			continue
		}
		if _, exists := packIDs[p.ID]; exists {
			continue
		}
		s.voicePacks = append(s.voicePacks, p)
		packIDs[p.ID] = struct{}{}
		result.VoicePacksAdded++
	}

	charIDs := make(map[string]struct{}, len(s.characters))
	for _, c := range s.characters {
		charIDs[c.ID] = struct{}{}
	}
	for _, c := range doc.Characters {
		if c.ID == "" {
			continue
		}
		if _, exists := charIDs[c.ID]; exists {
			continue
		}
		s.characters = append(s.characters, c)
		charIDs[c.ID] = struct{}{}
		result.CharactersAdded++
	}

	sfxIDs := make(map[string]struct{}, len(s.soundEffects))
	for _, e := range s.soundEffects {
		sfxIDs[e.ID] = struct{}{}
	}
	for _, e := range doc.SoundEffects {
		if e.ID == "" {
			continue
		}
		if _, exists := sfxIDs[e.ID]; exists {
			continue
		}
		s.soundEffects = append(s.soundEffects, e)
		sfxIDs[e.ID] = struct{}{}
		result.SoundEffectsAdded++
	}

	s.logger.Info("Imported assets",
		"voice_packs", result.VoicePacksAdded,
		"characters", result.CharactersAdded,
		"sound_effects", result.SoundEffectsAdded)

	return result, nil
}

// selectionFile is the persisted voice selection entry.
type selectionFile struct {
	SelectedVoiceID string `json:"selectedVoiceId"`
}

// SaveSelection persists the currently selected voice pack id to path.
func (s *Store) SaveSelection(path string) error {
	s.mu.RLock()
	entry := selectionFile{SelectedVoiceID: s.selectedID}
	s.mu.RUnlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize voice selection: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to persist voice selection: %w", err)
	}
	return nil
}

// RestoreSelection loads the persisted voice selection from path. When the
// saved pack no longer exists the selection falls back to the first pack and
// restored is false, so callers can surface a notice. A missing file is not
// an error; the current selection is kept.
func (s *Store) RestoreSelection(path string) (restored bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read voice selection: %w", err)
	}

	var entry selectionFile
	if err := json.Unmarshal(data, &entry); err != nil {
		return false, fmt.Errorf("invalid voice selection file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findPackLocked(entry.SelectedVoiceID) != nil {
		s.selectedID = entry.SelectedVoiceID
		return true, nil
	}

	s.selectedID = s.voicePacks[0].ID
	s.logger.Warn("Saved voice is unavailable, falling back to first pack",
		"saved_id", entry.SelectedVoiceID,
		"fallback", s.voicePacks[0].Name)
	return false, nil
}
