package assets

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// VoicePack is a user-defined named binding to one of the oracle's native
// voice identifiers.
type VoicePack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BaseVoiceID string `json:"baseVoiceId"`
	Description string `json:"description,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// Character binds a speaker label appearing in script text to a voice pack.
type Character struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	VoiceID string `json:"voiceId"`
}

// SoundEffect is a named audio asset triggered by an inline [SFX: Name] tag.
type SoundEffect struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

// Store holds the studio's assets and the currently selected voice pack.
// Safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	voicePacks   []VoicePack
	characters   []Character
	soundEffects []SoundEffect
	selectedID   string

	logger *slog.Logger
}

// NewStore creates a store seeded with the given voice packs. At least one
// pack is required; the first becomes the selection.
func NewStore(packs []VoicePack, logger *slog.Logger) (*Store, error) {
	if len(packs) == 0 {
		return nil, fmt.Errorf("at least one voice pack is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		voicePacks: append([]VoicePack(nil), packs...),
		selectedID: packs[0].ID,
		logger:     logger,
	}
	return s, nil
}

// AddVoicePack registers a new pack. An empty ID is assigned a fresh UUID.
func (s *Store) AddVoicePack(pack VoicePack) (VoicePack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pack.Name == "" || pack.BaseVoiceID == "" {
		return VoicePack{}, fmt.Errorf("voice pack requires a name and a base voice")
	}
	if pack.ID == "" {
		pack.ID = uuid.New().String()
	}
	if s.findPackLocked(pack.ID) != nil {
		return VoicePack{}, fmt.Errorf("voice pack %q already exists", pack.ID)
	}
	s.voicePacks = append(s.voicePacks, pack)
	return pack, nil
}

// RemoveVoicePack deletes a pack. Removing the last remaining pack is
// rejected, and the selection moves to the first pack if it pointed at the
// removed one.
func (s *Store) RemoveVoicePack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.voicePacks) <= 1 {
		return fmt.Errorf("cannot remove the last voice pack")
	}
	for i, p := range s.voicePacks {
		if p.ID == id {
			s.voicePacks = append(s.voicePacks[:i], s.voicePacks[i+1:]...)
			if s.selectedID == id {
				s.selectedID = s.voicePacks[0].ID
			}
			return nil
		}
	}
	return fmt.Errorf("voice pack %q not found", id)
}

// SelectVoicePack sets the active pack.
func (s *Store) SelectVoicePack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findPackLocked(id) == nil {
		return fmt.Errorf("voice pack %q not found", id)
	}
	s.selectedID = id
	return nil
}

// SelectedPack returns the currently selected voice pack.
func (s *Store) SelectedPack() VoicePack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.findPackLocked(s.selectedID); p != nil {
		return *p
	}
	return s.voicePacks[0]
}

// VoicePacks returns a copy of all registered packs.
func (s *Store) VoicePacks() []VoicePack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]VoicePack(nil), s.voicePacks...)
}

func (s *Store) findPackLocked(id string) *VoicePack {
	for i := range s.voicePacks {
		if s.voicePacks[i].ID == id {
			return &s.voicePacks[i]
		}
	}
	return nil
}

// AddCharacter registers a speaker-to-voice binding.
func (s *Store) AddCharacter(ch Character) (Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.Name == "" || ch.VoiceID == "" {
		return Character{}, fmt.Errorf("character requires a name and a voice")
	}
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	s.characters = append(s.characters, ch)
	return ch, nil
}

// RemoveCharacter deletes a character by id.
func (s *Store) RemoveCharacter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ch := range s.characters {
		if ch.ID == id {
			s.characters = append(s.characters[:i], s.characters[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("character %q not found", id)
}

// Characters returns a copy of all characters.
func (s *Store) Characters() []Character {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Character(nil), s.characters...)
}

// ResolveVoice maps a speaker name to a voice identifier. Lookup is
// case-insensitive on the character name, then on the voice pack name;
// unknown speakers fall back to the selected pack's voice.
func (s *Store) ResolveVoice(speaker string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.characters {
		if strings.EqualFold(ch.Name, speaker) {
			for i := range s.voicePacks {
				if s.voicePacks[i].ID == ch.VoiceID {
					return s.voicePacks[i].BaseVoiceID
				}
			}
			// Character points at a removed pack.
			break
		}
	}
	for i := range s.voicePacks {
		if strings.EqualFold(s.voicePacks[i].Name, speaker) {
			return s.voicePacks[i].BaseVoiceID
		}
	}
	if p := s.findPackLocked(s.selectedID); p != nil {
		return p.BaseVoiceID
	}
	return s.voicePacks[0].BaseVoiceID
}

// AddSoundEffect registers a sound effect asset.
func (s *Store) AddSoundEffect(sfx SoundEffect) (SoundEffect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sfx.Name == "" || sfx.Src == "" {
		return SoundEffect{}, fmt.Errorf("sound effect requires a name and a source")
	}
	if sfx.ID == "" {
		sfx.ID = uuid.New().String()
	}
	s.soundEffects = append(s.soundEffects, sfx)
	return sfx, nil
}

// FindSoundEffect looks up a sound effect by name, case-insensitively.
func (s *Store) FindSoundEffect(name string) (SoundEffect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sfx := range s.soundEffects {
		if strings.EqualFold(sfx.Name, name) {
			return sfx, true
		}
	}
	return SoundEffect{}, false
}

// SoundEffects returns a copy of all sound effects.
func (s *Store) SoundEffects() []SoundEffect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SoundEffect(nil), s.soundEffects...)
}
