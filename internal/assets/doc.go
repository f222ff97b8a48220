// Package assets manages the studio's voice packs, characters and sound
// effects, including JSON export/import and the persisted voice selection.
package assets
