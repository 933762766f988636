// Package state owns the persisted wallpaper state document.
//
// The document is a single JSON record (directory, display modes, rotation
// pool, sound flags, favorites, groups, keybindings, startup flag). Load never
// fails: a missing or unreadable file yields defaults, and a readable file is
// merged key-wise over the defaults, conformed to the schema, and validated.
// Keys this version does not know about are carried through and written back
// on Save. Save writes through a temp file and rename so a crash never leaves a
// truncated document.
//
// Handle serializes access to the one live record; the keybinding workers and
// the interactive loop mutate it through Update and read it through Snapshot.
package state
