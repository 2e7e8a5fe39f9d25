// Package input defines the keyboard-like surface the combat core polls once per tick.
package input

import "strings"

// Key is a logical key symbol, e.g. "space", "z", "a".
type Key string

// KeySpace is the fallback key used when no allowed key is configured.
const KeySpace Key = "space"

// ParseKey normalises a configured key name.
//
// Postcondition: Returns the lower-cased, trimmed key.
func ParseKey(s string) Key {
	return Key(strings.ToLower(strings.TrimSpace(s)))
}

// ParseKeys normalises a list of configured key names, dropping empty entries.
func ParseKeys(names []string) []Key {
	keys := make([]Key, 0, len(names))
	for _, n := range names {
		if k := ParseKey(n); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Source reports which keys went down during the current tick.
type Source interface {
	// WasPressed reports whether key was pressed during the current tick.
	WasPressed(key Key) bool
}

// Frame is a Source holding the keys pressed during one tick.
// Hosts call Press while gathering input and Clear after advancing the tick.
//
// The zero value is an empty frame ready for use.
type Frame struct {
	pressed map[Key]bool
}

// Press marks key as pressed for the current tick.
func (f *Frame) Press(key Key) {
	if f.pressed == nil {
		f.pressed = make(map[Key]bool)
	}
	f.pressed[key] = true
}

// WasPressed implements Source.
func (f *Frame) WasPressed(key Key) bool {
	return f.pressed[key]
}

// Clear releases every key.
//
// Postcondition: WasPressed returns false for all keys.
func (f *Frame) Clear() {
	for k := range f.pressed {
		delete(f.pressed, k)
	}
}

// None is a Source on which no key is ever pressed.
type None struct{}

// WasPressed implements Source.
func (None) WasPressed(Key) bool { return false }
