// Package fileio implements the host-side file operations exposed to
// guest scripts through the App capability.
//
// No path restriction is applied: a script can address any path the host
// process can. Sandboxing is out of scope for the host.
package fileio

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// ErrInvalidJSON is returned when WriteJSON input is not well-formed JSON.
var ErrInvalidJSON = errors.New("input is not valid JSON")

const fileMode = 0o644

// Store performs file operations for guest scripts.
type Store struct{}

// ReadText returns a file's contents. ok is false when the file is
// absent, unreadable, or empty.
func (Store) ReadText(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// WriteText writes text to a file, replacing any existing contents.
func (Store) WriteText(path, text string) error {
	return os.WriteFile(path, []byte(text), fileMode)
}

// AppendText appends text to a file, creating it if absent.
func (Store) AppendText(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON validates raw as JSON, reformats it with indentation, and
// writes it to path. Malformed input is rejected before anything touches
// the disk.
func (Store) WriteJSON(path, raw string) error {
	if !gjson.Valid(raw) {
		return fmt.Errorf("%w: %s", ErrInvalidJSON, path)
	}
	return os.WriteFile(path, pretty.Pretty([]byte(raw)), fileMode)
}

// UpdateJSON sets one key (gjson path syntax) in the JSON document at
// path, creating the document as an empty object if it does not exist.
// The result is written back indented.
func (Store) UpdateJSON(path, key string, value any) error {
	doc := []byte("{}")
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		if !gjson.ValidBytes(data) {
			return fmt.Errorf("%w: %s", ErrInvalidJSON, path)
		}
		doc = data
	}

	updated, err := sjson.SetBytes(doc, key, value)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pretty.Pretty(updated), fileMode)
}
