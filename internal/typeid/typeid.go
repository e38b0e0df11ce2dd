// Package typeid issues the prefixed, sortable ids used outside the scene:
// users, editing sessions, stored snapshots and submitted operations.
// Scene entities use plain integer ids instead.
package typeid

import (
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the kind of thing an id refers to.
type Prefix string

const (
	PrefixUser     Prefix = "user"
	PrefixSession  Prefix = "sess"
	PrefixSnapshot Prefix = "snap"
	PrefixOp       Prefix = "op"
)

var ErrWrongPrefix = errors.New("unexpected typeid prefix")

func New(prefix Prefix) string {
	return typeid.MustGenerate(string(prefix)).String()
}

func NewUserID() string     { return New(PrefixUser) }
func NewSessionID() string  { return New(PrefixSession) }
func NewSnapshotID() string { return New(PrefixSnapshot) }
func NewOpID() string       { return New(PrefixOp) }

// PrefixOf parses id and returns its prefix.
func PrefixOf(id string) (Prefix, error) {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	return Prefix(parsed.Prefix()), nil
}

// Validate checks that id parses and carries the expected prefix.
func Validate(id string, expected Prefix) error {
	prefix, err := PrefixOf(id)
	if err != nil {
		return err
	}
	if prefix != expected {
		return fmt.Errorf("%w: want %q, got %q in %q", ErrWrongPrefix, expected, prefix, id)
	}
	return nil
}
