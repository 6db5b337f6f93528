// Package gid implements the opaque global identifiers exposed at the API
// boundary. A global ID is a (type, key) pair encoded base58 so clients can
// pass it around without knowing the internal key format.
package gid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Entity types carried inside global IDs.
const (
	TypeUser         = "users"
	TypeOrganization = "organizations"
	TypeDomain       = "domains"
)

var ErrInvalidID = errors.New("invalid global id")

// ID is a decoded global identifier.
type ID struct {
	Type string
	Key  uuid.UUID
}

// New builds a global ID for the given entity type and key.
func New(entityType string, key uuid.UUID) ID {
	return ID{Type: entityType, Key: key}
}

// String encodes the ID as base58("type:key").
func (id ID) String() string {
	return base58.Encode([]byte(id.Type + ":" + id.Key.String()))
}

// KeyFor returns the internal key if the ID carries the expected type.
func (id ID) KeyFor(entityType string) (uuid.UUID, error) {
	if id.Type != entityType {
		return uuid.Nil, fmt.Errorf("%w: expected %s id, got %s", ErrInvalidID, entityType, id.Type)
	}
	return id.Key, nil
}

// Parse decodes a base58 global ID back into its (type, key) pair.
func Parse(s string) (ID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %s", ErrInvalidID, err)
	}

	entityType, keyStr, ok := strings.Cut(string(raw), ":")
	if !ok {
		return ID{}, fmt.Errorf("%w: missing type separator", ErrInvalidID)
	}

	key, err := uuid.Parse(keyStr)
	if err != nil {
		return ID{}, fmt.Errorf("%w: bad key: %s", ErrInvalidID, err)
	}

	return ID{Type: entityType, Key: key}, nil
}
