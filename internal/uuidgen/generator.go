package uuidgen

import (
	"fmt"

	"github.com/google/uuid"
)

// NewV4 generates a UUIDv4 for identifiers that should be randomly distributed
func NewV4() (uuid.UUID, error) {
	return uuid.NewRandom()
}

// MustNewV4 is like NewV4 but panics on error
func MustNewV4() uuid.UUID {
	id, err := NewV4()
	if err != nil {
		panic(fmt.Sprintf("failed to generate UUIDv4: %v", err))
	}
	return id
}

// NewV7 generates a UUIDv7 for identifiers that benefit from time ordering,
// such as connection identities created at high rates.
func NewV7() (uuid.UUID, error) {
	return uuid.NewV7()
}

// MustNewV7 is like NewV7 but panics on error
func MustNewV7() uuid.UUID {
	id, err := NewV7()
	if err != nil {
		panic(fmt.Sprintf("failed to generate UUIDv7: %v", err))
	}
	return id
}
