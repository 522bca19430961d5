// Package commodity defines the tradeable goods of the farm market and the
// catalog that describes them.
package commodity

import (
	"errors"
	"fmt"
)

// Kind enumerates tradeable goods. Used as an array index everywhere.
type Kind uint8

const (
	CarrotSeed  Kind = iota // Planted to grow carrots
	CornSeed                // Planted to grow corn
	PotatoSeed              // Planted to grow potatoes
	LettuceSeed             // Planted to grow lettuce
	Carrot                  // Crop
	Corn                    // Crop
	Potato                  // Crop
	Lettuce                 // Crop
)

// NumKinds is the total number of commodity kinds.
const NumKinds = 8

// ErrUnknownKind is returned (or panicked with) when a kind is not configured.
var ErrUnknownKind = errors.New("unknown commodity")

var kindNames = [NumKinds]string{
	"carrot_seed",
	"corn_seed",
	"potato_seed",
	"lettuce_seed",
	"carrot",
	"corn",
	"potato",
	"lettuce",
}

// All returns every kind in declaration order.
func All() []Kind {
	kinds := make([]Kind, NumKinds)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// Valid reports whether k is inside the enumeration.
func (k Kind) Valid() bool {
	return int(k) < NumKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// IsSeed reports whether k is a seed variant.
func (k Kind) IsSeed() bool {
	return k <= LettuceSeed
}

// SeedOf returns the seed that grows crop k. Seeds map to themselves.
func SeedOf(k Kind) Kind {
	if k.IsSeed() {
		return k
	}
	return k - Carrot + CarrotSeed
}

// Parse returns the kind with the given name.
func Parse(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("parse %q: %w", name, ErrUnknownKind)
}

// MarshalText lets kinds be used as JSON map keys and YAML scalars.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal %d: %w", uint8(k), ErrUnknownKind)
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
