package ports

import "github.com/reglet-dev/scriptmeasure/domain/entities"

// SkinParser parses a skin document into a Skin.
type SkinParser interface {
	// Parse unmarshals raw bytes into a Skin struct.
	Parse(data []byte) (*entities.Skin, error)
}
