// Package asset holds the in-memory scene data model shared by every codec
// and by the scene manager.
package asset

import (
	"strings"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindModel Kind = iota
	KindMaterialList
	KindTexture
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "Model"
	case KindMaterialList:
		return "MaterialList"
	case KindTexture:
		return "Texture"
	case KindDocument:
		return "Document"
	default:
		return "Unknown"
	}
}

func ParseKind(s string) (Kind, error) {
	for k := KindModel; k <= KindDocument; k++ {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, errors.Errorf("Unknown asset kind %q", s)
}

// Asset is anything an importer can produce.
type Asset interface {
	AssetKind() Kind
}

type CoordinateSystem int

const (
	// Native means "no conversion": the codec keeps whatever the data uses.
	Native CoordinateSystem = iota
	LeftHanded
	RightHanded
)

func (cs CoordinateSystem) String() string {
	switch cs {
	case LeftHanded:
		return "LeftHanded"
	case RightHanded:
		return "RightHanded"
	default:
		return "Native"
	}
}

func ParseCoordinateSystem(s string) (CoordinateSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return Native, nil
	case "left", "lefthanded", "lh":
		return LeftHanded, nil
	case "right", "righthanded", "rh":
		return RightHanded, nil
	}
	return Native, errors.Errorf("Unknown coordinate system %q", s)
}
