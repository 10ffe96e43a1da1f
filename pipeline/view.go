package pipeline

import (
	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
)

// NeedsFlip reports whether data in a format of the given handedness must be
// mirrored to match the scene. Native on either side never flips.
func NeedsFlip(format, scene asset.CoordinateSystem) bool {
	return format != asset.Native && scene != asset.Native && format != scene
}

// TargetHandedness is the convention an export is written in.
func TargetHandedness(c Codec, s *Settings) asset.CoordinateSystem {
	if s != nil && s.Handed != asset.Native {
		return s.Handed
	}
	return c.Handedness()
}

// PrepareModel returns a private copy of m with the export settings applied
// and, when needed, mirrored into the target handedness.
func PrepareModel(ctx *Context, c Codec, m *asset.Model, s *Settings) (*asset.Model, error) {
	s = settingsOrDefault(s)
	view, err := m.Clone()
	if err != nil {
		return nil, errors.Wrapf(err, "Can't prepare %q for export", m.Name)
	}
	if !s.IsIdentity() {
		view.ApplyRootTransform(s.Matrix())
	}
	if NeedsFlip(TargetHandedness(c, s), ctx.CoordinateSystem) {
		view.FlipAxisZ()
	}
	return view, nil
}

// ToScene mirrors a freshly imported model into the scene convention.
func ToScene(ctx *Context, c Codec, m *asset.Model) {
	if NeedsFlip(c.Handedness(), ctx.CoordinateSystem) {
		m.FlipAxisZ()
	}
}
