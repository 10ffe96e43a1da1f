package obj

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	m, ok := a.(*asset.Model)
	if !ok {
		return errors.Errorf("[obj] Cannot export %v", a.AssetKind())
	}
	view, err := pipeline.PrepareModel(ctx, e, m, s)
	if err != nil {
		return err
	}
	if err := view.Validate(); err != nil {
		return err
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		return Marshal(w, view)
	})
}

// Marshal writes m with combined transforms baked into the vertices.
// m is modified.
func Marshal(_w io.Writer, m *asset.Model) error {
	var err error
	w := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(_w, format+"\n", args...)
		}
	}

	w("# %s", m.Name)
	base := uint32(1)
	for _, b := range m.Bones() {
		if b.Mesh == nil || b.Mesh.FaceCount() == 0 {
			continue
		}
		w("o %s", b.Mesh.Name)
		for _, part := range b.Mesh.Parts {
			part.Transform(b.CombinedTransform)
			w("usemtl %s", part.MaterialName)
			for _, v := range part.Vertices {
				w("v %g %g %g", v.Position[0], v.Position[1], v.Position[2])
			}
			for _, v := range part.Vertices {
				w("vt %g %g", v.UV[0], v.UV[1])
			}
			for _, v := range part.Vertices {
				w("vn %g %g %g", v.Normal[0], v.Normal[1], v.Normal[2])
			}
			for i := 0; i+2 < len(part.Indices); i += 3 {
				a, b, c := base+part.Indices[i], base+part.Indices[i+1], base+part.Indices[i+2]
				w("f %d/%d/%d %d/%d/%d %d/%d/%d", a, a, a, b, b, b, c, c, c)
			}
			base += uint32(len(part.Vertices))
		}
	}
	return err
}
