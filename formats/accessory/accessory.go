// Package accessory reads and writes accessory.txt descriptions in YAML.
package accessory

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

var info = pipeline.Info{
	CodecName: "Accessory",
	Exts:      []string{"accessory.txt"},
	AssetKind: asset.KindDocument,
}

func init() {
	pipeline.RegisterImporter(&Importer{Info: info})
	pipeline.RegisterExporter(&Exporter{Info: info})
}

func NewFromData(data []byte) (*asset.Accessory, error) {
	a := &asset.Accessory{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(a); err != nil {
		if err == io.EOF {
			return nil, errors.Errorf("Empty accessory")
		}
		return nil, err
	}
	if a.Name == "" {
		return nil, errors.Errorf("Accessory without name")
	}
	if a.Mass < 0 {
		return nil, errors.Errorf("Accessory %q has negative mass %v", a.Name, a.Mass)
	}
	return a, nil
}

type Importer struct {
	pipeline.Info
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	data, err := pipeline.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := NewFromData(data)
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	return a, nil
}

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	acc, ok := a.(*asset.Accessory)
	if !ok {
		return errors.Errorf("[accessory] Cannot export %T", a)
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(acc); err != nil {
			return errors.Wrapf(err, "Failed to encode accessory %q", acc.Name)
		}
		return enc.Close()
	})
}
