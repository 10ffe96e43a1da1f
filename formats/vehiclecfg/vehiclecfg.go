// Package vehiclecfg reads and writes vehicle_setup.cfg, a key:=value
// document of vehicle options.
package vehiclecfg

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/kvdoc"
	"github.com/mogaika/assetpipe/pipeline"
)

var info = pipeline.Info{
	CodecName: "Vehicle Setup CFG",
	Exts:      []string{"vehicle_setup.cfg"},
	AssetKind: asset.KindDocument,
}

func init() {
	pipeline.RegisterImporter(&Importer{Info: info})
	pipeline.RegisterExporter(&Exporter{Info: info})
}

type Importer struct {
	pipeline.Info
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	data, err := pipeline.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values, err := kvdoc.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	return &asset.VehicleSetupConfig{Values: values}, nil
}

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	cfg, ok := a.(*asset.VehicleSetupConfig)
	if !ok {
		return errors.Errorf("[vehiclecfg] Cannot export %T", a)
	}
	if cfg.Values == nil {
		return asset.Validationf("vehicle setup export", "no values")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return asset.NewIOError("mkdir", filepath.Dir(path), err)
	}
	if err := cfg.Values.Save(path); err != nil {
		return asset.NewIOError("save", path, err)
	}
	return nil
}
