// Package structure reads and writes the vehicle structure.xml part tree and
// the systemsdamage.xml damage thresholds.
package structure

import (
	"encoding/xml"
	"io"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

func init() {
	structureInfo := pipeline.Info{
		CodecName: "Structure XML",
		Exts:      []string{"structure.xml"},
		AssetKind: asset.KindDocument,
	}
	damageInfo := pipeline.Info{
		CodecName: "SystemsDamage XML",
		Exts:      []string{"systemsdamage.xml"},
		AssetKind: asset.KindDocument,
	}
	pipeline.RegisterImporter(&Importer{Info: structureInfo, decode: decodeStructure})
	pipeline.RegisterExporter(&Exporter{Info: structureInfo})
	pipeline.RegisterImporter(&Importer{Info: damageInfo, decode: decodeSystemsDamage})
	pipeline.RegisterExporter(&Exporter{Info: damageInfo})
}

type xmlPart struct {
	Name      string     `xml:"name,attr"`
	Crushable bool       `xml:"crushable,attr,omitempty"`
	Parts     []*xmlPart `xml:"PART"`
}

type xmlStructure struct {
	XMLName   xml.Name `xml:"STRUCTURE"`
	Character struct {
		Name string   `xml:"name,attr"`
		Root *xmlPart `xml:"PART"`
	} `xml:"CHARACTER"`
}

type xmlSystem struct {
	Name      string   `xml:"name,attr"`
	Threshold float32  `xml:"threshold,attr"`
	Parts     []string `xml:"PART"`
}

type xmlSystemsDamage struct {
	XMLName xml.Name    `xml:"SYSTEMS"`
	Systems []xmlSystem `xml:"SYSTEM"`
}

func toXMLPart(p *asset.StructurePart) *xmlPart {
	x := &xmlPart{Name: p.Name, Crushable: p.Crushable}
	for _, c := range p.Children {
		x.Parts = append(x.Parts, toXMLPart(c))
	}
	return x
}

func fromXMLPart(x *xmlPart, depth int) (*asset.StructurePart, error) {
	if x.Name == "" {
		return nil, errors.Errorf("Part without name at depth %d", depth)
	}
	p := &asset.StructurePart{Name: x.Name, Crushable: x.Crushable}
	for _, c := range x.Parts {
		child, err := fromXMLPart(c, depth+1)
		if err != nil {
			return nil, err
		}
		p.Children = append(p.Children, child)
	}
	return p, nil
}

func decodeStructure(r io.Reader) (asset.SupportingDocument, error) {
	var x xmlStructure
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode structure")
	}
	s := &asset.Structure{Character: x.Character.Name}
	if x.Character.Root != nil {
		root, err := fromXMLPart(x.Character.Root, 0)
		if err != nil {
			return nil, err
		}
		s.Root = root
	}
	return s, nil
}

func decodeSystemsDamage(r io.Reader) (asset.SupportingDocument, error) {
	var x xmlSystemsDamage
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode systems damage")
	}
	d := &asset.SystemsDamage{}
	for _, s := range x.Systems {
		if s.Name == "" {
			return nil, errors.Errorf("System without name")
		}
		if s.Threshold < 0 || s.Threshold > 1 {
			return nil, errors.Errorf("System %q threshold %v out of [0, 1]", s.Name, s.Threshold)
		}
		d.Systems = append(d.Systems, asset.DamageSystem{Name: s.Name, Threshold: s.Threshold, Parts: s.Parts})
	}
	return d, nil
}

// Marshal writes a Structure or SystemsDamage document as indented XML.
func Marshal(w io.Writer, d asset.SupportingDocument) error {
	var v interface{}
	switch doc := d.(type) {
	case *asset.Structure:
		x := &xmlStructure{}
		x.Character.Name = doc.Character
		if doc.Root != nil {
			x.Character.Root = toXMLPart(doc.Root)
		}
		v = x
	case *asset.SystemsDamage:
		x := &xmlSystemsDamage{}
		for _, s := range doc.Systems {
			x.Systems = append(x.Systems, xmlSystem{Name: s.Name, Threshold: s.Threshold, Parts: s.Parts})
		}
		v = x
	default:
		return errors.Errorf("Cannot write %T as xml", d)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

type Importer struct {
	pipeline.Info
	decode func(r io.Reader) (asset.SupportingDocument, error)
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	f, err := pipeline.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := i.decode(f)
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	return d, nil
}

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	d, ok := a.(asset.SupportingDocument)
	if !ok {
		return errors.Errorf("[structure] Cannot export %T", a)
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		return Marshal(w, d)
	})
}
