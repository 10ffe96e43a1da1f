package asset

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/kvdoc"
)

type DocumentKind int

const (
	DocumentSetup DocumentKind = iota
	DocumentStructure
	DocumentSystemsDamage
	DocumentVehicleSetupConfig
	DocumentAccessory
)

var documentKindNames = [...]string{"Setup", "Structure", "SystemsDamage", "VehicleSetupConfig", "Accessory"}

func (k DocumentKind) String() string {
	if k >= 0 && int(k) < len(documentKindNames) {
		return documentKindNames[k]
	}
	return "Unknown"
}

func ParseDocumentKind(s string) (DocumentKind, error) {
	for i, name := range documentKindNames {
		if strings.EqualFold(name, s) {
			return DocumentKind(i), nil
		}
	}
	return 0, errors.Errorf("Unknown document kind %q", s)
}

// SupportingDocument is closed over the types in this file.
type SupportingDocument interface {
	Asset
	DocumentKind() DocumentKind
	supportingDocument()
}

// DocumentVisitor has one method per SupportingDocument variant.
type DocumentVisitor interface {
	VisitSetup(*Setup) error
	VisitStructure(*Structure) error
	VisitSystemsDamage(*SystemsDamage) error
	VisitVehicleSetupConfig(*VehicleSetupConfig) error
	VisitAccessory(*Accessory) error
}

func VisitDocument(d SupportingDocument, v DocumentVisitor) error {
	switch doc := d.(type) {
	case *Setup:
		return v.VisitSetup(doc)
	case *Structure:
		return v.VisitStructure(doc)
	case *SystemsDamage:
		return v.VisitSystemsDamage(doc)
	case *VehicleSetupConfig:
		return v.VisitVehicleSetupConfig(doc)
	case *Accessory:
		return v.VisitAccessory(doc)
	default:
		return errors.Errorf("Unknown supporting document %T", d)
	}
}

type SetupParam struct {
	Name  string
	Value string
}

type SetupMethod struct {
	Name   string
	Params []SetupParam
}

// Setup is a list of method calls with named parameters, as found in vehicle
// setup scripts.
type Setup struct {
	Context string
	Methods []*SetupMethod
}

func (*Setup) AssetKind() Kind            { return KindDocument }
func (*Setup) DocumentKind() DocumentKind { return DocumentSetup }
func (*Setup) supportingDocument()        {}

func (s *Setup) Method(name string) *SetupMethod {
	for _, m := range s.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (s *Setup) Parameter(method, param string) (string, bool) {
	if m := s.Method(method); m != nil {
		for _, p := range m.Params {
			if p.Name == param {
				return p.Value, true
			}
		}
	}
	return "", false
}

// SetParameter creates the method and parameter when missing.
func (s *Setup) SetParameter(method, param, value string) {
	m := s.Method(method)
	if m == nil {
		m = &SetupMethod{Name: method}
		s.Methods = append(s.Methods, m)
	}
	for i := range m.Params {
		if m.Params[i].Name == param {
			m.Params[i].Value = value
			return
		}
	}
	m.Params = append(m.Params, SetupParam{Name: param, Value: value})
}

// NewVehicleSetup returns the handling defaults written for new vehicles.
func NewVehicleSetup() *Setup {
	s := &Setup{Context: "vehicle"}
	for _, p := range []struct{ method, param, value string }{
		{"PowerMultiplier", "Value", "1.5"},
		{"TractionFactor", "Factor", "1.2"},
		{"RearGrip", "Value", "1.6"},
		{"FrontGrip", "Value", "1.7"},
		{"FrontRoll", "Value", "0.4"},
		{"RearRoll", "Value", "0.3"},
		{"FrontSuspGive", "Value", "0.1"},
		{"RearSuspGive", "Value", "0.08"},
		{"SteerCentreMultiplier", "Value", "2"},
		{"DragCoefficient", "Value", "0.4"},
		{"Mass", "Value", "1300"},
		{"TorqueCurve", "1", "150"},
		{"TorqueCurve", "2", "232"},
	} {
		s.SetParameter(p.method, p.param, p.value)
	}
	return s
}

type StructurePart struct {
	Name      string
	Crushable bool
	Children  []*StructurePart
}

// Structure describes the physical part tree of a vehicle.
type Structure struct {
	Character string
	Root      *StructurePart
}

func (*Structure) AssetKind() Kind            { return KindDocument }
func (*Structure) DocumentKind() DocumentKind { return DocumentStructure }
func (*Structure) supportingDocument()        {}

// NewStructureFromModel mirrors the model's bone tree. Multiple roots are
// gathered under a part named after the model.
func NewStructureFromModel(m *Model) *Structure {
	var build func(h BoneHandle) *StructurePart
	build = func(h BoneHandle) *StructurePart {
		b := m.Bone(h)
		part := &StructurePart{Name: b.Name, Crushable: b.Mesh != nil}
		for _, c := range b.Children {
			part.Children = append(part.Children, build(c))
		}
		return part
	}

	s := &Structure{Character: m.Name}
	roots := m.Roots()
	switch len(roots) {
	case 0:
		s.Root = &StructurePart{Name: m.Name}
	case 1:
		s.Root = build(roots[0])
	default:
		s.Root = &StructurePart{Name: m.Name}
		for _, r := range roots {
			s.Root.Children = append(s.Root.Children, build(r))
		}
	}
	return s
}

type DamageSystem struct {
	Name      string
	Threshold float32
	Parts     []string
}

type SystemsDamage struct {
	Systems []DamageSystem
}

func (*SystemsDamage) AssetKind() Kind            { return KindDocument }
func (*SystemsDamage) DocumentKind() DocumentKind { return DocumentSystemsDamage }
func (*SystemsDamage) supportingDocument()        {}

func NewDefaultSystemsDamage() *SystemsDamage {
	return &SystemsDamage{Systems: []DamageSystem{
		{Name: "engine", Threshold: 0.6},
		{Name: "transmission", Threshold: 0.7},
		{Name: "steering", Threshold: 0.5},
		{Name: "brakes", Threshold: 0.5},
	}}
}

// VehicleSetupConfig is an ordered set of options stored as a key-value document.
type VehicleSetupConfig struct {
	Values *kvdoc.Document
}

func (*VehicleSetupConfig) AssetKind() Kind            { return KindDocument }
func (*VehicleSetupConfig) DocumentKind() DocumentKind { return DocumentVehicleSetupConfig }
func (*VehicleSetupConfig) supportingDocument()        {}

func NewVehicleSetupConfig(vehicleName string) *VehicleSetupConfig {
	values := kvdoc.New()
	// a name with a line break is left out; the fixed keys always pass
	_ = values.Set("VehicleName", vehicleName)
	_ = values.Set("DefaultDriver", "max_damage")
	_ = values.Set("InteriorCamera", "driver")
	return &VehicleSetupConfig{Values: values}
}

type Accessory struct {
	Name  string   `yaml:"name"`
	Type  string   `yaml:"type"`
	Model string   `yaml:"model,omitempty"`
	Mass  float32  `yaml:"mass"`
	Tags  []string `yaml:"tags,omitempty"`
}

func (*Accessory) AssetKind() Kind            { return KindDocument }
func (*Accessory) DocumentKind() DocumentKind { return DocumentAccessory }
func (*Accessory) supportingDocument()        {}
