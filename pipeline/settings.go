package pipeline

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/assetpipe/asset"
)

// Bag is an ordered name to value map of exporter options.
type Bag struct {
	keys   []string
	values map[string]interface{}
}

func NewBag() *Bag {
	return &Bag{values: make(map[string]interface{})}
}

func (b *Bag) Set(name string, value interface{}) *Bag {
	if _, ok := b.values[name]; !ok {
		b.keys = append(b.keys, name)
	}
	b.values[name] = value
	return b
}

func (b *Bag) Get(name string) (interface{}, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b.values[name]
	return v, ok
}

func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.keys...)
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

func (b *Bag) StringOr(name, def string) string {
	if v, ok := b.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func (b *Bag) BoolOr(name string, def bool) bool {
	if v, ok := b.Get(name); ok {
		if x, ok := v.(bool); ok {
			return x
		}
	}
	return def
}

func (b *Bag) IntOr(name string, def int) int {
	if v, ok := b.Get(name); ok {
		if x, ok := v.(int); ok {
			return x
		}
	}
	return def
}

const (
	SettingScale     = "Scale"
	SettingTransform = "Transform"
	SettingHanded    = "Handed"
)

// Settings are the typed exporter options. The zero value is not valid,
// use DefaultSettings.
type Settings struct {
	Scale     mgl32.Vec3
	Transform mgl32.Mat4
	// Handed overrides the codec's own convention when not Native.
	Handed asset.CoordinateSystem
	// Extras holds exporter specific options, unknown ones are ignored.
	Extras *Bag
}

func DefaultSettings() *Settings {
	return &Settings{
		Scale:     mgl32.Vec3{1, 1, 1},
		Transform: mgl32.Ident4(),
		Handed:    asset.Native,
		Extras:    NewBag(),
	}
}

// SettingsFromBag picks the typed options out of b. A recognized option of the
// wrong type is a ValidationError, everything else lands in Extras.
func SettingsFromBag(b *Bag) (*Settings, error) {
	s := DefaultSettings()
	for _, name := range b.Keys() {
		v, _ := b.Get(name)
		switch name {
		case SettingScale:
			switch x := v.(type) {
			case mgl32.Vec3:
				s.Scale = x
			case float32:
				s.Scale = mgl32.Vec3{x, x, x}
			case float64:
				f := float32(x)
				s.Scale = mgl32.Vec3{f, f, f}
			default:
				return nil, asset.Validationf("settings", "%s must be a Vec3, got %T", name, v)
			}
		case SettingTransform:
			m, ok := v.(mgl32.Mat4)
			if !ok {
				return nil, asset.Validationf("settings", "%s must be a Mat4, got %T", name, v)
			}
			s.Transform = m
		case SettingHanded:
			switch x := v.(type) {
			case asset.CoordinateSystem:
				s.Handed = x
			case string:
				cs, err := asset.ParseCoordinateSystem(x)
				if err != nil {
					return nil, asset.Validationf("settings", "%v", err)
				}
				s.Handed = cs
			default:
				return nil, asset.Validationf("settings", "%s must be a CoordinateSystem, got %T", name, v)
			}
		default:
			s.Extras.Set(name, v)
		}
	}
	return s, nil
}

// Matrix is Transform applied after Scale.
func (s *Settings) Matrix() mgl32.Mat4 {
	return s.Transform.Mul4(mgl32.Scale3D(s.Scale.X(), s.Scale.Y(), s.Scale.Z()))
}

func (s *Settings) IsIdentity() bool {
	return s.Matrix() == mgl32.Ident4()
}

func settingsOrDefault(s *Settings) *Settings {
	if s == nil {
		return DefaultSettings()
	}
	if s.Extras == nil {
		c := *s
		c.Extras = NewBag()
		return &c
	}
	return s
}
