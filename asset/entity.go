package asset

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type EntityType int

const (
	EntityGeneric EntityType = iota
	EntityDriver
	EntityWheel
	EntityVFX
	EntityPowerup
	EntityAccessory
)

var entityTypeNames = [...]string{"Generic", "Driver", "Wheel", "VFX", "Powerup", "Accessory"}

func (t EntityType) String() string {
	if int(t) < len(entityTypeNames) && t >= 0 {
		return entityTypeNames[t]
	}
	return "Unknown"
}

type EntityAssetType int

const (
	EntityAssetSprite EntityAssetType = iota
	EntityAssetModel
)

func (t EntityAssetType) String() string {
	if t == EntityAssetModel {
		return "Model"
	}
	return "Sprite"
}

// BoneLink is a weak reference to a bone: the entity does not own it and the
// bone may disappear, in which case Resolve returns nil.
type BoneLink struct {
	Model *Model
	Bone  BoneHandle
}

func (l *BoneLink) Resolve() *Bone {
	if l == nil || l.Model == nil {
		return nil
	}
	return l.Model.Bone(l.Bone)
}

type Entity struct {
	ID        string
	Name      string
	Type      EntityType
	AssetType EntityAssetType
	Link      *BoneLink
	Transform mgl32.Mat4
	// Asset is a *Model or a *Texture, nil for a bare sprite.
	Asset     Asset
	Documents []SupportingDocument
}

func NewEntity(name string, t EntityType) *Entity {
	return &Entity{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      t,
		AssetType: EntityAssetSprite,
		Transform: mgl32.Ident4(),
	}
}

// LinkWith ties the entity to a bone and places it at the bone's world transform.
func (e *Entity) LinkWith(m *Model, h BoneHandle) error {
	b := m.Bone(h)
	if b == nil {
		return Validationf("link entity", "bone %d does not exist", h)
	}
	e.Link = &BoneLink{Model: m, Bone: h}
	e.Transform = b.CombinedTransform
	return nil
}

// SetAsset attaches a model (shown as a model) or clears it (shown as a sprite).
func (e *Entity) SetAsset(a Asset) {
	e.Asset = a
	if _, ok := a.(*Model); ok {
		e.AssetType = EntityAssetModel
	} else {
		e.AssetType = EntityAssetSprite
	}
}
