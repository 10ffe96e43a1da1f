package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
)

// ErrCanceled is returned by an edit the user declined. It fires nothing.
var ErrCanceled = errors.New("edit canceled")

// EditFunc mutates the model and describes the change to announce.
type EditFunc func(model *asset.Model, bone asset.BoneHandle) (ChangeKind, interface{}, error)

func (m *Manager) target(op string, key int) (*asset.Model, asset.BoneHandle, error) {
	mi, h := SplitKey(key)
	model := m.Model(mi)
	if model == nil {
		return nil, asset.NoBone, asset.Validationf(op, "model %d does not exist", mi)
	}
	if model.Bone(h) == nil {
		return nil, asset.NoBone, asset.Validationf(op, "bone %d does not exist in %q", h, model.Name)
	}
	return model, h, nil
}

// Edit runs fn on the bone addressed by key and fires exactly one change when
// it succeeds. fn must leave the model untouched when it fails.
func (m *Manager) Edit(op string, key int, fn EditFunc) error {
	model, h, err := m.target(op, key)
	if err != nil {
		return m.fail(err)
	}
	kind, payload, err := fn(model, h)
	if errors.Is(err, ErrCanceled) {
		return ErrCanceled
	}
	if err != nil {
		return m.fail(err)
	}
	m.Change(kind, key, payload)
	return nil
}

// AddBone appends a bone to model i. The change targets the new bone.
func (m *Manager) AddBone(i int, parent asset.BoneHandle, name string, transform mgl32.Mat4, mesh *asset.Mesh) (asset.BoneHandle, error) {
	model := m.Model(i)
	if model == nil {
		return asset.NoBone, m.fail(asset.Validationf("add bone", "model %d does not exist", i))
	}
	h, err := model.AddBone(parent, name, transform, mesh)
	if err != nil {
		return asset.NoBone, m.fail(err)
	}
	m.Change(ChangeAdd, ModelBoneKey(i, h), model.Bone(h))
	return h, nil
}

// DeleteBone removes the bone, re-homing its children, then fires Delete
// with the detached bone as payload.
func (m *Manager) DeleteBone(key int) error {
	return m.Edit("delete bone", key, func(model *asset.Model, h asset.BoneHandle) (ChangeKind, interface{}, error) {
		removed, err := model.RemoveBone(h)
		if err != nil {
			return 0, nil, err
		}
		if mi, _ := SplitKey(key); mi == m.selectedModel && h == m.selectedBone {
			m.selectedBone = asset.NoBone
		}
		return ChangeDelete, removed, nil
	})
}

func (m *Manager) RenameBone(key int, name string) error {
	return m.Edit("rename bone", key, func(model *asset.Model, h asset.BoneHandle) (ChangeKind, interface{}, error) {
		return ChangeRename, name, model.Rename(h, name)
	})
}

func (m *Manager) TransformBone(key int, transform mgl32.Mat4) error {
	return m.Edit("transform bone", key, func(model *asset.Model, h asset.BoneHandle) (ChangeKind, interface{}, error) {
		return ChangeTransform, transform, model.SetTransform(h, transform)
	})
}

// MungeBone re-pivots the bone's mesh on its bounding box center. The payload
// is the applied offset.
func (m *Manager) MungeBone(key int) error {
	return m.Edit("munge bone", key, func(model *asset.Model, h asset.BoneHandle) (ChangeKind, interface{}, error) {
		offset, err := model.Munge(h)
		return ChangeMunge, offset, err
	})
}

func (m *Manager) FlipUVs(key int) error {
	return m.Edit("flip uvs", key, func(model *asset.Model, h asset.BoneHandle) (ChangeKind, interface{}, error) {
		return ChangeMunge, nil, model.FlipUVs(h)
	})
}

// EditSelected applies fn to the bone under the cursor.
func (m *Manager) EditSelected(op string, fn EditFunc) error {
	if m.selectedModel < 0 || m.selectedBone == asset.NoBone {
		return m.fail(asset.Validationf(op, "no bone selected"))
	}
	return m.Edit(op, ModelBoneKey(m.selectedModel, m.selectedBone), fn)
}
