package asset

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/geom"
)

// BoneHandle addresses a bone inside its model. Handles are arena slots:
// they stay valid until the bone is removed and are never reused.
type BoneHandle int

const NoBone BoneHandle = -1

// MaxBones bounds the handles of one model. Handles are never reused, so
// removed bones still count.
const MaxBones = 1 << 20

type Bone struct {
	Handle            BoneHandle
	Name              string
	Transform         mgl32.Mat4
	CombinedTransform mgl32.Mat4
	Mesh              *Mesh
	Parent            BoneHandle
	Children          []BoneHandle
}

func (b *Bone) IsRoot() bool { return b.Parent == NoBone }

type Model struct {
	Name      string
	Meshes    []*Mesh
	Documents map[DocumentKind]SupportingDocument

	bones []*Bone
	roots []BoneHandle
}

func NewModel(name string) *Model {
	return &Model{
		Name:      name,
		Documents: make(map[DocumentKind]SupportingDocument),
	}
}

func (m *Model) AssetKind() Kind { return KindModel }

func (m *Model) valid(h BoneHandle) bool {
	return h >= 0 && int(h) < len(m.bones) && m.bones[h] != nil
}

// Bone returns nil for removed or unknown handles.
func (m *Model) Bone(h BoneHandle) *Bone {
	if !m.valid(h) {
		return nil
	}
	return m.bones[h]
}

// AddBone appends a bone under parent (NoBone makes a new root). A non-nil
// mesh is attached to the bone and added to Meshes if not there yet.
func (m *Model) AddBone(parent BoneHandle, name string, transform mgl32.Mat4, mesh *Mesh) (BoneHandle, error) {
	if parent != NoBone && !m.valid(parent) {
		return NoBone, Validationf("add bone", "parent %d does not exist", parent)
	}
	if mesh != nil && mesh.Bone != NoBone && m.valid(mesh.Bone) && m.bones[mesh.Bone].Mesh == mesh {
		return NoBone, Validationf("add bone", "mesh %q already attached to bone %d", mesh.Name, mesh.Bone)
	}

	if len(m.bones) >= MaxBones {
		return NoBone, Validationf("add bone", "model %q already used %d bone handles", m.Name, MaxBones)
	}

	h := BoneHandle(len(m.bones))
	b := &Bone{
		Handle:    h,
		Name:      name,
		Transform: transform,
		Mesh:      mesh,
		Parent:    parent,
	}
	if parent == NoBone {
		b.CombinedTransform = transform
		m.roots = append(m.roots, h)
	} else {
		p := m.bones[parent]
		p.Children = append(p.Children, h)
		b.CombinedTransform = p.CombinedTransform.Mul4(transform)
	}
	if mesh != nil {
		mesh.Bone = h
		if !m.hasMesh(mesh) {
			m.Meshes = append(m.Meshes, mesh)
		}
	}
	m.bones = append(m.bones, b)
	return h, nil
}

func (m *Model) hasMesh(mesh *Mesh) bool {
	for _, mm := range m.Meshes {
		if mm == mesh {
			return true
		}
	}
	return false
}

func (m *Model) removeMesh(mesh *Mesh) {
	for i, mm := range m.Meshes {
		if mm == mesh {
			m.Meshes = append(m.Meshes[:i], m.Meshes[i+1:]...)
			return
		}
	}
}

func (m *Model) walk(h BoneHandle, fn func(b *Bone)) {
	b := m.bones[h]
	fn(b)
	for _, c := range b.Children {
		m.walk(c, fn)
	}
}

// Bones lists live bones root-first in pre-order.
func (m *Model) Bones() []*Bone {
	bones := make([]*Bone, 0, len(m.bones))
	for _, r := range m.roots {
		m.walk(r, func(b *Bone) { bones = append(bones, b) })
	}
	return bones
}

func (m *Model) BoneCount() int {
	n := 0
	for _, b := range m.bones {
		if b != nil {
			n++
		}
	}
	return n
}

func (m *Model) Roots() []BoneHandle {
	roots := make([]BoneHandle, len(m.roots))
	copy(roots, m.roots)
	return roots
}

func (m *Model) Root() *Bone {
	if len(m.roots) == 0 {
		return nil
	}
	return m.bones[m.roots[0]]
}

func (m *Model) FindBone(name string) *Bone {
	for _, b := range m.Bones() {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func (m *Model) recalculate(h BoneHandle) {
	b := m.bones[h]
	if b.Parent == NoBone {
		b.CombinedTransform = b.Transform
	} else {
		b.CombinedTransform = m.bones[b.Parent].CombinedTransform.Mul4(b.Transform)
	}
	for _, c := range b.Children {
		m.recalculate(c)
	}
}

// RecalculateCombined refreshes every combined transform top-down.
func (m *Model) RecalculateCombined() {
	for _, r := range m.roots {
		m.recalculate(r)
	}
}

func (m *Model) SetTransform(h BoneHandle, transform mgl32.Mat4) error {
	if !m.valid(h) {
		return Validationf("set transform", "bone %d does not exist", h)
	}
	m.bones[h].Transform = transform
	m.recalculate(h)
	return nil
}

func (m *Model) Rename(h BoneHandle, name string) error {
	if !m.valid(h) {
		return Validationf("rename", "bone %d does not exist", h)
	}
	if name == "" {
		return Validationf("rename", "empty name for bone %d", h)
	}
	m.bones[h].Name = name
	return nil
}

func spliceHandles(list []BoneHandle, h BoneHandle, with []BoneHandle) []BoneHandle {
	result := make([]BoneHandle, 0, len(list)+len(with))
	for _, x := range list {
		if x == h {
			result = append(result, with...)
		} else {
			result = append(result, x)
		}
	}
	return result
}

// RemoveBone detaches h and its mesh. Children move to h's parent, taking
// h's place among the siblings, and keep their combined transform.
// The detached bone is returned so it can travel as a change payload.
func (m *Model) RemoveBone(h BoneHandle) (*Bone, error) {
	if !m.valid(h) {
		return nil, Validationf("remove bone", "bone %d does not exist", h)
	}
	b := m.bones[h]

	parentCombined := mgl32.Ident4()
	if b.Parent != NoBone {
		parentCombined = m.bones[b.Parent].CombinedTransform
	}
	if len(b.Children) != 0 && parentCombined.Det() == 0 {
		return nil, Validationf("remove bone", "parent of bone %d has a singular transform", h)
	}
	parentInv := parentCombined.Inv()

	for _, c := range b.Children {
		child := m.bones[c]
		child.Transform = parentInv.Mul4(child.CombinedTransform)
		child.Parent = b.Parent
	}

	if b.Parent == NoBone {
		m.roots = spliceHandles(m.roots, h, b.Children)
	} else {
		p := m.bones[b.Parent]
		p.Children = spliceHandles(p.Children, h, b.Children)
	}
	m.bones[h] = nil

	for _, c := range b.Children {
		m.recalculate(c)
	}
	if b.Mesh != nil {
		m.removeMesh(b.Mesh)
	}

	b.Parent = NoBone
	b.Children = nil
	return b, nil
}

// RemoveBones removes every bone in hs, deepest first, or none of them.
// The removed bones are returned in removal order.
func (m *Model) RemoveBones(hs []BoneHandle) ([]*Bone, error) {
	remove := make(map[BoneHandle]bool, len(hs))
	for _, h := range hs {
		if !m.valid(h) {
			return nil, Validationf("remove bone", "bone %d does not exist", h)
		}
		remove[h] = true
	}

	var order []BoneHandle
	for _, b := range m.Bones() {
		if remove[b.Handle] {
			order = append(order, b.Handle)
		}
	}
	// Deeper bones go first, so each bone still has its original parent
	// when it is removed and only hands surviving descendants over.
	for _, h := range order {
		b := m.bones[h]
		if b.Parent == NoBone || !m.keepsDescendant(h, remove) {
			continue
		}
		if m.bones[b.Parent].CombinedTransform.Det() == 0 {
			return nil, Validationf("remove bone", "parent of bone %d has a singular transform", h)
		}
	}

	removed := make([]*Bone, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		b, err := m.RemoveBone(order[i])
		if err != nil {
			return removed, err
		}
		removed = append(removed, b)
	}
	return removed, nil
}

func (m *Model) keepsDescendant(h BoneHandle, remove map[BoneHandle]bool) bool {
	for _, c := range m.bones[h].Children {
		if !remove[c] || m.keepsDescendant(c, remove) {
			return true
		}
	}
	return false
}

// Ancestors lists parents of h nearest first.
func (m *Model) Ancestors(h BoneHandle) []BoneHandle {
	var result []BoneHandle
	if !m.valid(h) {
		return nil
	}
	for p := m.bones[h].Parent; p != NoBone && len(result) <= len(m.bones); p = m.bones[p].Parent {
		result = append(result, p)
	}
	return result
}

// CheckHierarchy verifies parent/child links, the absence of cycles, and
// CombinedTransform == parent.CombinedTransform * Transform within tolerance.
func (m *Model) CheckHierarchy(tolerance float32) error {
	reached := make(map[BoneHandle]int)
	for _, r := range m.roots {
		if !m.valid(r) {
			return errors.Errorf("root %d does not exist", r)
		}
		if m.bones[r].Parent != NoBone {
			return errors.Errorf("root %d has parent %d", r, m.bones[r].Parent)
		}
		var visit func(h BoneHandle, depth int) error
		visit = func(h BoneHandle, depth int) error {
			if depth > len(m.bones) {
				return errors.Errorf("cycle through bone %d", h)
			}
			reached[h]++
			if reached[h] > 1 {
				return errors.Errorf("bone %d reached twice", h)
			}
			b := m.bones[h]
			for _, c := range b.Children {
				if !m.valid(c) {
					return errors.Errorf("bone %d has removed child %d", h, c)
				}
				if m.bones[c].Parent != h {
					return errors.Errorf("bone %d lists child %d whose parent is %d", h, c, m.bones[c].Parent)
				}
				if err := visit(c, depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		if err := visit(r, 0); err != nil {
			return err
		}
	}

	for h, b := range m.bones {
		if b == nil {
			continue
		}
		if reached[BoneHandle(h)] != 1 {
			return errors.Errorf("bone %d (%q) is not reachable from roots", h, b.Name)
		}
		expected := b.Transform
		if b.Parent != NoBone {
			expected = m.bones[b.Parent].CombinedTransform.Mul4(b.Transform)
		}
		if !b.CombinedTransform.ApproxEqualThreshold(expected, tolerance) {
			return errors.Errorf("bone %d (%q) combined transform is stale", h, b.Name)
		}
	}
	return nil
}

// Munge moves the pivot of h's mesh to the mesh bounding box center without
// changing world-space positions of the mesh or of h's children.
// It returns the applied offset, zero when the mesh is already centered.
func (m *Model) Munge(h BoneHandle) (mgl32.Vec3, error) {
	if !m.valid(h) {
		return mgl32.Vec3{}, Validationf("munge", "bone %d does not exist", h)
	}
	b := m.bones[h]
	if b.Mesh == nil {
		return mgl32.Vec3{}, Validationf("munge", "bone %d (%q) has no mesh", h, b.Name)
	}

	box := b.Mesh.RecalculateBoundingBox()
	if box.Empty {
		return mgl32.Vec3{}, nil
	}
	offset := box.Center
	epsilon := float32(1e-6)
	if size := box.Size().Len(); size > 1 {
		epsilon *= size
	}
	if offset.Len() <= epsilon {
		return mgl32.Vec3{}, nil
	}

	b.Mesh.Translate(offset.Mul(-1))
	b.Mesh.RecalculateBoundingBox()

	b.Transform = b.Transform.Mul4(mgl32.Translate3D(offset.X(), offset.Y(), offset.Z()))
	unshift := mgl32.Translate3D(-offset.X(), -offset.Y(), -offset.Z())
	for _, c := range b.Children {
		child := m.bones[c]
		child.Transform = unshift.Mul4(child.Transform)
	}
	m.recalculate(h)
	return offset, nil
}

// WorldPositions returns h's mesh vertices transformed by its combined transform.
func (m *Model) WorldPositions(h BoneHandle) []mgl32.Vec3 {
	b := m.Bone(h)
	if b == nil || b.Mesh == nil {
		return nil
	}
	var result []mgl32.Vec3
	for _, p := range b.Mesh.Parts {
		for _, v := range p.Vertices {
			result = append(result, mgl32.TransformCoordinate(v.Position, b.CombinedTransform))
		}
	}
	return result
}

// BoundingBox bounds all meshes in world space.
func (m *Model) BoundingBox() geom.BoundingBox {
	box := geom.BoundingBox{Empty: true}
	for _, b := range m.Bones() {
		if b.Mesh != nil {
			box.Merge(b.Mesh.BoundingBox().Transform(b.CombinedTransform))
		}
	}
	return box
}

func (m *Model) FlipUVs(h BoneHandle) error {
	b := m.Bone(h)
	if b == nil {
		return Validationf("flip uvs", "bone %d does not exist", h)
	}
	if b.Mesh == nil {
		return Validationf("flip uvs", "bone %d (%q) has no mesh", h, b.Name)
	}
	b.Mesh.FlipUVs()
	return nil
}

// FlipAxisZ mirrors the model along Z: converts between left and right handed data.
func (m *Model) FlipAxisZ() {
	s := mgl32.Scale3D(1, 1, -1)
	for _, b := range m.bones {
		if b != nil {
			b.Transform = s.Mul4(b.Transform).Mul4(s)
		}
	}
	for _, mesh := range m.Meshes {
		for _, p := range mesh.Parts {
			for i := range p.Vertices {
				p.Vertices[i].Position[2] = -p.Vertices[i].Position[2]
				p.Vertices[i].Normal[2] = -p.Vertices[i].Normal[2]
			}
			p.FlipWinding()
		}
		mesh.RecalculateBoundingBox()
	}
	m.RecalculateCombined()
}

// ApplyRootTransform premultiplies every root transform by t.
func (m *Model) ApplyRootTransform(t mgl32.Mat4) {
	for _, r := range m.roots {
		m.bones[r].Transform = t.Mul4(m.bones[r].Transform)
	}
	m.RecalculateCombined()
}

func (m *Model) Validate() error {
	for _, mesh := range m.Meshes {
		if err := mesh.Validate(); err != nil {
			return err
		}
	}
	if err := m.CheckHierarchy(1e-4); err != nil {
		return Validationf("model", "%q: %v", m.Name, err)
	}
	return nil
}

// Clone deep copies bones and meshes. Supporting documents are shared.
func (m *Model) Clone() (*Model, error) {
	c := NewModel(m.Name)
	meshes := make(map[*Mesh]*Mesh, len(m.Meshes))
	cloneMesh := func(mesh *Mesh) (*Mesh, error) {
		if cm, ok := meshes[mesh]; ok {
			return cm, nil
		}
		cm, err := mesh.clone()
		if err != nil {
			return nil, err
		}
		meshes[mesh] = cm
		return cm, nil
	}

	for _, mesh := range m.Meshes {
		cm, err := cloneMesh(mesh)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't clone mesh %q", mesh.Name)
		}
		c.Meshes = append(c.Meshes, cm)
	}

	c.bones = make([]*Bone, len(m.bones))
	for i, b := range m.bones {
		if b == nil {
			continue
		}
		nb := *b
		nb.Children = append([]BoneHandle(nil), b.Children...)
		if b.Mesh != nil {
			cm, err := cloneMesh(b.Mesh)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't clone mesh %q", b.Mesh.Name)
			}
			nb.Mesh = cm
		}
		c.bones[i] = &nb
	}
	c.roots = append([]BoneHandle(nil), m.roots...)

	for k, d := range m.Documents {
		c.Documents[k] = d
	}
	return c, nil
}
