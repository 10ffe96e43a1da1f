package scene

import (
	"sync"

	"github.com/mogaika/assetpipe/asset"
)

type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeDelete
	ChangeTransform
	ChangeRename
	ChangeMunge
)

var changeKindNames = [...]string{"Add", "Delete", "Transform", "Rename", "Munge"}

func (k ChangeKind) String() string {
	if k >= 0 && int(k) < len(changeKindNames) {
		return changeKindNames[k]
	}
	return "Unknown"
}

// SceneKey targets the whole scene rather than a bone.
const SceneKey = -1

// KeyMultiplier separates the model index from the bone handle in a key.
// Model.AddBone keeps handles below it.
const KeyMultiplier = asset.MaxBones

func ModelBoneKey(model int, bone asset.BoneHandle) int {
	return model*KeyMultiplier + int(bone)
}

// SplitKey reverses ModelBoneKey. SceneKey splits into (-1, NoBone).
func SplitKey(key int) (int, asset.BoneHandle) {
	if key < 0 {
		return -1, asset.NoBone
	}
	return key / KeyMultiplier, asset.BoneHandle(key % KeyMultiplier)
}

// Observers implement any subset of the interfaces below and are notified
// synchronously on the goroutine that mutates the scene.

type ChangeObserver interface {
	OnChange(kind ChangeKind, key int, payload interface{})
}

type ProgressObserver interface {
	OnProgress(status string)
}

type ErrorObserver interface {
	OnError(err error)
}

// WarningObserver receives recoverable codec problems, e.g. missing textures.
type WarningObserver interface {
	OnWarning(err error)
}

// ObserverFuncs adapts plain functions; nil fields are skipped.
type ObserverFuncs struct {
	Change   func(kind ChangeKind, key int, payload interface{})
	Progress func(status string)
	Error    func(err error)
	Warning  func(err error)
}

func (f ObserverFuncs) OnChange(kind ChangeKind, key int, payload interface{}) {
	if f.Change != nil {
		f.Change(kind, key, payload)
	}
}

func (f ObserverFuncs) OnProgress(status string) {
	if f.Progress != nil {
		f.Progress(status)
	}
}

func (f ObserverFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f ObserverFuncs) OnWarning(err error) {
	if f.Warning != nil {
		f.Warning(err)
	}
}

type subscription struct {
	id       int
	observer interface{}
}

type observers struct {
	lock   sync.Mutex
	nextId int
	list   []subscription
}

func (o *observers) subscribe(observer interface{}) func() {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.nextId++
	id := o.nextId
	o.list = append(o.list, subscription{id: id, observer: observer})
	return func() {
		o.lock.Lock()
		defer o.lock.Unlock()
		for i, s := range o.list {
			if s.id == id {
				o.list = append(o.list[:i:i], o.list[i+1:]...)
				return
			}
		}
	}
}

func (o *observers) snapshot() []interface{} {
	o.lock.Lock()
	defer o.lock.Unlock()
	result := make([]interface{}, len(o.list))
	for i, s := range o.list {
		result[i] = s.observer
	}
	return result
}

// Subscribe registers an observer and returns a func that removes it.
func (m *Manager) Subscribe(observer interface{}) func() {
	return m.observers.subscribe(observer)
}

// Change is the single mutation notification. The payload is relayed untouched.
func (m *Manager) Change(kind ChangeKind, key int, payload interface{}) {
	for _, o := range m.observers.snapshot() {
		if co, ok := o.(ChangeObserver); ok {
			co.OnChange(kind, key, payload)
		}
	}
}

// Progress sends a status line to progress observers.
func (m *Manager) Progress(status string) {
	for _, o := range m.observers.snapshot() {
		if po, ok := o.(ProgressObserver); ok {
			po.OnProgress(status)
		}
	}
}

// fail reports err to observers and returns it.
func (m *Manager) fail(err error) error {
	for _, o := range m.observers.snapshot() {
		if eo, ok := o.(ErrorObserver); ok {
			eo.OnError(err)
		}
	}
	return err
}

func (m *Manager) warn(warnings []error) {
	if len(warnings) == 0 {
		return
	}
	list := m.observers.snapshot()
	for _, w := range warnings {
		for _, o := range list {
			if wo, ok := o.(WarningObserver); ok {
				wo.OnWarning(w)
			}
		}
	}
}
