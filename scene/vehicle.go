package scene

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/kvdoc"
	"github.com/mogaika/assetpipe/pipeline"
)

const (
	VehicleModelFile  = "car.cnt"
	VehicleSidecar    = "car.flump"
	VehicleMaterials  = "car.mat"
	actorPrefix       = "&"
	powerupPrefix     = "&£"
	defaultTextureExt = "tif"
)

// vehicleDocuments are loaded and saved next to car.cnt, in this order.
var vehicleDocuments = []struct {
	file string
	kind asset.DocumentKind
}{
	{"setup.lol", asset.DocumentSetup},
	{"Structure.xml", asset.DocumentStructure},
	{"SystemsDamage.xml", asset.DocumentSystemsDamage},
	{"vehicle_setup.cfg", asset.DocumentVehicleSetupConfig},
}

func (m *Manager) modelOrFail(op string, i int) (*asset.Model, error) {
	model := m.Model(i)
	if model == nil {
		return nil, m.fail(asset.Validationf(op, "model %d does not exist", i))
	}
	return model, nil
}

// runeSlice returns up to n runes of s starting at rune offset from.
func runeSlice(s string, from, n int) string {
	for i := 0; i < from && s != ""; i++ {
		_, size := utf8.DecodeRuneInString(s)
		s = s[size:]
	}
	end := 0
	for i := 0; i < n && end < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[:end]
}

// ConvertActorsToEntities turns bones named "&..." into entities placed at
// the bone's world transform and removes the bones. "&£NN" bones become
// powerups, other actors become accessories. One Munge change is fired.
func (m *Manager) ConvertActorsToEntities(i int) (int, error) {
	model, err := m.modelOrFail("convert actors", i)
	if err != nil {
		return 0, err
	}

	bones := model.Bones()
	var converted []*asset.Entity
	var actors []asset.BoneHandle
	for j := len(bones) - 1; j >= 0; j-- {
		b := bones[j]
		if !strings.HasPrefix(b.Name, actorPrefix) {
			continue
		}

		var e *asset.Entity
		if strings.HasPrefix(b.Name, powerupPrefix) {
			key := runeSlice(b.Name, 2, 2)
			e = asset.NewEntity("pup_"+key, asset.EntityPowerup)
			e.ID = fmt.Sprintf("errol_B00BIE%s_%03d", key, b.Handle)
		} else {
			e = asset.NewEntity("C2_"+runeSlice(b.Name, 1, 2), asset.EntityAccessory)
			if b.Mesh != nil && utf8.RuneCountInString(b.Mesh.Name) > 3 {
				e.Name = "C2_" + runeSlice(b.Mesh.Name, 3, len(b.Mesh.Name))
			}
			e.ID = fmt.Sprintf("errol_HEAD00%s_%03d", runeSlice(b.Name, 1, 2), b.Handle)
		}
		e.Transform = b.CombinedTransform
		converted = append(converted, e)
		actors = append(actors, b.Handle)
	}

	if _, err := model.RemoveBones(actors); err != nil {
		return 0, m.fail(err)
	}
	m.entities = append(m.entities, converted...)
	m.Change(ChangeMunge, SceneKey, converted)
	return len(converted), nil
}

// isExtraLOD reports whether name carries a level of detail other than 1,
// e.g. "body_LOD_2" or "bodyLOD3".
func isExtraLOD(name string) bool {
	name = strings.ReplaceAll(name, "_", "")
	at := strings.Index(name, "LOD")
	if at < 0 || at+3 >= len(name) {
		return false
	}
	return name[at+3] != '1'
}

// RemoveLOD drops every bone whose LOD level is not 1 and fires one Munge change.
func (m *Manager) RemoveLOD(i int) (int, error) {
	model, err := m.modelOrFail("remove lod", i)
	if err != nil {
		return 0, err
	}

	var lods []asset.BoneHandle
	for _, b := range model.Bones() {
		if isExtraLOD(b.Name) {
			lods = append(lods, b.Handle)
		}
	}
	removed, err := model.RemoveBones(lods)
	if err != nil {
		return 0, m.fail(err)
	}
	m.Change(ChangeMunge, SceneKey, nil)
	return len(removed), nil
}

func vehicleEntityType(name string) (asset.EntityType, bool) {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "driver"):
		return asset.EntityDriver, true
	case strings.HasPrefix(name, "wheel_"):
		return asset.EntityWheel, true
	case strings.HasPrefix(name, "vfx_"):
		return asset.EntityVFX, true
	}
	return 0, false
}

// LinkVehicleEntities creates an entity linked to every driver, wheel_ and
// vfx_ bone. The bones stay in place. One Add change carries the new entities.
func (m *Manager) LinkVehicleEntities(i int) ([]*asset.Entity, error) {
	model, err := m.modelOrFail("link entities", i)
	if err != nil {
		return nil, err
	}

	var linked []*asset.Entity
	for _, b := range model.Bones() {
		t, ok := vehicleEntityType(b.Name)
		if !ok {
			continue
		}
		e := asset.NewEntity(b.Name, t)
		if err := e.LinkWith(model, b.Handle); err != nil {
			return nil, m.fail(err)
		}
		linked = append(linked, e)
	}

	m.entities = append(m.entities, linked...)
	m.Change(ChangeAdd, SceneKey, linked)
	return linked, nil
}

// SetWheelPreview shows wheel on every wheel entity, or reverts them to
// sprites when wheel is nil.
func (m *Manager) SetWheelPreview(wheel *asset.Model) {
	for _, e := range m.entities {
		if e.Type != asset.EntityWheel {
			continue
		}
		if wheel == nil {
			e.SetAsset(nil)
		} else {
			e.SetAsset(wheel)
		}
	}
	m.Change(ChangeMunge, SceneKey, wheel)
}

// LoadVehicle resets the scene and loads dir/car.cnt with whatever
// supporting documents exist next to it, then links vehicle entities.
func (m *Manager) LoadVehicle(dir string) (*asset.Model, error) {
	path := filepath.Join(dir, VehicleModelFile)
	imp, err := m.Registry.ImporterFor(path, asset.KindModel)
	if err != nil {
		return nil, m.fail(err)
	}

	m.Reset()
	model, err := Load[*asset.Model](m, imp, VehicleModelFile, dir, true)
	if err != nil {
		return nil, err
	}
	if err := m.SelectModel(m.ModelIndex(model)); err != nil {
		return nil, err
	}

	for _, doc := range vehicleDocuments {
		docPath := filepath.Join(dir, doc.file)
		if _, err := os.Stat(docPath); err != nil {
			continue
		}
		if _, err := m.LoadPath(docPath, asset.KindDocument, true); err != nil {
			return model, err
		}
	}

	if _, err := m.LinkVehicleEntities(m.ModelIndex(model)); err != nil {
		return model, err
	}
	m.Progress(fmt.Sprintf("Vehicle %q loaded", filepath.Base(filepath.Clean(dir))))
	return model, nil
}

type VehicleOptions struct {
	// Name defaults to the directory name.
	Name       string
	PrettyName string
	Author     string
	Website    string
	// TextureFormat is an image extension without the dot, tif by default.
	TextureFormat string
	// Package writes <Name>.zip with the whole directory.
	Package bool
}

// SaveVehicle writes the selected model (or the first one) as a vehicle
// directory: car.cnt, one texture file per texture name, the material list,
// supporting documents that do not exist yet, the car.flump sidecar and
// optionally a zip package. Generated documents are attached to the model.
func (m *Manager) SaveVehicle(dir string, o VehicleOptions) error {
	model := m.SelectedModel()
	if model == nil {
		model = m.Model(0)
	}
	if model == nil {
		return m.fail(asset.Validationf("save vehicle", "scene has no model"))
	}
	if o.Name == "" {
		o.Name = filepath.Base(filepath.Clean(dir))
	}
	if o.TextureFormat == "" {
		o.TextureFormat = defaultTextureExt
	}

	sidecar := [][2]string{{"car", o.Name}, {"pretty.name", o.PrettyName}, {"author", o.Author}, {"website", o.Website}}
	for _, kv := range sidecar {
		if err := kvdoc.Check(kv[0], kv[1]); err != nil {
			return m.fail(asset.Validationf("save vehicle", "%v", err))
		}
	}

	if err := os.MkdirAll(dir, 0777); err != nil {
		return m.fail(asset.NewIOError("mkdir", dir, err))
	}
	flump, err := kvdoc.Load(filepath.Join(dir, VehicleSidecar))
	if err != nil {
		return m.fail(err)
	}
	if _, ok := flump.Get("pretty.name"); !ok && o.PrettyName == "" {
		sidecar[1][1] = o.Name
	}
	for _, kv := range sidecar {
		if kv[1] == "" && kv[0] != "car" {
			continue
		}
		if err := flump.Set(kv[0], kv[1]); err != nil {
			return m.fail(asset.Validationf("save vehicle", "%v", err))
		}
	}

	if err := m.Save(filepath.Join(dir, VehicleModelFile), model, nil); err != nil {
		return err
	}
	m.Progress("Meshes")

	written := make(map[string]bool)
	for _, mat := range m.materials.Entries() {
		t := mat.Texture
		if t == nil || t.Placeholder || written[t.Name] {
			continue
		}
		written[t.Name] = true
		path := filepath.Join(dir, t.Name+"."+o.TextureFormat)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := m.Save(path, t, nil); err != nil {
			return err
		}
	}
	m.Progress("Textures")

	if m.materials.Len() != 0 {
		if err := m.Save(filepath.Join(dir, VehicleMaterials), m.materials, nil); err != nil {
			return err
		}
	}
	m.Progress("Materials")

	if err := m.savePaperwork(dir, model, o.Name); err != nil {
		return err
	}
	m.Progress("Paperwork")

	if err := flump.Save(filepath.Join(dir, VehicleSidecar)); err != nil {
		return m.fail(asset.NewIOError("save", filepath.Join(dir, VehicleSidecar), err))
	}

	if o.Package {
		zipPath := filepath.Join(dir, o.Name+".zip")
		if err := packageDirectory(dir, o.Name, zipPath); err != nil {
			return m.fail(err)
		}
		m.Progress("Package")
	}

	m.Progress(fmt.Sprintf("Vehicle '%s' saved successfully!", o.Name))
	return nil
}

func (m *Manager) savePaperwork(dir string, model *asset.Model, name string) error {
	for _, doc := range vehicleDocuments {
		path := filepath.Join(dir, doc.file)
		if _, err := os.Stat(path); err == nil {
			continue
		}

		d, ok := model.Documents[doc.kind]
		if !ok {
			switch doc.kind {
			case asset.DocumentSetup:
				d = asset.NewVehicleSetup()
			case asset.DocumentStructure:
				d = asset.NewStructureFromModel(model)
			case asset.DocumentSystemsDamage:
				d = asset.NewDefaultSystemsDamage()
			case asset.DocumentVehicleSetupConfig:
				d = asset.NewVehicleSetupConfig(name)
			}
			model.Documents[doc.kind] = d
		}

		s := pipeline.DefaultSettings()
		if doc.kind == asset.DocumentSetup {
			s.Extras.Set("Context", "vehicle")
		}
		if err := m.Save(path, d, s); err != nil {
			return err
		}
	}
	return nil
}

// packageDirectory zips every file of dir except the archive itself under
// the folder prefix.
func packageDirectory(dir, prefix, zipPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(zipPath), ".package-*")
	if err != nil {
		return asset.NewIOError("create", zipPath, err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == zipPath || path == tmp.Name() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(filepath.Join(prefix, rel)))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if walkErr != nil {
		tmp.Close()
		return errors.Wrapf(walkErr, "Can't package %q", dir)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return asset.NewIOError("write", zipPath, err)
	}
	if err := tmp.Close(); err != nil {
		return asset.NewIOError("write", zipPath, err)
	}
	if err := os.Rename(tmp.Name(), zipPath); err != nil {
		return asset.NewIOError("rename", zipPath, err)
	}
	return nil
}
