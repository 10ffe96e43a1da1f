package web

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/mux"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/formats/texture"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/scene"
	"github.com/mogaika/assetpipe/utils"
	"github.com/mogaika/assetpipe/webutils"
)

type codecJson struct {
	Name       string
	Extensions []string
	Kind       string
	Handedness string
}

func codecInfo(c pipeline.Codec) codecJson {
	return codecJson{Name: c.Name(), Extensions: c.Extensions(), Kind: c.Kind().String(), Handedness: c.Handedness().String()}
}

type boneJson struct {
	Key       int
	Handle    asset.BoneHandle
	Name      string
	Parent    asset.BoneHandle
	Children  []asset.BoneHandle
	Transform mgl32.Mat4
	Mesh      string `json:",omitempty"`
	Faces     int    `json:",omitempty"`
}

type modelJson struct {
	Index     int
	Name      string
	Bones     []boneJson
	Documents []string
}

type entityJson struct {
	ID        string
	Name      string
	Type      string
	AssetType string
	Bone      string `json:",omitempty"`
}

type materialJson struct {
	Name        string
	Texture     string
	Placeholder bool
}

type sceneJson struct {
	CoordinateSystem string
	Models           []modelJson
	Entities         []entityJson
	Materials        []materialJson
	Textures         []string
	SelectedModel    int
	SelectedBone     asset.BoneHandle
}

func modelInfo(index int, m *asset.Model, withBones bool) modelJson {
	mj := modelJson{Index: index, Name: m.Name}
	for kind := range m.Documents {
		mj.Documents = append(mj.Documents, kind.String())
	}
	sort.Strings(mj.Documents)
	if !withBones {
		return mj
	}
	for _, b := range m.Bones() {
		bj := boneJson{
			Key:       scene.ModelBoneKey(index, b.Handle),
			Handle:    b.Handle,
			Name:      b.Name,
			Parent:    b.Parent,
			Children:  b.Children,
			Transform: b.Transform,
		}
		if b.Mesh != nil {
			bj.Mesh = b.Mesh.Name
			bj.Faces = b.Mesh.FaceCount()
		}
		mj.Bones = append(mj.Bones, bj)
	}
	return mj
}

// model parses the {model} route variable. Callers hold the lock.
func (s *Server) model(r *http.Request) (int, *asset.Model, error) {
	raw := mux.Vars(r)["model"]
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil, asset.Validationf("model", "%q is not an index", raw)
	}
	m := s.scene.Model(i)
	if m == nil {
		return 0, nil, asset.Validationf("model", "model %d does not exist", i)
	}
	return i, m, nil
}

func (s *Server) HandlerFormats(w http.ResponseWriter, r *http.Request) {
	var result struct {
		Importers []codecJson
		Exporters []codecJson
	}
	for _, i := range s.scene.Registry.Importers() {
		result.Importers = append(result.Importers, codecInfo(i))
	}
	for _, e := range s.scene.Registry.Exporters() {
		result.Exporters = append(result.Exporters, codecInfo(e))
	}
	webutils.WriteJson(w, result)
}

func (s *Server) HandlerScene(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	result := sceneJson{CoordinateSystem: s.scene.CoordinateSystem().String()}
	result.SelectedModel, result.SelectedBone = s.scene.Selection()
	for i, m := range s.scene.Models() {
		result.Models = append(result.Models, modelInfo(i, m, false))
	}
	for _, e := range s.scene.Entities() {
		ej := entityJson{ID: e.ID, Name: e.Name, Type: e.Type.String(), AssetType: e.AssetType.String()}
		if b := e.Link.Resolve(); b != nil {
			ej.Bone = b.Name
		}
		result.Entities = append(result.Entities, ej)
	}
	for _, m := range s.scene.Materials().Entries() {
		mj := materialJson{Name: m.Name, Texture: m.TextureName()}
		if m.Texture != nil {
			mj.Placeholder = m.Texture.Placeholder
		}
		result.Materials = append(result.Materials, mj)
	}
	result.Textures = s.scene.Textures().Names()
	webutils.WriteJson(w, result)
}

func (s *Server) HandlerModel(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	i, m, err := s.model(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, modelInfo(i, m, true))
}

func (s *Server) HandlerLoad(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolve(r.FormValue("path"))
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	kind := asset.KindModel
	if k := r.FormValue("kind"); k != "" {
		if kind, err = asset.ParseKind(k); err != nil {
			webutils.WriteError(w, asset.Validationf("load", "%v", err))
			return
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	var opts []scene.LoadOption
	if r.FormValue("reload") != "" {
		opts = append(opts, scene.ForceReload())
	}
	a, err := s.scene.LoadPath(path, kind, true, opts...)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]string{"loaded": a.AssetKind().String()})
}

func exportSettings(r *http.Request) (*pipeline.Settings, error) {
	bag := pipeline.NewBag()
	if h := r.FormValue("handed"); h != "" {
		bag.Set(pipeline.SettingHanded, h)
	}
	if sc := r.FormValue("scale"); sc != "" {
		f, err := strconv.ParseFloat(sc, 32)
		if err != nil {
			return nil, asset.Validationf("settings", "scale %q is not a number", sc)
		}
		bag.Set(pipeline.SettingScale, f)
	}
	for key, values := range r.URL.Query() {
		if key != "path" && key != "handed" && key != "scale" && len(values) != 0 {
			bag.Set(key, values[0])
		}
	}
	return pipeline.SettingsFromBag(bag)
}

func (s *Server) HandlerSave(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolve(r.FormValue("path"))
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	settings, err := exportSettings(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	_, m, err := s.model(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if err := s.scene.Save(path, m, settings); err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]string{"saved": path})
}

func (s *Server) HandlerReset(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.scene.Reset()
	webutils.WriteJson(w, map[string]bool{"reset": true})
}

func (s *Server) HandlerProcess(w http.ResponseWriter, r *http.Request) {
	root, err := s.resolve(r.FormValue("root"))
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	pattern := r.FormValue("pattern")
	if pattern == "" {
		pattern = "*"
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	result, err := s.scene.ProcessAll(r.Context(), root, pattern)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	errs := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		errs[i] = e.Error()
	}
	webutils.WriteJson(w, map[string]interface{}{
		"success": result.Success,
		"failed":  result.Failed,
		"errors":  errs,
	})
}

func (s *Server) HandlerBoneAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key, err := strconv.Atoi(vars["key"])
	if err != nil {
		webutils.WriteError(w, asset.Validationf("bone", "key '%s' is not integer", vars["key"]))
		return
	}

	var transform mgl32.Mat4
	if vars["action"] == "transform" {
		if err := webutils.ReadJson(r, &transform); err != nil {
			webutils.WriteError(w, asset.Validationf("transform", "%v", err))
			return
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	switch vars["action"] {
	case "delete":
		err = s.scene.DeleteBone(key)
	case "munge":
		err = s.scene.MungeBone(key)
	case "flipuvs":
		err = s.scene.FlipUVs(key)
	case "rename":
		err = s.scene.RenameBone(key, r.FormValue("name"))
	case "transform":
		err = s.scene.TransformBone(key, transform)
	case "select":
		err = s.scene.Select(key)
	default:
		err = asset.Validationf("bone", "unknown action %q", vars["action"])
	}
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]int{"key": key})
}

func (s *Server) vehicleOptions(r *http.Request) scene.VehicleOptions {
	o := s.Vehicle
	override := func(dst *string, key string) {
		if v := r.FormValue(key); v != "" {
			*dst = v
		}
	}
	override(&o.Name, "name")
	override(&o.PrettyName, "pretty")
	override(&o.Author, "author")
	override(&o.Website, "website")
	override(&o.TextureFormat, "textures")
	if r.FormValue("package") != "" {
		o.Package = true
	}
	return o
}

func (s *Server) HandlerVehicleAction(w http.ResponseWriter, r *http.Request) {
	modelIndex := 0
	if v := r.FormValue("model"); v != "" {
		var err error
		if modelIndex, err = strconv.Atoi(v); err != nil {
			webutils.WriteError(w, asset.Validationf("vehicle", "model '%s' is not integer", v))
			return
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	var result interface{}
	var err error
	switch action := mux.Vars(r)["action"]; action {
	case "load", "save":
		var dir string
		if dir, err = s.resolve(r.FormValue("dir")); err != nil {
			break
		}
		if action == "load" {
			var m *asset.Model
			if m, err = s.scene.LoadVehicle(dir); err == nil {
				result = m.Name
			}
		} else {
			err = s.scene.SaveVehicle(dir, s.vehicleOptions(r))
			result = dir
		}
	case "convert-actors":
		result, err = s.scene.ConvertActorsToEntities(modelIndex)
	case "remove-lod":
		result, err = s.scene.RemoveLOD(modelIndex)
	case "link-entities":
		var linked []*asset.Entity
		linked, err = s.scene.LinkVehicleEntities(modelIndex)
		result = len(linked)
	default:
		err = asset.Validationf("vehicle", "unknown action %q", action)
	}
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]interface{}{"result": result})
}

func (s *Server) HandlerDumpModel(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, m, err := s.model(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	utils.FDump(w, m)
}

func (s *Server) HandlerDumpModelJson(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	i, m, err := s.model(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJsonFile(w, modelInfo(i, m, true), m.Name)
}

func (s *Server) HandlerTexture(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	t := s.scene.Textures().Get(name)
	if t == nil {
		webutils.WriteError(w, &asset.NotFoundError{Resource: "texture " + name})
		return
	}
	var buf bytes.Buffer
	if err := texture.Encode(&buf, t.Image, ".png"); err != nil {
		webutils.WriteError(w, fmt.Errorf("Error encoding %q: %v", name, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	webutils.WriteResult(w, buf.Bytes())
}

func (s *Server) HandlerWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	s.hub.Serve(conn)
}
