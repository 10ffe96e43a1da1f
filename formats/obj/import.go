package obj

import (
	"bufio"
	"bytes"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

type Importer struct {
	pipeline.Info
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	data, err := pipeline.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := NewFromData(name, data)
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	pipeline.ToScene(ctx, i, m)
	return m, nil
}

type corner struct {
	v, vt, vn int
}

func (c corner) less(o corner) bool {
	if c.v != o.v {
		return c.v < o.v
	}
	if c.vt != o.vt {
		return c.vt < o.vt
	}
	return c.vn < o.vn
}

// part collects triangle corners. Vertices are created in build, ordered by
// their position index so that a file written part by part keeps its order.
type part struct {
	material string
	corners  []corner
}

type object struct {
	name  string
	parts []*part
}

func (o *object) faceCount() int {
	n := 0
	for _, p := range o.parts {
		n += len(p.corners) / 3
	}
	return n
}

type parser struct {
	positions []mgl32.Vec3
	uvs       []mgl32.Vec2
	normals   []mgl32.Vec3

	objects  []*object
	current  *object
	material string
	defName  string
}

func (p *parser) object() *object {
	if p.current == nil {
		p.startObject(p.defName)
	}
	return p.current
}

func (p *parser) startObject(name string) {
	if p.current != nil && p.current.faceCount() == 0 {
		p.current.name = name
		return
	}
	p.current = &object{name: name}
	p.objects = append(p.objects, p.current)
}

func (o *object) usePart(material string) *part {
	if len(o.parts) != 0 {
		last := o.parts[len(o.parts)-1]
		if last.material == material {
			return last
		}
	}
	pt := &part{material: material}
	o.parts = append(o.parts, pt)
	return pt
}

func (p *parser) build(pt *part) *asset.MeshPart {
	unique := make([]corner, 0, len(pt.corners))
	seen := make(map[corner]bool, len(pt.corners))
	for _, c := range pt.corners {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].less(unique[j]) })

	mp := asset.NewMeshPart(pt.material)
	index := make(map[corner]uint32, len(unique))
	for _, c := range unique {
		var normal mgl32.Vec3
		var uv mgl32.Vec2
		if c.vn >= 0 {
			normal = p.normals[c.vn]
		}
		if c.vt >= 0 {
			uv = p.uvs[c.vt]
		}
		index[c] = mp.AddVertex(asset.NewVertex(p.positions[c.v], normal, uv))
	}
	for i := 0; i+2 < len(pt.corners); i += 3 {
		mp.AddTriangle(index[pt.corners[i]], index[pt.corners[i+1]], index[pt.corners[i+2]])
	}
	return mp
}

// resolve turns a 1-based or negative relative OBJ index into a 0-based one.
func resolve(s string, count int) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "Bad index %q", s)
	}
	if idx < 0 {
		idx += count
	} else {
		idx--
	}
	if idx < 0 || idx >= count {
		return 0, errors.Errorf("Index %s out of range (%d)", s, count)
	}
	return idx, nil
}

func (p *parser) parseCorner(s string) (corner, error) {
	c := corner{v: -1, vt: -1, vn: -1}
	fields := strings.Split(s, "/")
	if len(fields) > 3 {
		return c, errors.Errorf("Bad face corner %q", s)
	}
	var err error
	if c.v, err = resolve(fields[0], len(p.positions)); err != nil {
		return c, err
	}
	if len(fields) > 1 && fields[1] != "" {
		if c.vt, err = resolve(fields[1], len(p.uvs)); err != nil {
			return c, err
		}
	}
	if len(fields) > 2 && fields[2] != "" {
		if c.vn, err = resolve(fields[2], len(p.normals)); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (p *parser) face(args []string) error {
	if len(args) < 3 {
		return errors.Errorf("Face with %d corners", len(args))
	}
	corners := make([]corner, len(args))
	for i, a := range args {
		c, err := p.parseCorner(a)
		if err != nil {
			return err
		}
		corners[i] = c
	}

	pt := p.object().usePart(p.material)
	for i := 1; i+1 < len(corners); i++ {
		pt.corners = append(pt.corners, corners[0], corners[i], corners[i+1])
	}
	return nil
}

func parseFloats(args []string, n int) ([]float32, error) {
	if len(args) < n {
		return nil, errors.Errorf("Expected %d values, got %d", n, len(args))
	}
	result := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad number %q", args[i])
		}
		result[i] = float32(f)
	}
	return result, nil
}

func (p *parser) line(keyword string, args []string) error {
	switch keyword {
	case "v":
		f, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, mgl32.Vec3{f[0], f[1], f[2]})
	case "vt":
		f, err := parseFloats(args, 1)
		if err != nil {
			return err
		}
		uv := mgl32.Vec2{f[0], 0}
		if len(args) > 1 {
			if f, err = parseFloats(args[1:], 1); err != nil {
				return err
			}
			uv[1] = f[0]
		}
		p.uvs = append(p.uvs, uv)
	case "vn":
		f, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, mgl32.Vec3{f[0], f[1], f[2]})
	case "f":
		return p.face(args)
	case "o", "g":
		name := strings.Join(args, " ")
		if name == "" {
			name = p.defName
		}
		p.startObject(name)
	case "usemtl":
		p.material = strings.Join(args, " ")
	case "mtllib", "s", "l", "p":
	default:
		return errors.Errorf("Unknown statement %q", keyword)
	}
	return nil
}

// NewFromData parses OBJ text into a model named name.
func NewFromData(name string, data []byte) (*asset.Model, error) {
	p := &parser{defName: name}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if err := p.line(fields[0], fields[1:]); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	m := asset.NewModel(name)
	root, err := m.AddBone(asset.NoBone, name, mgl32.Ident4(), nil)
	if err != nil {
		return nil, err
	}
	for _, o := range p.objects {
		if o.faceCount() == 0 {
			continue
		}
		mesh := asset.NewMesh(o.name)
		for _, pt := range o.parts {
			mesh.AddPart(p.build(pt))
		}
		if _, err := m.AddBone(root, o.name, mgl32.Ident4(), mesh); err != nil {
			return nil, err
		}
	}
	return m, nil
}
