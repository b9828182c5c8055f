package scene

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/sdfatlas/geom"
)

// fileScene mirrors Scene in a TOML-friendly shape: vectors are arrays and
// enumerations are names.
//
//	[[layer]]
//	id = 1
//	mode = "smooth-union"
//	opacity = 1.0
//	param = 0.5
//	visible = true
//
//	[[object]]
//	id = 7
//	shape = "box"
//	position = [0.0, 0.5, 0.0]
//	size = [0.5, 0.5, 0.5]
//	layer = 1
type fileScene struct {
	Layers  []fileLayer  `toml:"layer"`
	Objects []fileObject `toml:"object"`
}

type fileEffect struct {
	Body   string     `toml:"body"`
	Params [4]float64 `toml:"params"`
}

type fileLayer struct {
	ID      uint32       `toml:"id"`
	Name    string       `toml:"name"`
	Mode    TransferMode `toml:"mode"`
	Opacity *float64     `toml:"opacity"`
	Param   float64      `toml:"param"`
	Visible *bool        `toml:"visible"`
	Effect  *fileEffect  `toml:"effect"`
}

type fileObject struct {
	ID       uint32       `toml:"id"`
	Shape    ShapeType    `toml:"shape"`
	Position [3]float64   `toml:"position"`
	Rotation [3]float64   `toml:"rotation"`
	Size     [3]float64   `toml:"size"`
	Scale    *float64     `toml:"scale"`
	Layer    uint32       `toml:"layer"`
	Mode     TransferMode `toml:"mode"`
	Opacity  *float64     `toml:"opacity"`
	Param    float64      `toml:"param"`
	Effect   *fileEffect  `toml:"effect"`
	Vertices [][2]float64 `toml:"vertices"`
	Capped   *bool        `toml:"capped"`
	Wall     float64      `toml:"wall"`
	Mask     bool         `toml:"mask"`
}

// Decode reads a scene description in TOML. Omitted opacity, scale,
// visibility and capping default to 1, 1, true and true.
func Decode(r io.Reader) (*Scene, error) {
	var f fileScene
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("scene: decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("scene: unknown key %q", undecoded[0].String())
	}

	s := &Scene{Generation: 1}
	for _, fl := range f.Layers {
		s.Layers = append(s.Layers, Layer{
			ID:      fl.ID,
			Name:    fl.Name,
			Mode:    fl.Mode,
			Opacity: orFloat(fl.Opacity, 1),
			Param:   fl.Param,
			Visible: orBool(fl.Visible, true),
			Effect:  fl.Effect.ref(),
		})
	}
	for _, fo := range f.Objects {
		o := Object{
			ID:       fo.ID,
			Shape:    fo.Shape,
			Position: vec3(fo.Position),
			Rotation: vec3(fo.Rotation),
			Size:     vec3(fo.Size),
			Scale:    orFloat(fo.Scale, 1),
			Layer:    fo.Layer,
			Mode:     fo.Mode,
			Opacity:  orFloat(fo.Opacity, 1),
			Param:    fo.Param,
			Effect:   fo.Effect.ref(),
			Capped:   orBool(fo.Capped, true),
			Wall:     fo.Wall,
			Mask:     fo.Mask,
		}
		for _, v := range fo.Vertices {
			o.Vertices = append(o.Vertices, geom.V2(v[0], v[1]))
		}
		s.Objects = append(s.Objects, o)
	}
	return s, nil
}

func (e *fileEffect) ref() *EffectRef {
	if e == nil {
		return nil
	}
	return &EffectRef{Body: e.Body, Params: e.Params}
}

func vec3(a [3]float64) geom.Vec3 {
	return geom.V3(a[0], a[1], a[2])
}

func orFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func orBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
