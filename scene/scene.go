// Package scene holds the editor-independent snapshot the cache consumes:
// objects, layers and the enumerations that describe them.
//
// A Scene is a plain value. Callers mutate it freely and bump Generation
// (see Touch) whenever an edit lands; readback results that were requested
// for an older generation are discarded.
package scene

import (
	"fmt"
	"strings"

	"github.com/gogpu/sdfatlas/geom"
)

// MaxPolygonVertices is the number of planar vertices a polygon prism can
// carry.
const MaxPolygonVertices = 16

// BlendRadius is the world-space reach of a blending transfer mode at
// Param = 1: the smoothing radius of smooth union and smooth subtract and the
// shell thickness of pipe and engrave.
const BlendRadius = 0.25

// BaseLayerID identifies the implicit layer that owns objects whose Layer
// does not name any entry of Scene.Layers.
const BaseLayerID = ^uint32(0)

// ShapeType selects the primitive distance function of an object.
type ShapeType uint32

const (
	ShapeBox ShapeType = iota
	ShapeSphere
	ShapeCylinder
	ShapeCone
	ShapePyramid
	ShapePolygon
)

var shapeNames = [...]string{"box", "sphere", "cylinder", "cone", "pyramid", "polygon"}

func (s ShapeType) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("ShapeType(%d)", uint32(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s ShapeType) MarshalText() ([]byte, error) {
	if int(s) >= len(shapeNames) {
		return nil, fmt.Errorf("scene: unknown shape type %d", uint32(s))
	}
	return []byte(shapeNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ShapeType) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range shapeNames {
		if n == name {
			*s = ShapeType(i)
			return nil
		}
	}
	return fmt.Errorf("scene: unknown shape %q", string(b))
}

// TransferMode is the boolean or arithmetic operator used to fold an object
// (or a layer) into the accumulated distance.
type TransferMode uint8

const (
	ModeUnion TransferMode = iota
	ModeSmoothUnion
	ModeSubtract
	ModeIntersect
	ModeAddition
	ModeMultiply
	ModePipe
	ModeEngrave
	ModeSmoothSubtract
)

var modeNames = [...]string{
	"union", "smooth-union", "subtract", "intersect", "addition",
	"multiply", "pipe", "engrave", "smooth-subtract",
}

func (m TransferMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("TransferMode(%d)", uint8(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m TransferMode) MarshalText() ([]byte, error) {
	if int(m) >= len(modeNames) {
		return nil, fmt.Errorf("scene: unknown transfer mode %d", uint8(m))
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *TransferMode) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.ReplaceAll(string(b), "_", "-"))
	for i, n := range modeNames {
		if n == name {
			*m = TransferMode(i)
			return nil
		}
	}
	return fmt.Errorf("scene: unknown transfer mode %q", string(b))
}

// Blends reports whether the mode reaches beyond the operand's surface
// (smooth blends, pipes and engravings) by up to Param * blend radius.
func (m TransferMode) Blends() bool {
	switch m {
	case ModeSmoothUnion, ModeSmoothSubtract, ModePipe, ModeEngrave:
		return true
	}
	return false
}

// EffectRef attaches a user-supplied distance modifier. Body is the text of
// a WGSL function body taking (p: vec3<f32>, d: f32, params: vec4<f32>) and
// returning the modified distance as f32.
type EffectRef struct {
	Body   string
	Params [4]float64
}

// Active reports whether the reference carries a body.
func (e *EffectRef) Active() bool {
	return e != nil && strings.TrimSpace(e.Body) != ""
}

// Object is one primitive of the scene.
//
// Size is interpreted per shape: Box and Pyramid use full half extents;
// Sphere uses X as radius; Cylinder and Cone use X as radius and Y as half
// height; Polygon uses Y as half height and Vertices as its XZ profile.
type Object struct {
	ID       uint32
	Shape    ShapeType
	Position geom.Vec3
	Rotation geom.Vec3 // Euler XYZ, radians
	Size     geom.Vec3
	Scale    float64
	Layer    uint32
	Mode     TransferMode
	Opacity  float64
	Param    float64
	Effect   *EffectRef
	Vertices []geom.Vec2
	Capped   bool
	Wall     float64
	Mask     bool
}

// Layer groups objects that are composited together before being folded
// into the layers below.
type Layer struct {
	ID      uint32
	Name    string
	Mode    TransferMode
	Opacity float64
	Param   float64
	Visible bool
	Effect  *EffectRef
}

// BaseLayer returns the implicit layer composited before all others.
func BaseLayer() Layer {
	return Layer{ID: BaseLayerID, Name: "base", Mode: ModeUnion, Opacity: 1, Visible: true}
}

// Scene is a snapshot of all objects and layers. Layer order is
// compositing order.
type Scene struct {
	Objects    []Object
	Layers     []Layer
	Generation uint64
}

// Touch marks the scene as edited.
func (s *Scene) Touch() {
	s.Generation++
}

// Layer returns the layer with the given id.
func (s *Scene) Layer(id uint32) (Layer, bool) {
	for _, l := range s.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// Object returns a pointer to the object with the given id, or nil.
func (s *Scene) Object(id uint32) *Object {
	for i := range s.Objects {
		if s.Objects[i].ID == id {
			return &s.Objects[i]
		}
	}
	return nil
}
