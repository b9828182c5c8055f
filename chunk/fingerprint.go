package chunk

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/sdfatlas/scene"
)

// Fingerprint returns a canonical encoding of every field of a placed
// object that can change the distance field around it, including the state
// of its layer. The object's index within the layer is left out: inserting
// or removing a neighbour does not change it, and Sync tracks reordering
// separately.
func Fingerprint(p scene.Placed) string {
	b := make([]byte, 0, 256)
	o := p.Object

	b = strconv.AppendUint(b, uint64(o.Shape), 10)
	b = appendVec(b, o.Position.X, o.Position.Y, o.Position.Z)
	b = appendVec(b, o.Rotation.X, o.Rotation.Y, o.Rotation.Z)
	b = appendVec(b, o.Size.X, o.Size.Y, o.Size.Z)
	b = appendVec(b, o.Scale, o.Wall)
	b = appendBool(b, o.Capped)
	b = appendBool(b, o.Mask)
	b = append(b, '|', 'm')
	b = strconv.AppendUint(b, uint64(o.Mode), 10)
	b = appendVec(b, o.Opacity, o.Param)
	b = appendEffect(b, o.Effect)

	b = append(b, '|', 'v')
	for _, v := range o.Vertices {
		b = appendVec(b, v.X, v.Y)
	}

	l := p.Layer
	b = append(b, '|', 'l')
	b = strconv.AppendUint(b, uint64(l.ID), 10)
	b = append(b, ':')
	b = strconv.AppendUint(b, uint64(l.Mode), 10)
	b = appendVec(b, l.Opacity, l.Param)
	b = appendEffect(b, l.Effect)
	return string(b)
}

func appendVec(b []byte, vs ...float64) []byte {
	for _, v := range vs {
		b = append(b, ',')
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	return b
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, ",1"...)
	}
	return append(b, ",0"...)
}

func appendEffect(b []byte, e *scene.EffectRef) []byte {
	b = append(b, '|', 'e')
	if !e.Active() {
		return b
	}
	b = strconv.AppendUint(b, xxhash.Sum64String(e.Body), 16)
	return appendVec(b, e.Params[0], e.Params[1], e.Params[2], e.Params[3])
}
