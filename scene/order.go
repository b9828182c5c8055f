package scene

// Placed is an object positioned in compositing order.
type Placed struct {
	*Object

	// Layer is the object's effective layer (BaseLayer for orphans).
	Layer Layer
	// Ordinal is the object's position within its layer.
	Ordinal int
	// First and Last mark the boundaries of the layer's run.
	First, Last bool
}

// Ordered returns the visible objects in compositing order: the implicit
// base layer first, then every visible layer in Layers order. Within a layer
// objects keep their order in Objects. Objects of hidden layers are omitted.
//
// The returned values point into s.Objects.
func (s *Scene) Ordered() []Placed {
	known := make(map[uint32]int, len(s.Layers))
	for i, l := range s.Layers {
		if _, dup := known[l.ID]; !dup {
			known[l.ID] = i
		}
	}

	buckets := make([][]*Object, len(s.Layers)+1)
	for i := range s.Objects {
		o := &s.Objects[i]
		idx, ok := known[o.Layer]
		if !ok {
			buckets[0] = append(buckets[0], o)
			continue
		}
		buckets[idx+1] = append(buckets[idx+1], o)
	}

	out := make([]Placed, 0, len(s.Objects))
	emit := func(l Layer, objs []*Object) {
		for i, o := range objs {
			out = append(out, Placed{
				Object:  o,
				Layer:   l,
				Ordinal: i,
				First:   i == 0,
				Last:    i == len(objs)-1,
			})
		}
	}
	emit(BaseLayer(), buckets[0])
	for i, l := range s.Layers {
		if !l.Visible {
			continue
		}
		emit(l, buckets[i+1])
	}
	return out
}

// Effects returns the active effect bodies of every object and layer, with
// duplicates. Hidden layers and their objects are included, so the result
// does not change when visibility is toggled.
func (s *Scene) Effects() []string {
	var bodies []string
	for i := range s.Objects {
		if e := s.Objects[i].Effect; e.Active() {
			bodies = append(bodies, e.Body)
		}
	}
	for i := range s.Layers {
		if e := s.Layers[i].Effect; e.Active() {
			bodies = append(bodies, e.Body)
		}
	}
	return bodies
}
