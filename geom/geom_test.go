package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func nearVec(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestEulerXYZ(t *testing.T) {
	tests := []struct {
		name string
		rot  Vec3
		in   Vec3
		want Vec3
	}{
		{"identity", V3(0, 0, 0), V3(1, 2, 3), V3(1, 2, 3)},
		{"x quarter", V3(math.Pi/2, 0, 0), V3(0, 1, 0), V3(0, 0, 1)},
		{"y quarter", V3(0, math.Pi/2, 0), V3(0, 0, 1), V3(1, 0, 0)},
		{"z quarter", V3(0, 0, math.Pi/2), V3(1, 0, 0), V3(0, 1, 0)},
		{"x then z", V3(math.Pi/2, 0, math.Pi/2), V3(0, 1, 0), V3(0, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EulerXYZ(tt.rot).MulVec(tt.in)
			if !nearVec(got, tt.want, eps) {
				t.Errorf("EulerXYZ(%v)*%v = %v, want %v", tt.rot, tt.in, got, tt.want)
			}
		})
	}
}

func TestMat3TransposeInvertsRotation(t *testing.T) {
	r := EulerXYZ(V3(0.3, -1.1, 2.4))
	p := V3(0.7, -0.2, 1.9)
	back := r.Transpose().MulVec(r.MulVec(p))
	if !nearVec(back, p, eps) {
		t.Errorf("R^T R p = %v, want %v", back, p)
	}
	id := r.Mul(r.Transpose())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(id[i][j]-want) > eps {
				t.Fatalf("R R^T [%d][%d] = %v, want %v", i, j, id[i][j], want)
			}
		}
	}
}

func TestAABBHalfExtents(t *testing.T) {
	tests := []struct {
		name  string
		rot   Vec3
		ext   Vec3
		scale float64
		want  Vec3
	}{
		{"axis aligned", V3(0, 0, 0), V3(1, 2, 3), 1, V3(1, 2, 3)},
		{"scaled", V3(0, 0, 0), V3(1, 2, 3), 2, V3(2, 4, 6)},
		{"z quarter swaps xy", V3(0, 0, math.Pi/2), V3(1, 2, 3), 1, V3(2, 1, 3)},
		{"45 degrees", V3(0, 0, math.Pi/4), V3(1, 1, 1), 1, V3(math.Sqrt2, math.Sqrt2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AABBHalfExtents(EulerXYZ(tt.rot), tt.ext, tt.scale)
			if !nearVec(got, tt.want, 1e-9) {
				t.Errorf("AABBHalfExtents = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMat4Inverse(t *testing.T) {
	view := LookAt(V3(3, 2, 5), V3(0, 0, 0), V3(0, 1, 0))
	proj := Perspective(math.Pi/3, 16.0/9.0, 0.1, 100)
	vp := proj.Mul(view)
	inv, ok := vp.Inverse()
	if !ok {
		t.Fatal("Inverse reported singular matrix")
	}
	p := V3(0.5, -0.25, 0.75)
	back := inv.MulPoint(vp.MulPoint(p))
	if !nearVec(back, p, 1e-6) {
		t.Errorf("inverse round trip = %v, want %v", back, p)
	}

	if _, ok := (Mat4{}).Inverse(); ok {
		t.Error("zero matrix should be singular")
	}
}

func TestScreenRayThroughCenter(t *testing.T) {
	eye := V3(0, 0, 5)
	view := LookAt(eye, V3(0, 0, 0), V3(0, 1, 0))
	proj := Perspective(math.Pi/2, 1, 0.1, 100)
	inv, ok := proj.Mul(view).Inverse()
	if !ok {
		t.Fatal("singular view-projection")
	}
	// 2x2 viewport: the pixel center of (0.5, 0.5) is offset, so use w=h=1.
	r := ScreenRay(inv, 0, 0, 1, 1)
	if !nearVec(r.Dir, V3(0, 0, -1), 1e-6) {
		t.Errorf("center ray dir = %v, want (0,0,-1)", r.Dir)
	}
}

func TestRayIntersectPlane(t *testing.T) {
	tests := []struct {
		name   string
		ray    Ray
		wantOK bool
		want   Vec3
	}{
		{"hit", Ray{V3(1, 5, 2), V3(0, -1, 0)}, true, V3(1, 0, 2)},
		{"parallel", Ray{V3(0, 1, 0), V3(1, 0, 0)}, false, Vec3{}},
		{"behind", Ray{V3(0, 1, 0), V3(0, 1, 0)}, false, Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.ray.IntersectPlane(V3(0, 0, 0), V3(0, 1, 0))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !nearVec(got, tt.want, eps) {
				t.Errorf("hit = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRayProjectOntoAxis(t *testing.T) {
	r := Ray{Origin: V3(2, 5, 0), Dir: V3(0, -1, 0)}
	s, ok := r.ProjectOntoAxis(V3(0, 0, 0), V3(1, 0, 0))
	if !ok || math.Abs(s-2) > eps {
		t.Errorf("ProjectOntoAxis = (%v, %v), want (2, true)", s, ok)
	}

	_, ok = r.ProjectOntoAxis(V3(0, 0, 0), V3(0, 1, 0))
	if ok {
		t.Error("parallel axis should not project")
	}
}
