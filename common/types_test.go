package common

import "testing"

// TestVec3Ops verifies the basic vector arithmetic helpers.
func TestVec3Ops(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, -5, 6}

	if got := a.Add(b); got != (Vec3{5, -3, 9}) {
		t.Errorf("Add = %+v", got)
	}
	if got := a.Sub(b); got != (Vec3{-3, 7, -3}) {
		t.Errorf("Sub = %+v", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		t.Errorf("Scale = %+v", got)
	}
	if got := a.Dot(b); got != 12 {
		t.Errorf("Dot = %v, want 12", got)
	}
	if got := (Vec3{3, 4, 0}).Length(); !ApproxEq(got, 5, 1e-6) {
		t.Errorf("Length = %v, want 5", got)
	}
	if got := a.Array(); got != [4]float32{1, 2, 3, 0} {
		t.Errorf("Array = %v", got)
	}
}

// TestAABBClamp verifies component-wise clamping into the box.
func TestAABBClamp(t *testing.T) {
	box := AABB{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}

	tests := []struct {
		name string
		in   Vec3
		want Vec3
	}{
		{"inside unchanged", Vec3{0.5, -0.5, 0}, Vec3{0.5, -0.5, 0}},
		{"above max", Vec3{2, 0, 0}, Vec3{1, 0, 0}},
		{"below min", Vec3{0, -3, 0}, Vec3{0, -1, 0}},
		{"all axes out", Vec3{5, -5, 5}, Vec3{1, -1, 1}},
		{"on boundary", Vec3{1, 1, -1}, Vec3{1, 1, -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := box.Clamp(tc.in); got != tc.want {
				t.Errorf("Clamp(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

// TestAABBContains verifies inclusive containment checks.
func TestAABBContains(t *testing.T) {
	box := AABB{Min: Vec3{0, 0, 0}, Max: Vec3{2, 2, 2}}

	if !box.Contains(Vec3{1, 1, 1}) {
		t.Error("interior point should be contained")
	}
	if !box.Contains(Vec3{0, 2, 1}) {
		t.Error("boundary point should be contained")
	}
	if box.Contains(Vec3{-0.001, 1, 1}) {
		t.Error("exterior point should not be contained")
	}
}
