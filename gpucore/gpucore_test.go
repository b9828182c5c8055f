package gpucore

import "testing"

func TestWorkgroupCount(t *testing.T) {
	tests := []struct {
		n, size, want uint32
	}{
		{34, 4, 9},
		{32, 4, 8},
		{1, 64, 1},
		{0, 4, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := WorkgroupCount(tt.n, tt.size); got != tt.want {
			t.Errorf("WorkgroupCount(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}

func TestAlignedBytesPerRow(t *testing.T) {
	tests := []struct {
		name  string
		width uint32
		f     TextureFormat
		want  uint32
	}{
		{"single texel", 1, TextureFormatR32Uint, 256},
		{"exact", 64, TextureFormatRGBA8Unorm, 256},
		{"spill", 65, TextureFormatR32Float, 512},
		{"wide", 1280, TextureFormatRGBA8Unorm, 5120},
		{"position texel", 1, TextureFormatRGBA32Float, 256},
		{"position row", 17, TextureFormatRGBA32Float, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlignedBytesPerRow(tt.width, tt.f); got != tt.want {
				t.Errorf("AlignedBytesPerRow(%d) = %d, want %d", tt.width, got, tt.want)
			}
		})
	}
}

func TestBytesPerTexel(t *testing.T) {
	if got := TextureFormat(0).BytesPerTexel(); got != 0 {
		t.Errorf("unknown format BytesPerTexel() = %d, want 0", got)
	}
	if got := TextureFormatR32Uint.BytesPerTexel(); got != 4 {
		t.Errorf("R32Uint BytesPerTexel() = %d, want 4", got)
	}
	if got := TextureFormatRGBA32Float.BytesPerTexel(); got != 16 {
		t.Errorf("RGBA32Float BytesPerTexel() = %d, want 16", got)
	}
}
