package compressor

import "testing"

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{-5, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1100, "1.07 KB"},
		{1152, "1.13 KB"},
		{1664, "1.63 KB"},
		{1048576, "1 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{2048 * 1024 * 1024 * 1024, "2048 GB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestReductionPercent(t *testing.T) {
	tests := []struct {
		original, derived int64
		want              float64
		ok                bool
	}{
		{1000000, 250000, 75.0, true},
		{3, 2, 33.3, true},
		{3, 1, 66.7, true},
		{16, 15, 6.3, true},
		{1600, 1500, 6.3, true},
		{100, 100, 0, true},
		{100, 150, -50, true},
		{0, 10, 0, false},
	}

	for _, tt := range tests {
		got, ok := ReductionPercent(tt.original, tt.derived)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ReductionPercent(%d, %d) = %v, %v; want %v, %v",
				tt.original, tt.derived, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatReduction(t *testing.T) {
	if got := FormatReduction(1000000, 250000); got != "75.0" {
		t.Errorf("FormatReduction() = %q, want 75.0", got)
	}
	if got := FormatReduction(16, 15); got != "6.3" {
		t.Errorf("FormatReduction(16, 15) = %q, want 6.3", got)
	}
	if got := FormatReduction(0, 250000); got != "N/A" {
		t.Errorf("FormatReduction(0, _) = %q, want N/A", got)
	}
}

func TestDownloadName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"photo.png", "compressed_photo.jpg"},
		{"photo", "compressed_photo.jpg"},
		{"holiday.final.webp", "compressed_holiday.final.jpg"},
		{"photo.", "compressed_photo.jpg"},
		{".png", "compressed_image.jpg"},
		{"", "compressed_image.jpg"},
		{"C:\\Users\\me\\cat.jpeg", "compressed_cat.jpg"},
		{"../../etc/x.gif", "compressed_x.jpg"},
	}

	for _, tt := range tests {
		if got := DownloadName(tt.name); got != tt.want {
			t.Errorf("DownloadName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
