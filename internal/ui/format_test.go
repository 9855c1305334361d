package ui

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-5, "0 B"},
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{40 * 1024 * 1024, "40 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatQuota(t *testing.T) {
	if got := FormatQuota(10*1024*1024, 40*1024*1024); got != "10 MiB / 40 MiB (25%)" {
		t.Errorf("FormatQuota() = %q", got)
	}
	if got := FormatQuota(512, 0); got != "512 B" {
		t.Errorf("FormatQuota() = %q", got)
	}
}

func TestLayoutContentHeight(t *testing.T) {
	l := NewLayout(80, 24)
	if got := l.ContentHeight(); got != 22 {
		t.Errorf("ContentHeight() = %d, want 22", got)
	}
}
