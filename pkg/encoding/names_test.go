package encoding

import "testing"

func TestFixedStringToUTF8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"plain", []byte("building01\x00\x00\x00"), "building01"},
		{"no terminator", []byte("abcd"), "abcd"},
		{"garbage after nul", []byte("door\x00xyz"), "door"},
		{"latin1", []byte{'c', 'a', 'f', 0xE9, 0}, "café"},
		{"empty", []byte{0, 0, 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixedStringToUTF8(tt.data); got != tt.want {
				t.Errorf("FixedStringToUTF8() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8ToFixedString(t *testing.T) {
	got := UTF8ToFixedString("café", 8)
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	if got[3] != 0xE9 {
		t.Errorf("byte 3 = 0x%x, want 0xe9", got[3])
	}
	if back := FixedStringToUTF8(got); back != "café" {
		t.Errorf("round trip = %q", back)
	}

	cut := UTF8ToFixedString("abcdefgh", 4)
	if string(cut) != "abc\x00" {
		t.Errorf("truncated = %q, want %q", cut, "abc\x00")
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Vice_Hotel01 "); got != "vice_hotel01" {
		t.Errorf("NormalizeName() = %q", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`MODELS\Gta3.IMG`, "models/gta3.img"},
		{"/a/./b.mdl", "a/b.mdl"},
		{"plain.txd", "plain.txd"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashNameCaseInsensitive(t *testing.T) {
	if HashName("lamppost") != HashName("LampPost") {
		t.Error("hash differs by case")
	}
	if HashName("lamppost") == HashName("lamppost2") {
		t.Error("distinct names collide")
	}
}
