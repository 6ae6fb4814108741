// ABOUTME: Tests for sample format names
// ABOUTME: Tests parsing and printing of short PCM format names
package audio

import "testing"

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		sampleType SampleType
		size       int
		order      ByteOrder
		wantErr    bool
	}{
		{"signed 16 le", "s16le", SignedInt, 16, LittleEndian, false},
		{"signed 16 default order", "S16", SignedInt, 16, LittleEndian, false},
		{"unsigned 8", "u8", UnSignedInt, 8, LittleEndian, false},
		{"float 32", "f32le", Float, 32, LittleEndian, false},
		{"big endian", "s32be", SignedInt, 32, BigEndian, false},
		{"24-bit parses", "s24le", SignedInt, 24, LittleEndian, false},
		{"bad type", "x16", Unknown, 0, LittleEndian, true},
		{"bad size", "s12", Unknown, 0, LittleEndian, true},
		{"empty", "", Unknown, 0, LittleEndian, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFormat(tt.input, 44100, 2)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.SampleType != tt.sampleType || f.SampleSize != tt.size || f.ByteOrder != tt.order {
				t.Errorf("expected %v/%d/%v, got %v/%d/%v",
					tt.sampleType, tt.size, tt.order, f.SampleType, f.SampleSize, f.ByteOrder)
			}
			if !f.IsPCM() || f.SampleRate != 44100 || f.Channels != 2 {
				t.Errorf("unexpected format fields: %+v", f)
			}
		})
	}
}

func TestFormatNameRoundTrip(t *testing.T) {
	for _, name := range []string{"s8", "u8", "s16le", "u16be", "s32le", "f32le"} {
		f, err := ParseFormat(name, 8000, 1)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", name, err)
		}
		if got := f.Name(); got != name {
			t.Errorf("expected %s, got %s", name, got)
		}
	}
}
