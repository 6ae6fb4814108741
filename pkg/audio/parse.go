// ABOUTME: Sample format names
// ABOUTME: Parses short names like s16le or f32le into a PCM Format
package audio

import (
	"fmt"
	"strings"
)

// ParseFormat builds a PCM format from a short sample format name such as
// "s16le", "u8" or "f32le". Names without an endianness suffix are
// little-endian.
func ParseFormat(name string, sampleRate, channels int) (Format, error) {
	f := Format{
		Codec:      CodecPCM,
		SampleRate: sampleRate,
		Channels:   channels,
		ByteOrder:  LittleEndian,
	}

	s := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(s, "be"):
		f.ByteOrder = BigEndian
		s = strings.TrimSuffix(s, "be")
	case strings.HasSuffix(s, "le"):
		s = strings.TrimSuffix(s, "le")
	}

	if len(s) < 2 {
		return Format{}, fmt.Errorf("invalid sample format: %q", name)
	}

	switch s[0] {
	case 's':
		f.SampleType = SignedInt
	case 'u':
		f.SampleType = UnSignedInt
	case 'f':
		f.SampleType = Float
	default:
		return Format{}, fmt.Errorf("invalid sample format: %q", name)
	}

	switch s[1:] {
	case "8":
		f.SampleSize = 8
	case "16":
		f.SampleSize = 16
	case "24":
		f.SampleSize = 24
	case "32":
		f.SampleSize = 32
	case "64":
		f.SampleSize = 64
	default:
		return Format{}, fmt.Errorf("invalid sample size in format: %q", name)
	}

	return f, nil
}

// Name returns the short sample format name accepted by ParseFormat
func (f Format) Name() string {
	var prefix string
	switch f.SampleType {
	case SignedInt:
		prefix = "s"
	case UnSignedInt:
		prefix = "u"
	case Float:
		prefix = "f"
	default:
		prefix = "?"
	}
	name := fmt.Sprintf("%s%d", prefix, f.SampleSize)
	if f.SampleSize > 8 {
		name += strings.ToLower(f.ByteOrder.String())
	}
	return name
}
