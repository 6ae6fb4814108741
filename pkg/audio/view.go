// ABOUTME: Typed sample views over interleaved PCM
// ABOUTME: Tagged variant replacing raw pointer reinterpretation of capture buffers
package audio

import (
	"encoding/binary"
	"math"
)

// Sample is any numeric representation a PCM sample can be stored in
type Sample interface {
	~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32 | ~float32
}

// Kind tags which slice of a View is populated
type Kind int

const (
	KindNone Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindUint8
	KindUint16
	KindUint32
	KindFloat32
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float32"
	default:
		return "none"
	}
}

// KindOf maps a format to the sample representation it is stored in.
// Formats outside the supported set map to KindNone.
func KindOf(f Format) Kind {
	switch f.SampleType {
	case SignedInt:
		switch f.SampleSize {
		case 8:
			return KindInt8
		case 16:
			return KindInt16
		case 32:
			return KindInt32
		}
	case UnSignedInt:
		switch f.SampleSize {
		case 8:
			return KindUint8
		case 16:
			return KindUint16
		case 32:
			return KindUint32
		}
	case Float:
		if f.SampleSize == 32 {
			return KindFloat32
		}
	}
	return KindNone
}

// View holds exactly one populated sample slice, selected by Kind
type View struct {
	Kind Kind
	I8   []int8
	I16  []int16
	I32  []int32
	U8   []uint8
	U16  []uint16
	U32  []uint32
	F32  []float32
}

func ViewInt8(s []int8) View { return View{Kind: KindInt8, I8: s} }
func ViewInt16(s []int16) View { return View{Kind: KindInt16, I16: s} }
func ViewInt32(s []int32) View { return View{Kind: KindInt32, I32: s} }
func ViewUint8(s []uint8) View { return View{Kind: KindUint8, U8: s} }
func ViewUint16(s []uint16) View { return View{Kind: KindUint16, U16: s} }
func ViewUint32(s []uint32) View { return View{Kind: KindUint32, U32: s} }
func ViewFloat32(s []float32) View { return View{Kind: KindFloat32, F32: s} }

// Len returns the number of samples (not frames) in the view
func (v View) Len() int {
	switch v.Kind {
	case KindInt8:
		return len(v.I8)
	case KindInt16:
		return len(v.I16)
	case KindInt32:
		return len(v.I32)
	case KindUint8:
		return len(v.U8)
	case KindUint16:
		return len(v.U16)
	case KindUint32:
		return len(v.U32)
	case KindFloat32:
		return len(v.F32)
	}
	return 0
}

// At returns sample i as a float64 without any scaling
func (v View) At(i int) float64 {
	switch v.Kind {
	case KindInt8:
		return float64(v.I8[i])
	case KindInt16:
		return float64(v.I16[i])
	case KindInt32:
		return float64(v.I32[i])
	case KindUint8:
		return float64(v.U8[i])
	case KindUint16:
		return float64(v.U16[i])
	case KindUint32:
		return float64(v.U32[i])
	case KindFloat32:
		return float64(v.F32[i])
	}
	return 0
}

// DecodeView converts raw interleaved bytes into the typed view matching
// format. Trailing bytes that do not form a whole sample are ignored.
func DecodeView(format Format, data []byte) View {
	var order binary.ByteOrder = binary.LittleEndian
	if format.ByteOrder == BigEndian {
		order = binary.BigEndian
	}

	switch KindOf(format) {
	case KindInt8:
		out := make([]int8, len(data))
		for i, b := range data {
			out[i] = int8(b)
		}
		return ViewInt8(out)
	case KindUint8:
		return ViewUint8(data)
	case KindInt16:
		out := make([]int16, len(data)/2)
		for i := range out {
			out[i] = int16(order.Uint16(data[i*2:]))
		}
		return ViewInt16(out)
	case KindUint16:
		out := make([]uint16, len(data)/2)
		for i := range out {
			out[i] = order.Uint16(data[i*2:])
		}
		return ViewUint16(out)
	case KindInt32:
		out := make([]int32, len(data)/4)
		for i := range out {
			out[i] = int32(order.Uint32(data[i*4:]))
		}
		return ViewInt32(out)
	case KindUint32:
		out := make([]uint32, len(data)/4)
		for i := range out {
			out[i] = order.Uint32(data[i*4:])
		}
		return ViewUint32(out)
	case KindFloat32:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(order.Uint32(data[i*4:]))
		}
		return ViewFloat32(out)
	}
	return View{}
}

// EncodeView serializes a view back into little-endian bytes
func EncodeView(v View) []byte {
	le := binary.LittleEndian
	switch v.Kind {
	case KindInt8:
		out := make([]byte, len(v.I8))
		for i, s := range v.I8 {
			out[i] = byte(s)
		}
		return out
	case KindUint8:
		return append([]byte(nil), v.U8...)
	case KindInt16:
		out := make([]byte, 0, len(v.I16)*2)
		for _, s := range v.I16 {
			out = le.AppendUint16(out, uint16(s))
		}
		return out
	case KindUint16:
		out := make([]byte, 0, len(v.U16)*2)
		for _, s := range v.U16 {
			out = le.AppendUint16(out, s)
		}
		return out
	case KindInt32:
		out := make([]byte, 0, len(v.I32)*4)
		for _, s := range v.I32 {
			out = le.AppendUint32(out, uint32(s))
		}
		return out
	case KindUint32:
		out := make([]byte, 0, len(v.U32)*4)
		for _, s := range v.U32 {
			out = le.AppendUint32(out, s)
		}
		return out
	case KindFloat32:
		out := make([]byte, 0, len(v.F32)*4)
		for _, s := range v.F32 {
			out = le.AppendUint32(out, math.Float32bits(s))
		}
		return out
	}
	return nil
}
