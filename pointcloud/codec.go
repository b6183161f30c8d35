package pointcloud

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// The byte codec below is shared by the on-disk node format and the
// streaming wire format: little endian, column at a time, no per-row
// framing.

// EncodePositions serializes a position column as packed little endian
// float64 triples.
func EncodePositions(positions []r3.Vector) []byte {
	out := make([]byte, len(positions)*24)
	for i, p := range positions {
		off := i * 24
		binary.LittleEndian.PutUint64(out[off:], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(out[off+8:], math.Float64bits(p.Y))
		binary.LittleEndian.PutUint64(out[off+16:], math.Float64bits(p.Z))
	}
	return out
}

// DecodePositions is the inverse of EncodePositions.
func DecodePositions(raw []byte, count int) ([]r3.Vector, error) {
	if len(raw) != count*24 {
		return nil, errors.Errorf("position block is %d bytes, want %d", len(raw), count*24)
	}
	positions := make([]r3.Vector, count)
	for i := 0; i < count; i++ {
		off := i * 24
		positions[i] = r3.Vector{
			X: math.Float64frombits(binary.LittleEndian.Uint64(raw[off:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(raw[off+8:])),
			Z: math.Float64frombits(binary.LittleEndian.Uint64(raw[off+16:])),
		}
	}
	return positions, nil
}

// EncodeColumn serializes an attribute column as packed little endian
// values.
func EncodeColumn(col Column) []byte {
	switch c := col.(type) {
	case U8Column:
		return []byte(c)
	case U8x3Column:
		out := make([]byte, 0, 3*len(c))
		for _, v := range c {
			out = append(out, v[0], v[1], v[2])
		}
		return out
	case F32Column:
		out := make([]byte, 4*len(c))
		for i, v := range c {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	case F64Column:
		out := make([]byte, 8*len(c))
		for i, v := range c {
			binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
		}
		return out
	default:
		return nil
	}
}

// DecodeColumn is the inverse of EncodeColumn.
func DecodeColumn(raw []byte, kind AttributeKind, count int) (Column, error) {
	if want := count * kind.ByteWidth(); len(raw) != want {
		return nil, errors.Errorf("%s column block is %d bytes, want %d", kind, len(raw), want)
	}
	switch kind {
	case KindU8:
		return U8Column(raw), nil
	case KindU8x3:
		col := make(U8x3Column, count)
		for i := range col {
			col[i] = [3]uint8{raw[3*i], raw[3*i+1], raw[3*i+2]}
		}
		return col, nil
	case KindF32:
		col := make(F32Column, count)
		for i := range col {
			col[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		return col, nil
	case KindF64:
		col := make(F64Column, count)
		for i := range col {
			col[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return col, nil
	default:
		return nil, errors.Errorf("unknown attribute kind %d", kind)
	}
}
