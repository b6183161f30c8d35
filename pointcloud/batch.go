package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// AttributeKind enumerates the supported per-point attribute column types.
type AttributeKind uint8

const (
	// KindU8 is a single byte per point, e.g. a classification code.
	KindU8 = AttributeKind(iota)
	// KindU8x3 is three bytes per point, e.g. an RGB color.
	KindU8x3
	// KindF32 is a 32 bit float per point, e.g. an intensity.
	KindF32
	// KindF64 is a 64 bit float per point, e.g. a timestamp.
	KindF64
)

func (k AttributeKind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU8x3:
		return "u8x3"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	default:
		return "unknown"
	}
}

// ByteWidth returns the encoded size of one element of this kind.
func (k AttributeKind) ByteWidth() int {
	switch k {
	case KindU8:
		return 1
	case KindU8x3:
		return 3
	case KindF32:
		return 4
	case KindF64:
		return 8
	default:
		return 0
	}
}

// Column is one attribute column of a batch. The variant set is closed; the
// engine matches on the concrete types exhaustively.
type Column interface {
	Len() int
	Kind() AttributeKind

	// slice returns the column restricted to [i, j).
	slice(i, j int) Column
	// filter returns the column restricted to the rows where keep is true.
	filter(keep []bool) Column
	// append returns the concatenation of the column with other, which must
	// be of the same kind.
	append(other Column) Column
}

// U8Column is a column of single bytes.
type U8Column []uint8

// Len returns the number of rows.
func (c U8Column) Len() int { return len(c) }

// Kind returns KindU8.
func (c U8Column) Kind() AttributeKind { return KindU8 }

func (c U8Column) slice(i, j int) Column { return c[i:j] }

func (c U8Column) filter(keep []bool) Column {
	out := make(U8Column, 0, len(c))
	for i, k := range keep {
		if k {
			out = append(out, c[i])
		}
	}
	return out
}

func (c U8Column) append(other Column) Column {
	return append(c, other.(U8Column)...)
}

// U8x3Column is a column of byte triples, typically RGB colors.
type U8x3Column [][3]uint8

// Len returns the number of rows.
func (c U8x3Column) Len() int { return len(c) }

// Kind returns KindU8x3.
func (c U8x3Column) Kind() AttributeKind { return KindU8x3 }

func (c U8x3Column) slice(i, j int) Column { return c[i:j] }

func (c U8x3Column) filter(keep []bool) Column {
	out := make(U8x3Column, 0, len(c))
	for i, k := range keep {
		if k {
			out = append(out, c[i])
		}
	}
	return out
}

func (c U8x3Column) append(other Column) Column {
	return append(c, other.(U8x3Column)...)
}

// F32Column is a column of 32 bit floats.
type F32Column []float32

// Len returns the number of rows.
func (c F32Column) Len() int { return len(c) }

// Kind returns KindF32.
func (c F32Column) Kind() AttributeKind { return KindF32 }

func (c F32Column) slice(i, j int) Column { return c[i:j] }

func (c F32Column) filter(keep []bool) Column {
	out := make(F32Column, 0, len(c))
	for i, k := range keep {
		if k {
			out = append(out, c[i])
		}
	}
	return out
}

func (c F32Column) append(other Column) Column {
	return append(c, other.(F32Column)...)
}

// F64Column is a column of 64 bit floats.
type F64Column []float64

// Len returns the number of rows.
func (c F64Column) Len() int { return len(c) }

// Kind returns KindF64.
func (c F64Column) Kind() AttributeKind { return KindF64 }

func (c F64Column) slice(i, j int) Column { return c[i:j] }

func (c F64Column) filter(keep []bool) Column {
	out := make(F64Column, 0, len(c))
	for i, k := range keep {
		if k {
			out = append(out, c[i])
		}
	}
	return out
}

func (c F64Column) append(other Column) Column {
	return append(c, other.(F64Column)...)
}

// Batch is an ordered columnar chunk of points: one position column plus one
// column per requested attribute, all of equal length. Attribute order
// follows the caller's requested order.
type Batch struct {
	Positions  []r3.Vector
	Attributes []string
	Columns    []Column
}

// NewBatch creates an empty batch carrying the given attribute names and
// per-attribute column kinds.
func NewBatch(attributes []string, kinds []AttributeKind) (*Batch, error) {
	if len(attributes) != len(kinds) {
		return nil, errors.Errorf("got %d attribute names but %d kinds", len(attributes), len(kinds))
	}
	cols := make([]Column, len(kinds))
	for i, k := range kinds {
		switch k {
		case KindU8:
			cols[i] = U8Column{}
		case KindU8x3:
			cols[i] = U8x3Column{}
		case KindF32:
			cols[i] = F32Column{}
		case KindF64:
			cols[i] = F64Column{}
		default:
			return nil, errors.Errorf("unknown attribute kind %d", k)
		}
	}
	return &Batch{Attributes: attributes, Columns: cols}, nil
}

// Len returns the number of points in the batch.
func (b *Batch) Len() int {
	return len(b.Positions)
}

// Column returns the column stored under the given attribute name.
func (b *Batch) Column(attribute string) (Column, bool) {
	for i, name := range b.Attributes {
		if name == attribute {
			return b.Columns[i], true
		}
	}
	return nil, false
}

// Validate checks the batch invariant that all columns have the same length
// as the position column.
func (b *Batch) Validate() error {
	if len(b.Attributes) != len(b.Columns) {
		return errors.Errorf("batch has %d attribute names but %d columns", len(b.Attributes), len(b.Columns))
	}
	for i, col := range b.Columns {
		if col.Len() != len(b.Positions) {
			return errors.Errorf("column %q has %d rows but batch has %d positions",
				b.Attributes[i], col.Len(), len(b.Positions))
		}
	}
	return nil
}

// Slice returns a view of the batch restricted to points [i, j). The view
// shares storage with the original batch.
func (b *Batch) Slice(i, j int) *Batch {
	out := &Batch{
		Positions:  b.Positions[i:j],
		Attributes: b.Attributes,
		Columns:    make([]Column, len(b.Columns)),
	}
	for c, col := range b.Columns {
		out.Columns[c] = col.slice(i, j)
	}
	return out
}

// Filter returns a new batch holding only the points for which keep is true.
func (b *Batch) Filter(keep []bool) *Batch {
	out := &Batch{
		Positions:  make([]r3.Vector, 0, len(b.Positions)),
		Attributes: b.Attributes,
		Columns:    make([]Column, len(b.Columns)),
	}
	for i, k := range keep {
		if k {
			out.Positions = append(out.Positions, b.Positions[i])
		}
	}
	for c, col := range b.Columns {
		out.Columns[c] = col.filter(keep)
	}
	return out
}

// Append concatenates other onto the batch in place. The attribute layouts
// must match.
func (b *Batch) Append(other *Batch) error {
	if len(b.Attributes) != len(other.Attributes) {
		return errors.Errorf("attribute layout mismatch, %v vs %v", b.Attributes, other.Attributes)
	}
	for i := range b.Attributes {
		if b.Attributes[i] != other.Attributes[i] {
			return errors.Errorf("attribute layout mismatch, %v vs %v", b.Attributes, other.Attributes)
		}
		if b.Columns[i].Kind() != other.Columns[i].Kind() {
			return errors.Errorf("column %q kind mismatch, %s vs %s",
				b.Attributes[i], b.Columns[i].Kind(), other.Columns[i].Kind())
		}
	}
	b.Positions = append(b.Positions, other.Positions...)
	for i := range b.Columns {
		b.Columns[i] = b.Columns[i].append(other.Columns[i])
	}
	return nil
}

// Project returns a view of the batch restricted to the requested attributes
// in the requested order. It fails if an attribute is absent.
func (b *Batch) Project(attributes []string) (*Batch, error) {
	out := &Batch{
		Positions:  b.Positions,
		Attributes: make([]string, 0, len(attributes)),
		Columns:    make([]Column, 0, len(attributes)),
	}
	for _, name := range attributes {
		col, ok := b.Column(name)
		if !ok {
			return nil, errors.Errorf("batch has no attribute %q", name)
		}
		out.Attributes = append(out.Attributes, name)
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

// BytesPerPoint returns the encoded size of one point given the batch's
// attribute layout, used to split batches below wire message size ceilings.
func (b *Batch) BytesPerPoint() int {
	n := 3 * 8 // position
	for _, col := range b.Columns {
		n += col.Kind().ByteWidth()
	}
	return n
}
