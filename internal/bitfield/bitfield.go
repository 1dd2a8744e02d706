// Package bitfield packs and unpacks named multi-bit fields within an 8, 16,
// 24 or 32-bit little-endian word.
//
// A Layout lists its fields in the order they were authored. LSBFirst
// layouts list the field occupying bit 0 first; MSBFirst layouts list the
// field occupying the most significant bit first, the way a C bitfield is
// declared for a big-endian target. Both describe the same wire format, so a
// layout and its Reverse always produce identical bytes.
package bitfield

import (
	"errors"
	"fmt"
)

var (
	// ErrWidth is returned when a layout's field widths do not sum to the
	// layout's word width, or the word width is unsupported.
	ErrWidth = errors.New("bitfield: field widths do not match word width")

	// ErrValueRange is returned when a value does not fit its field.
	ErrValueRange = errors.New("bitfield: value out of range for field")

	// ErrShortBuffer is returned when a buffer is smaller than the word.
	ErrShortBuffer = errors.New("bitfield: buffer shorter than word")
)

// An Order is the order in which a Layout's fields are listed.
type Order uint8

const (
	// LSBFirst lists the field at bit 0 first.
	LSBFirst Order = iota

	// MSBFirst lists the field at the most significant bit first.
	MSBFirst
)

// String returns the string representation of an Order.
func (o Order) String() string {
	switch o {
	case LSBFirst:
		return "lsb-first"
	case MSBFirst:
		return "msb-first"
	default:
		return fmt.Sprintf("unknown(%d)", o)
	}
}

// A Field is a named run of bits.
type Field struct {
	Name  string
	Width uint8
}

// F is shorthand for constructing a Field.
func F(name string, width uint8) Field {
	return Field{Name: name, Width: width}
}

// Values holds one value per field, indexed like Layout.Fields.
type Values []uint32

// A Layout describes how a word is divided into fields. Layouts are
// immutable once constructed.
type Layout struct {
	Name   string
	Order  Order
	Width  uint8
	Fields []Field

	// shift[i] is the bit offset of Fields[i] from bit 0.
	shift []uint8
	index map[string]int
}

// New validates and constructs a Layout.
func New(name string, order Order, width uint8, fields ...Field) (*Layout, error) {
	l := &Layout{
		Name:   name,
		Order:  order,
		Width:  width,
		Fields: fields,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	l.shift = make([]uint8, len(fields))
	l.index = make(map[string]int, len(fields))

	var off uint8
	for i, f := range fields {
		switch order {
		case LSBFirst:
			l.shift[i] = off
		case MSBFirst:
			l.shift[i] = width - off - f.Width
		}
		off += f.Width

		if f.Name != "" {
			l.index[f.Name] = i
		}
	}

	return l, nil
}

// MustNew is like New but panics on an invalid layout. It is meant for
// package-level layout tables, so a bad layout fails at process start.
func MustNew(name string, order Order, width uint8, fields ...Field) *Layout {
	l, err := New(name, order, width, fields...)
	if err != nil {
		panic(err)
	}

	return l
}

// Validate checks that the field widths sum to the word width exactly.
func (l *Layout) Validate() error {
	switch l.Width {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: layout %q: unsupported width %d", ErrWidth, l.Name, l.Width)
	}
	if l.Order != LSBFirst && l.Order != MSBFirst {
		return fmt.Errorf("bitfield: layout %q: unknown order %d", l.Name, l.Order)
	}

	var sum int
	for _, f := range l.Fields {
		if f.Width == 0 {
			return fmt.Errorf("%w: layout %q: zero-width field %q", ErrWidth, l.Name, f.Name)
		}
		sum += int(f.Width)
	}
	if sum != int(l.Width) {
		return fmt.Errorf("%w: layout %q: fields sum to %d, want %d", ErrWidth, l.Name, sum, l.Width)
	}

	return nil
}

// Size returns the number of bytes in the layout's word.
func (l *Layout) Size() int { return int(l.Width) / 8 }

// Reverse returns the equivalent layout authored in the opposite order.
func (l *Layout) Reverse() *Layout {
	fields := make([]Field, len(l.Fields))
	for i, f := range l.Fields {
		fields[len(fields)-1-i] = f
	}

	order := MSBFirst
	if l.Order == MSBFirst {
		order = LSBFirst
	}

	return MustNew(l.Name, order, l.Width, fields...)
}

// Index returns the position of the named field, or -1.
func (l *Layout) Index(name string) int {
	i, ok := l.index[name]
	if !ok {
		return -1
	}
	return i
}

// Get returns the value of the named field from v, or 0 if the layout has
// no such field.
func (l *Layout) Get(v Values, name string) uint32 {
	i := l.Index(name)
	if i < 0 || i >= len(v) {
		return 0
	}
	return v[i]
}

// Split divides a word into its field values.
func (l *Layout) Split(word uint32) Values {
	v := make(Values, len(l.Fields))
	for i, f := range l.Fields {
		v[i] = (word >> l.shift[i]) & mask(f.Width)
	}
	return v
}

// Join combines field values into a word.
func (l *Layout) Join(v Values) (uint32, error) {
	if len(v) != len(l.Fields) {
		return 0, fmt.Errorf("bitfield: layout %q: got %d values, want %d", l.Name, len(v), len(l.Fields))
	}

	var word uint32
	for i, f := range l.Fields {
		if v[i] > mask(f.Width) {
			return 0, fmt.Errorf("%w: %s.%s = %d", ErrValueRange, l.Name, f.Name, v[i])
		}
		word |= v[i] << l.shift[i]
	}

	return word, nil
}

// Unpack reads the layout's word from the start of b.
func (l *Layout) Unpack(b []byte) (Values, error) {
	if len(b) < l.Size() {
		return nil, ErrShortBuffer
	}

	var word uint32
	for i := 0; i < l.Size(); i++ {
		word |= uint32(b[i]) << (8 * i)
	}

	return l.Split(word), nil
}

// Pack encodes v as the layout's little-endian word.
func (l *Layout) Pack(v Values) ([]byte, error) {
	word, err := l.Join(v)
	if err != nil {
		return nil, err
	}

	b := make([]byte, l.Size())
	for i := range b {
		b[i] = byte(word >> (8 * i))
	}

	return b, nil
}

func mask(width uint8) uint32 {
	if width >= 32 {
		return 0xffffffff
	}
	return 1<<width - 1
}
