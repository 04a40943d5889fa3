/*
 * Copyright 2025 BorealDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package boreal

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RowBinary layout: all fixed-width scalars are little-endian; strings
// and arrays carry an unsigned varint length prefix; nullable columns
// carry a one-byte presence flag (1 = null, 0 = value follows); fixed
// strings are raw bytes of the declared size.

// maxArrayDepth bounds recognized array nesting.
const maxArrayDepth = 8

// Bounds on decoded length prefixes; larger declarations are malformed.
const (
	maxStringSize = 1 << 30
	maxArrayLen   = 1 << 27
)

type encodeFunc func(dst []byte, v Value) ([]byte, error)

type decodeFunc func(r *listReader) (Value, error)

// RowCodec converts rows of one RowType to and from their RowBinary
// representation. The per-column procedures are built once, when the
// codec is compiled, so encoding and decoding dispatch over a fixed
// table instead of inspecting types per row.
//
// A codec is stateless and safe for concurrent use.
type RowCodec struct {
	typ RowType
	enc []encodeFunc
	dec []decodeFunc
}

// CompileRow builds a codec for the given row type. It fails if any
// column declares a type the codec does not recognize, nests arrays
// beyond the supported depth, or wraps a composite type in Nullable.
func CompileRow(typ RowType) (*RowCodec, error) {
	c := &RowCodec{
		typ: typ,
		enc: make([]encodeFunc, len(typ)),
		dec: make([]decodeFunc, len(typ)),
	}
	for i, col := range typ {
		enc, dec, err := compileColumn(col.Type, 0)
		if err != nil {
			return nil, fmt.Errorf("column %d (%s): %w", i, col.Name, err)
		}
		c.enc[i] = enc
		c.dec[i] = dec
	}
	return c, nil
}

// Type returns the row type this codec was compiled for.
func (c *RowCodec) Type() RowType {
	return c.typ
}

// AppendRow encodes one row onto dst and returns the extended slice. The
// number and types of values must match the row type; a mismatch reports
// the offending field and leaves no guarantee about dst's extra content.
func (c *RowCodec) AppendRow(dst []byte, row []Value) ([]byte, error) {
	if len(row) != len(c.typ) {
		return dst, fmt.Errorf("row has %d values, type %s has %d columns", len(row), c.typ, len(c.typ))
	}
	var err error
	for i, enc := range c.enc {
		dst, err = enc(dst, row[i])
		if err != nil {
			return dst, fmt.Errorf("field %d (%s %s): %w", i, c.typ[i].Name, c.typ[i].Type, err)
		}
	}
	return dst, nil
}

// decodeRow reads one full row through the reader without committing.
// errNeedMore means the buffered bytes do not complete a row; the caller
// discards the reader and retries later from the same position.
func (c *RowCodec) decodeRow(r *listReader) ([]Value, error) {
	row := make([]Value, len(c.dec))
	for i, dec := range c.dec {
		v, err := dec(r)
		if err != nil {
			if err == errNeedMore {
				return nil, err
			}
			return nil, fmt.Errorf("field %d (%s %s): %w", i, c.typ[i].Name, c.typ[i].Type, err)
		}
		row[i] = v
	}
	return row, nil
}

func compileColumn(t ColumnType, depth int) (encodeFunc, decodeFunc, error) {
	switch t.Kind {
	case KindInt8:
		return encInt8, decInt8, nil
	case KindInt16:
		return encInt16, decInt16, nil
	case KindInt32:
		return encInt32, decInt32, nil
	case KindInt64:
		return encInt64, decInt64, nil
	case KindInt128:
		return encInt128, decInt128, nil
	case KindUInt8:
		return encUInt8, decUInt8, nil
	case KindUInt16:
		return encUInt16, decUInt16, nil
	case KindUInt32:
		return encUInt32, decUInt32, nil
	case KindUInt64:
		return encUInt64, decUInt64, nil
	case KindUInt128:
		return encUInt128, decUInt128, nil
	case KindFloat32:
		return encFloat32, decFloat32, nil
	case KindFloat64:
		return encFloat64, decFloat64, nil
	case KindBool:
		return encBool, decBool, nil
	case KindString:
		return encString, decString, nil
	case KindFixedString:
		return compileFixedString(t.Size)
	case KindNullable:
		return compileNullable(t, depth)
	case KindArray:
		return compileArray(t, depth)
	case KindEnum8:
		return compileEnum8(t.Names)
	case KindEnum16:
		return compileEnum16(t.Names)
	default:
		return nil, nil, fmt.Errorf("unrecognized column kind %s", t.Kind)
	}
}

func compileFixedString(size int) (encodeFunc, decodeFunc, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("FixedString size must be positive, got %d", size)
	}
	enc := func(dst []byte, v Value) ([]byte, error) {
		p, ok := v.([]byte)
		if !ok {
			return dst, typeMismatch("[]byte", v)
		}
		if len(p) != size {
			return dst, fmt.Errorf("FixedString(%d) value has %d bytes", size, len(p))
		}
		return append(dst, p...), nil
	}
	dec := func(r *listReader) (Value, error) {
		p, err := r.next(size)
		if err != nil {
			return nil, err
		}
		out := make([]byte, size)
		copy(out, p)
		return out, nil
	}
	return enc, dec, nil
}

func compileNullable(t ColumnType, depth int) (encodeFunc, decodeFunc, error) {
	if t.Elem == nil {
		return nil, nil, fmt.Errorf("Nullable requires an element type")
	}
	switch t.Elem.Kind {
	case KindNullable, KindArray:
		return nil, nil, fmt.Errorf("Nullable cannot wrap %s", t.Elem.Kind)
	}
	encElem, decElem, err := compileColumn(*t.Elem, depth)
	if err != nil {
		return nil, nil, err
	}
	enc := func(dst []byte, v Value) ([]byte, error) {
		if v == nil {
			return append(dst, 1), nil
		}
		return encElem(append(dst, 0), v)
	}
	dec := func(r *listReader) (Value, error) {
		flag, err := r.readByte()
		if err != nil {
			return nil, err
		}
		switch flag {
		case 1:
			return nil, nil
		case 0:
			return decElem(r)
		default:
			return nil, fmt.Errorf("invalid null flag %#02x", flag)
		}
	}
	return enc, dec, nil
}

func compileArray(t ColumnType, depth int) (encodeFunc, decodeFunc, error) {
	if t.Elem == nil {
		return nil, nil, fmt.Errorf("Array requires an element type")
	}
	if depth+1 > maxArrayDepth {
		return nil, nil, fmt.Errorf("array nesting exceeds %d levels", maxArrayDepth)
	}
	encElem, decElem, err := compileColumn(*t.Elem, depth+1)
	if err != nil {
		return nil, nil, err
	}
	enc := func(dst []byte, v Value) ([]byte, error) {
		items, ok := v.([]Value)
		if !ok && v != nil {
			return dst, typeMismatch("[]Value", v)
		}
		dst = binary.AppendUvarint(dst, uint64(len(items)))
		for _, item := range items {
			var err error
			dst, err = encElem(dst, item)
			if err != nil {
				return dst, err
			}
		}
		return dst, nil
	}
	dec := func(r *listReader) (Value, error) {
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		if n > maxArrayLen {
			return nil, fmt.Errorf("array length %d exceeds limit", n)
		}
		items := make([]Value, 0, min(int(n), 1024))
		for i := uint64(0); i < n; i++ {
			item, err := decElem(r)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}
	return enc, dec, nil
}

func compileEnum8(names map[int16]string) (encodeFunc, decodeFunc, error) {
	check := func(code int16) error {
		if names == nil {
			return nil
		}
		if _, ok := names[code]; !ok {
			return fmt.Errorf("enum code %d not in dictionary", code)
		}
		return nil
	}
	enc := func(dst []byte, v Value) ([]byte, error) {
		n, ok := v.(int8)
		if !ok {
			return dst, typeMismatch("int8", v)
		}
		if err := check(int16(n)); err != nil {
			return dst, err
		}
		return append(dst, byte(n)), nil
	}
	dec := func(r *listReader) (Value, error) {
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		n := int8(b)
		if err := check(int16(n)); err != nil {
			return nil, err
		}
		return n, nil
	}
	return enc, dec, nil
}

func compileEnum16(names map[int16]string) (encodeFunc, decodeFunc, error) {
	check := func(code int16) error {
		if names == nil {
			return nil
		}
		if _, ok := names[code]; !ok {
			return fmt.Errorf("enum code %d not in dictionary", code)
		}
		return nil
	}
	enc := func(dst []byte, v Value) ([]byte, error) {
		n, ok := v.(int16)
		if !ok {
			return dst, typeMismatch("int16", v)
		}
		if err := check(n); err != nil {
			return dst, err
		}
		return binary.LittleEndian.AppendUint16(dst, uint16(n)), nil
	}
	dec := func(r *listReader) (Value, error) {
		p, err := r.next(2)
		if err != nil {
			return nil, err
		}
		n := int16(binary.LittleEndian.Uint16(p))
		if err := check(n); err != nil {
			return nil, err
		}
		return n, nil
	}
	return enc, dec, nil
}

func typeMismatch(expected string, v Value) error {
	return fmt.Errorf("expected %s, got %T", expected, v)
}

// readUvarint decodes an unsigned varint, distinguishing a buffering
// shortfall (errNeedMore) from a malformed prefix.
func readUvarint(r *listReader) (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < binary.MaxVarintLen64; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			if i == binary.MaxVarintLen64-1 && b > 1 {
				return 0, fmt.Errorf("malformed varint")
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, fmt.Errorf("malformed varint")
}

func encInt8(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(int8)
	if !ok {
		return dst, typeMismatch("int8", v)
	}
	return append(dst, byte(n)), nil
}

func encInt16(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(int16)
	if !ok {
		return dst, typeMismatch("int16", v)
	}
	return binary.LittleEndian.AppendUint16(dst, uint16(n)), nil
}

func encInt32(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(int32)
	if !ok {
		return dst, typeMismatch("int32", v)
	}
	return binary.LittleEndian.AppendUint32(dst, uint32(n)), nil
}

func encInt64(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(int64)
	if !ok {
		return dst, typeMismatch("int64", v)
	}
	return binary.LittleEndian.AppendUint64(dst, uint64(n)), nil
}

func encInt128(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(Int128)
	if !ok {
		return dst, typeMismatch("Int128", v)
	}
	dst = binary.LittleEndian.AppendUint64(dst, n.Lo)
	return binary.LittleEndian.AppendUint64(dst, uint64(n.Hi)), nil
}

func encUInt8(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(uint8)
	if !ok {
		return dst, typeMismatch("uint8", v)
	}
	return append(dst, n), nil
}

func encUInt16(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(uint16)
	if !ok {
		return dst, typeMismatch("uint16", v)
	}
	return binary.LittleEndian.AppendUint16(dst, n), nil
}

func encUInt32(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(uint32)
	if !ok {
		return dst, typeMismatch("uint32", v)
	}
	return binary.LittleEndian.AppendUint32(dst, n), nil
}

func encUInt64(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(uint64)
	if !ok {
		return dst, typeMismatch("uint64", v)
	}
	return binary.LittleEndian.AppendUint64(dst, n), nil
}

func encUInt128(dst []byte, v Value) ([]byte, error) {
	n, ok := v.(UInt128)
	if !ok {
		return dst, typeMismatch("UInt128", v)
	}
	dst = binary.LittleEndian.AppendUint64(dst, n.Lo)
	return binary.LittleEndian.AppendUint64(dst, n.Hi), nil
}

func encFloat32(dst []byte, v Value) ([]byte, error) {
	f, ok := v.(float32)
	if !ok {
		return dst, typeMismatch("float32", v)
	}
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f)), nil
}

func encFloat64(dst []byte, v Value) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return dst, typeMismatch("float64", v)
	}
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(f)), nil
}

func encBool(dst []byte, v Value) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return dst, typeMismatch("bool", v)
	}
	if b {
		return append(dst, 1), nil
	}
	return append(dst, 0), nil
}

func encString(dst []byte, v Value) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return dst, typeMismatch("string", v)
	}
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...), nil
}

func decInt8(r *listReader) (Value, error) {
	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	return int8(b), nil
}

func decInt16(r *listReader) (Value, error) {
	p, err := r.next(2)
	if err != nil {
		return nil, err
	}
	return int16(binary.LittleEndian.Uint16(p)), nil
}

func decInt32(r *listReader) (Value, error) {
	p, err := r.next(4)
	if err != nil {
		return nil, err
	}
	return int32(binary.LittleEndian.Uint32(p)), nil
}

func decInt64(r *listReader) (Value, error) {
	p, err := r.next(8)
	if err != nil {
		return nil, err
	}
	return int64(binary.LittleEndian.Uint64(p)), nil
}

func decInt128(r *listReader) (Value, error) {
	p, err := r.next(16)
	if err != nil {
		return nil, err
	}
	return Int128{
		Lo: binary.LittleEndian.Uint64(p[:8]),
		Hi: int64(binary.LittleEndian.Uint64(p[8:])),
	}, nil
}

func decUInt8(r *listReader) (Value, error) {
	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	return b, nil
}

func decUInt16(r *listReader) (Value, error) {
	p, err := r.next(2)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func decUInt32(r *listReader) (Value, error) {
	p, err := r.next(4)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func decUInt64(r *listReader) (Value, error) {
	p, err := r.next(8)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func decUInt128(r *listReader) (Value, error) {
	p, err := r.next(16)
	if err != nil {
		return nil, err
	}
	return UInt128{
		Lo: binary.LittleEndian.Uint64(p[:8]),
		Hi: binary.LittleEndian.Uint64(p[8:]),
	}, nil
}

func decFloat32(r *listReader) (Value, error) {
	p, err := r.next(4)
	if err != nil {
		return nil, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p)), nil
}

func decFloat64(r *listReader) (Value, error) {
	p, err := r.next(8)
	if err != nil {
		return nil, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p)), nil
}

func decBool(r *listReader) (Value, error) {
	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	return b != 0, nil
}

func decString(r *listReader) (Value, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxStringSize {
		return nil, fmt.Errorf("string length %d exceeds limit", n)
	}
	p, err := r.next(int(n))
	if err != nil {
		return nil, err
	}
	return string(p), nil
}
