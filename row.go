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
	"fmt"
	"strings"
)

// Value stores the contents of a single cell of a row.
//
// The concrete type depends on the column type: int8..int64 and
// uint8..uint64 for the fixed-width integers, Int128/UInt128 for the
// 128-bit integers, float32/float64, bool, string, []byte for fixed
// strings, []Value for arrays, and nil for a null cell of a nullable
// column. Enum cells are int8 or int16.
type Value any

// Int128 is a signed 128-bit integer in two little-endian halves.
type Int128 struct {
	Lo uint64
	Hi int64
}

// UInt128 is an unsigned 128-bit integer in two little-endian halves.
type UInt128 struct {
	Lo uint64
	Hi uint64
}

// Kind identifies one of the column kinds the row codec recognizes.
type Kind uint8

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindInt64
	KindInt128
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindUInt128
	KindFloat32
	KindFloat64
	KindBool
	KindString
	KindFixedString
	KindNullable
	KindArray
	KindEnum8
	KindEnum16
)

var kindNames = [...]string{
	KindInt8:        "Int8",
	KindInt16:       "Int16",
	KindInt32:       "Int32",
	KindInt64:       "Int64",
	KindInt128:      "Int128",
	KindUInt8:       "UInt8",
	KindUInt16:      "UInt16",
	KindUInt32:      "UInt32",
	KindUInt64:      "UInt64",
	KindUInt128:     "UInt128",
	KindFloat32:     "Float32",
	KindFloat64:     "Float64",
	KindBool:        "Bool",
	KindFixedString: "FixedString",
	KindString:      "String",
	KindNullable:    "Nullable",
	KindArray:       "Array",
	KindEnum8:       "Enum8",
	KindEnum16:      "Enum16",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ColumnType describes the declared type of one column. Scalar kinds are
// available as package-level values (Int32, String, ...); composite kinds
// are built with Nullable, Array, FixedString, Enum8 and Enum16.
type ColumnType struct {
	Kind Kind
	// Elem is the element type for Nullable and Array columns.
	Elem *ColumnType
	// Size is the byte length of a FixedString column.
	Size int
	// Names is the optional value dictionary of an enum column. When set,
	// the codec rejects integer codes outside the dictionary.
	Names map[int16]string
}

var (
	Int8    = ColumnType{Kind: KindInt8}
	Int16   = ColumnType{Kind: KindInt16}
	Int32   = ColumnType{Kind: KindInt32}
	Int64   = ColumnType{Kind: KindInt64}
	Int128T = ColumnType{Kind: KindInt128}

	UInt8    = ColumnType{Kind: KindUInt8}
	UInt16   = ColumnType{Kind: KindUInt16}
	UInt32   = ColumnType{Kind: KindUInt32}
	UInt64   = ColumnType{Kind: KindUInt64}
	UInt128T = ColumnType{Kind: KindUInt128}

	Float32 = ColumnType{Kind: KindFloat32}
	Float64 = ColumnType{Kind: KindFloat64}
	Bool    = ColumnType{Kind: KindBool}
	String  = ColumnType{Kind: KindString}
)

// Nullable wraps elem into a nullable column type.
func Nullable(elem ColumnType) ColumnType {
	return ColumnType{Kind: KindNullable, Elem: &elem}
}

// Array builds an array column type with the given element type.
func Array(elem ColumnType) ColumnType {
	return ColumnType{Kind: KindArray, Elem: &elem}
}

// FixedString builds a fixed-length byte string column type of n bytes.
func FixedString(n int) ColumnType {
	return ColumnType{Kind: KindFixedString, Size: n}
}

// Enum8 builds an 8-bit enum column type. names may be nil to skip
// dictionary validation.
func Enum8(names map[int16]string) ColumnType {
	return ColumnType{Kind: KindEnum8, Names: names}
}

// Enum16 builds a 16-bit enum column type. names may be nil to skip
// dictionary validation.
func Enum16(names map[int16]string) ColumnType {
	return ColumnType{Kind: KindEnum16, Names: names}
}

// String renders the type the way BorealDB declares it.
func (t ColumnType) String() string {
	switch t.Kind {
	case KindNullable, KindArray:
		elem := "?"
		if t.Elem != nil {
			elem = t.Elem.String()
		}
		return fmt.Sprintf("%s(%s)", t.Kind, elem)
	case KindFixedString:
		return fmt.Sprintf("FixedString(%d)", t.Size)
	default:
		return t.Kind.String()
	}
}

// Column describes a single column: its name and declared type.
type Column struct {
	Name string
	Type ColumnType
}

// RowType is the ordered column list of a row. The order must match the
// column order the server uses for the target table, and every encoded or
// decoded record carries exactly one value per column.
type RowType []Column

func (t RowType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, col := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		b.WriteByte(' ')
		b.WriteString(col.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}
