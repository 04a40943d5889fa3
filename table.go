package boreal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Table names one table, optionally qualified by a database.
type Table struct {
	c *Client

	// Database is the name of the database. Optional; the client's
	// default database applies when empty.
	Database string
	// Name is the name of the table.
	Name string
}

func (c *Client) Table(name string) *Table {
	return &Table{
		c:    c,
		Name: name,
	}
}

// Identifier returns the quoted, qualified table identifier for use in
// statement text.
func (t *Table) Identifier() string {
	var b bytes.Buffer
	if t.Database != "" {
		b.WriteString(quoteIdent(t.Database, '`'))
		b.WriteByte('.')
	}
	b.WriteString(quoteIdent(t.Name, '`'))
	return b.String()
}

func (t *Table) Drop(ctx context.Context) error {
	return t.c.Query(fmt.Sprintf(`DROP TABLE %s`, t.Identifier())).Exec(ctx)
}

// RowType introspects the table's columns from the system catalog and
// returns them as a row type, so a codec can be compiled straight from a
// live table.
func (t *Table) RowType(ctx context.Context) (RowType, error) {
	db := t.Database
	if db == "" {
		db = t.c.config.Database
	}
	if db == "" {
		db = "default"
	}

	cur, err := t.c.Query(fmt.Sprintf(`
		SELECT name, type FROM system.columns
		WHERE database = %s AND table = %s
		ORDER BY position
	`, quoteIdent(db, '\''), quoteIdent(t.Name, '\''))).Rows(ctx, RowType{
		{Name: "name", Type: String},
		{Name: "type", Type: String},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var typ RowType
	for {
		row, err := cur.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		name := row[0].(string)
		colType, err := ParseColumnType(row[1].(string))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		typ = append(typ, Column{Name: name, Type: colType})
	}
	if len(typ) == 0 {
		return nil, fmt.Errorf("table %s has no columns", t.Identifier())
	}
	return typ, nil
}

// ParseColumnType parses a type declaration the way the server renders
// it, e.g. "Int32", "Nullable(String)", "Array(Array(UInt8))",
// "FixedString(16)" or "Enum8('a' = 1, 'b' = 2)". LowCardinality
// wrappers are transparent on this wire and parse to their inner type.
func ParseColumnType(s string) (ColumnType, error) {
	s = strings.TrimSpace(s)

	if inner, ok := typeArg(s, "LowCardinality"); ok {
		return ParseColumnType(inner)
	}
	if inner, ok := typeArg(s, "Nullable"); ok {
		elem, err := ParseColumnType(inner)
		if err != nil {
			return ColumnType{}, err
		}
		return Nullable(elem), nil
	}
	if inner, ok := typeArg(s, "Array"); ok {
		elem, err := ParseColumnType(inner)
		if err != nil {
			return ColumnType{}, err
		}
		return Array(elem), nil
	}
	if inner, ok := typeArg(s, "FixedString"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(inner))
		if err != nil || n <= 0 {
			return ColumnType{}, fmt.Errorf("invalid FixedString size %q", inner)
		}
		return FixedString(n), nil
	}
	if inner, ok := typeArg(s, "Enum8"); ok {
		names, err := parseEnumNames(inner, -128, 127)
		if err != nil {
			return ColumnType{}, err
		}
		return Enum8(names), nil
	}
	if inner, ok := typeArg(s, "Enum16"); ok {
		names, err := parseEnumNames(inner, -32768, 32767)
		if err != nil {
			return ColumnType{}, err
		}
		return Enum16(names), nil
	}

	for k, name := range kindNames {
		if name == s {
			switch kind := Kind(k); kind {
			case KindFixedString, KindNullable, KindArray, KindEnum8, KindEnum16:
				// These require arguments.
			default:
				return ColumnType{Kind: kind}, nil
			}
		}
	}
	return ColumnType{}, fmt.Errorf("unrecognized type %q", s)
}

// typeArg matches "name(arg)" and returns the raw argument text.
func typeArg(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name) {
		return "", false
	}
	rest := s[len(name):]
	if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// parseEnumNames parses "'a' = 1, 'b' = 2" into a code dictionary.
func parseEnumNames(s string, lo, hi int64) (map[int16]string, error) {
	names := make(map[int16]string)
	for _, part := range splitEnumEntries(s) {
		name, code, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid enum entry %q", part)
		}
		name = strings.TrimSpace(name)
		if len(name) < 2 || name[0] != '\'' || name[len(name)-1] != '\'' {
			return nil, fmt.Errorf("invalid enum name %q", name)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(code), 10, 16)
		if err != nil || n < lo || n > hi {
			return nil, fmt.Errorf("invalid enum code %q", code)
		}
		names[int16(n)] = name[1 : len(name)-1]
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("empty enum declaration")
	}
	return names, nil
}

// splitEnumEntries splits on commas outside single quotes.
func splitEnumEntries(s string) []string {
	var parts []string
	depth := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if depth && i+1 < len(s) && s[i+1] == '\'' {
				i++ // escaped quote
				continue
			}
			depth = !depth
		case ',':
			if !depth {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

func quoteIdent(s string, r rune) string {
	var b bytes.Buffer
	b.WriteRune(r)
	for _, c := range s {
		switch c {
		case '\t':
			b.WriteString("\\t")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\\':
			b.WriteString("\\\\")
		default:
			if c == r {
				b.WriteRune('\\')
				b.WriteRune(c)
				break
			}

			if c < 0x20 {
				b.WriteString(fmt.Sprintf("\\x%02x", c))
				break
			}

			b.WriteRune(c)
		}
	}
	b.WriteRune(r)
	return b.String()
}
