package schema

import (
	"strings"
	"unicode"
)

// classify decides the column kind from the catalog's data type, native type
// name and full column type.
func classify(c *Column, dataType string, knownEnum func(string) bool) {
	dt := strings.ToLower(strings.TrimSpace(dataType))
	native := strings.TrimSpace(c.NativeType)
	full := strings.ToLower(strings.TrimSpace(c.ColumnType))

	switch {
	case dt == "array" || strings.HasPrefix(native, "_"):
		c.Kind = KindArray
		c.ElementType = strings.TrimPrefix(native, "_")
		c.ElementEnum = full == "enum[]" || (knownEnum != nil && knownEnum(c.ElementType))

	case full == "enum":
		c.Kind = KindEnum

	case strings.HasPrefix(full, "enum("):
		c.Kind = KindEnum
		c.EnumLabels = ParseEnumLabels(c.ColumnType)

	case dt == "user-defined" && knownEnum != nil && knownEnum(native):
		c.Kind = KindEnum

	case isTimestampType(dt) || isTimestampType(strings.ToLower(native)):
		c.Kind = KindTimestamp

	default:
		c.Kind = KindScalar
	}
}

func isTimestampType(t string) bool {
	switch {
	case strings.HasPrefix(t, "timestamp"):
		return true
	case t == "datetime", t == "datetime2", t == "smalldatetime", t == "datetimeoffset":
		return true
	}
	return false
}

// ParseEnumLabels extracts the labels of a MySQL inline enum declaration,
// e.g. enum('a','it''s') -> [a it's].
func ParseEnumLabels(columnType string) []string {
	open := strings.Index(columnType, "(")
	end := strings.LastIndex(columnType, ")")
	if open < 0 || end <= open {
		return nil
	}
	body := columnType[open+1 : end]

	var labels []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case !inQuote && ch == '\'':
			inQuote = true
			cur.Reset()
		case inQuote && ch == '\'' && i+1 < len(body) && body[i+1] == '\'':
			cur.WriteByte('\'')
			i++
		case inQuote && ch == '\\' && i+1 < len(body):
			cur.WriteByte(body[i+1])
			i++
		case inQuote && ch == '\'':
			inQuote = false
			labels = append(labels, cur.String())
		case inQuote:
			cur.WriteByte(ch)
		}
	}
	return labels
}

// Family groups scalar types by the zero value they take.
type Family int

const (
	FamilyOther Family = iota
	FamilyText
	FamilyInteger
	FamilyNumeric
	FamilyBool
	FamilyTemporal
	FamilyUUID
	FamilyJSON
	FamilyBinary
)

func (f Family) String() string {
	return [...]string{"other", "text", "integer", "numeric", "bool", "temporal", "uuid", "json", "binary"}[f]
}

// Family classifies the column's declared type.
func (c *Column) Family() Family {
	for _, t := range []string{c.DataType, c.NativeType, c.ColumnType} {
		if f := typeFamily(t); f != FamilyOther {
			return f
		}
	}
	return FamilyOther
}

var integerTypes = map[string]bool{
	"int": true, "integer": true, "tinyint": true, "smallint": true, "mediumint": true, "bigint": true,
	"serial": true, "smallserial": true, "bigserial": true,
}

func typeFamily(t string) Family {
	words := strings.FieldsFunc(strings.ToLower(t), func(r rune) bool { return !unicode.IsLetter(r) })
	if len(words) == 0 {
		return FamilyOther
	}
	w := words[0]
	switch {
	case w == "bool" || w == "boolean" || w == "bit":
		return FamilyBool
	case w == "uuid" || w == "uniqueidentifier":
		return FamilyUUID
	case w == "json" || w == "jsonb":
		return FamilyJSON
	case w == "bytea" || strings.HasSuffix(w, "blob") || strings.HasSuffix(w, "binary") || w == "raw" || w == "image":
		return FamilyBinary
	case w == "date" || w == "time" || w == "timetz" || w == "year" || isTimestampType(w):
		return FamilyTemporal
	case integerTypes[w]:
		return FamilyInteger
	case w == "numeric" || w == "decimal" || w == "float" || w == "double" || w == "real" ||
		w == "money" || w == "smallmoney" || w == "number":
		return FamilyNumeric
	case strings.Contains(w, "char") || strings.HasSuffix(w, "text") || strings.HasSuffix(w, "clob") ||
		w == "citext" || w == "string" || w == "name" || w == "enum":
		return FamilyText
	}
	return FamilyOther
}
