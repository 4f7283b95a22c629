package adapter

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/value"
)

var numericTypes = []string{
	"INT", "DOUBLE", "FLOAT", "REAL", "DECIMAL", "NUMERIC", "NUMBER",
	"BOOL", "SERIAL", "MONEY", "DATE", "TIMESTAMP",
}

var characterTypes = []string{
	"CHAR", "TEXT", "STRING", "CLOB", "UUID", "JSON", "VARCHAR", "NAME", "BLOB", "BYTEA",
}

// KindOfType maps a driver type name to a variable kind. Dates and
// timestamps are numeric (days since 1960-01-01). known is false for
// empty or unrecognized names.
func KindOfType(typeName string) (kind value.Kind, known bool) {
	t := strings.ToUpper(strings.TrimSpace(typeName))
	if t == "" {
		return value.Numeric, false
	}
	for _, c := range characterTypes {
		if strings.Contains(t, c) {
			return value.Character, true
		}
	}
	for _, n := range numericTypes {
		if strings.Contains(t, n) {
			return value.Numeric, true
		}
	}
	return value.Character, false
}

// sniffKind decides a column's kind from its scanned values: numeric when
// every non-null value converts to a number.
func sniffKind(records [][]any, col int) value.Kind {
	for _, rec := range records {
		if rec[col] == nil {
			continue
		}
		if v := toValue(rec[col]); v.IsCharacter() {
			return value.Character
		}
	}
	return value.Numeric
}

// toValue converts a scanned driver value. Types FromAny does not know,
// such as decimals, go through their string form.
func toValue(x any) value.Value {
	if v, err := value.FromAny(x); err == nil {
		return v
	}
	s := fmt.Sprint(x)
	if v, err := value.Coerce(value.Char(s)); err == nil {
		return v
	}
	return value.Char(s)
}
