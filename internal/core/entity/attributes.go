package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Meta is the free-form JSONB bag kept on enrollments, orders, invites and
// tokens (scholarship notes, gateway payloads, client ip).
// Numbers are decoded as json.Number so decimals keep their precision.
type Meta map[string]any

// Scan implements sql.Scanner for reading from PostgreSQL JSONB.
func (m *Meta) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	case map[string]any:
		*m = v
		return nil
	default:
		return fmt.Errorf("unsupported type for Meta: %T", src)
	}

	if len(source) == 0 {
		*m = nil
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(source))
	decoder.UseNumber()

	var result map[string]any
	if err := decoder.Decode(&result); err != nil {
		return fmt.Errorf("decode meta: %w", err)
	}
	*m = result
	return nil
}

// Value implements driver.Valuer for writing to PostgreSQL JSONB.
// A nil bag is stored as an empty object so NOT NULL columns accept it.
func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

// Set stores a value, allocating the map on first use.
func (m *Meta) Set(key string, value any) {
	if *m == nil {
		*m = make(Meta)
	}
	(*m)[key] = value
}

// GetString returns string value or empty string if not found/wrong type.
func (m Meta) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetBool returns bool value or false.
func (m Meta) GetBool(key string) bool {
	v, _ := m[key].(bool)
	return v
}

// GetDecimal returns decimal value with full precision.
func (m Meta) GetDecimal(key string) decimal.Decimal {
	switch v := m[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err == nil {
			return d
		}
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}
