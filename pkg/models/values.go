package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value implements driver.Valuer so Slots can be stored as a JSON column.
func (s Slots) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *Slots) Scan(value any) error {
	*s = Slots{}
	b, err := scanBytes(value)
	if err != nil || b == nil {
		return err
	}
	return json.Unmarshal(b, s)
}

// GormDataType makes GORM create a jsonb column on PostgreSQL.
func (Slots) GormDataType() string { return "jsonb" }

// Value implements driver.Valuer so Props can be stored as a JSON column.
func (p Props) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Props) Scan(value any) error {
	*p = Props{}
	b, err := scanBytes(value)
	if err != nil || b == nil {
		return err
	}
	return json.Unmarshal(b, p)
}

// GormDataType makes GORM create a jsonb column on PostgreSQL.
func (Props) GormDataType() string { return "jsonb" }

func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot scan type %T into JSON column", value)
	}
}
