package models

import (
	"database/sql/driver"
	"encoding/json"
)

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), s)
}
