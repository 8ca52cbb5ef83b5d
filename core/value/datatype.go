package value

import (
	"fmt"
	"strings"
)

// DataType discriminates how option content is cast. It has no ordering.
type DataType string

const (
	TypeString    DataType = "string"
	TypeInteger   DataType = "integer"
	TypeFloat     DataType = "float"
	TypeBoolean   DataType = "boolean"
	TypeDate      DataType = "date"
	TypeDatetime  DataType = "datetime"
	TypeTimestamp DataType = "timestamp"
)

// DataTypes lists every supported data type.
func DataTypes() []DataType {
	return []DataType{
		TypeString, TypeInteger, TypeFloat, TypeBoolean,
		TypeDate, TypeDatetime, TypeTimestamp,
	}
}

// ParseDataType parses a data type name. Matching trims whitespace and
// ignores case.
func ParseDataType(s string) (DataType, error) {
	t := DataType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported data types.
func (t DataType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean,
		TypeDate, TypeDatetime, TypeTimestamp:
		return true
	default:
		return false
	}
}

func (t DataType) String() string {
	return string(t)
}

// UnmarshalYAML accepts any casing, e.g. "Integer".
func (t *DataType) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
