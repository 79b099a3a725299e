package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType is the registry data type (same numbering as REG_*)
type ValueType uint32

const (
	NONE                       ValueType = 0
	SZ                         ValueType = 1
	EXPAND_SZ                  ValueType = 2
	BINARY                     ValueType = 3
	DWORD                      ValueType = 4
	DWORD_BIG_ENDIAN           ValueType = 5
	LINK                       ValueType = 6
	MULTI_SZ                   ValueType = 7
	RESOURCE_LIST              ValueType = 8
	FULL_RESOURCE_DESCRIPTOR   ValueType = 9
	RESOURCE_REQUIREMENTS_LIST ValueType = 10
	QWORD                      ValueType = 11
)

func (t ValueType) String() string {
	switch t {
	case NONE:
		return "REG_NONE"
	case SZ:
		return "REG_SZ"
	case EXPAND_SZ:
		return "REG_EXPAND_SZ"
	case BINARY:
		return "REG_BINARY"
	case DWORD:
		return "REG_DWORD"
	case DWORD_BIG_ENDIAN:
		return "REG_DWORD_BIG_ENDIAN"
	case LINK:
		return "REG_LINK"
	case MULTI_SZ:
		return "REG_MULTI_SZ"
	case QWORD:
		return "REG_QWORD"
	default:
		return fmt.Sprintf("REG_UNKNOWN(%d)", uint32(t))
	}
}

// ParseValueType accepts REG_SZ style names
func ParseValueType(s string) (ValueType, error) {
	for t := NONE; t <= QWORD; t++ {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return NONE, fmt.Errorf("unknown registry value type %q", s)
}

// Value is a decoded registry value. Only the field matching Type is set.
type Value struct {
	Type    ValueType
	String  string
	Strings []string
	Integer uint64
	Binary  []byte
}

func SzValue(s string) Value         { return Value{Type: SZ, String: s} }
func ExpandSzValue(s string) Value   { return Value{Type: EXPAND_SZ, String: s} }
func DwordValue(n uint32) Value      { return Value{Type: DWORD, Integer: uint64(n)} }
func QwordValue(n uint64) Value      { return Value{Type: QWORD, Integer: n} }
func MultiSzValue(s ...string) Value { return Value{Type: MULTI_SZ, Strings: append([]string(nil), s...)} }
func BinaryValue(b []byte) Value     { return Value{Type: BINARY, Binary: append([]byte(nil), b...)} }

// IsString reports whether the value holds REG_SZ or REG_EXPAND_SZ data
func (v Value) IsString() bool {
	return v.Type == SZ || v.Type == EXPAND_SZ
}

// Text renders the value data the way it is shown in reports
func (v Value) Text() string {
	switch v.Type {
	case SZ, EXPAND_SZ:
		return v.String
	case MULTI_SZ:
		return strings.Join(v.Strings, "; ")
	case DWORD, DWORD_BIG_ENDIAN, QWORD:
		return strconv.FormatUint(v.Integer, 10)
	default:
		return fmt.Sprintf("%x", v.Binary)
	}
}

// Equal compares type and data
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.String != o.String || v.Integer != o.Integer {
		return false
	}
	if len(v.Strings) != len(o.Strings) || len(v.Binary) != len(o.Binary) {
		return false
	}
	for i := range v.Strings {
		if v.Strings[i] != o.Strings[i] {
			return false
		}
	}
	for i := range v.Binary {
		if v.Binary[i] != o.Binary[i] {
			return false
		}
	}
	return true
}

func (v Value) clone() Value {
	v.Strings = append([]string(nil), v.Strings...)
	v.Binary = append([]byte(nil), v.Binary...)
	return v
}
