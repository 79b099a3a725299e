package registry

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk form of an exported registry
//
//	is_64bit: true
//	users: [S-1-5-21-1000]
//	keys:
//	  - key: HKU\S-1-5-21-1000\Environment
//	    values:
//	      - {name: UserInitMprLogonScript, type: REG_SZ, data: ""}
type Snapshot struct {
	Is64Bit bool          `yaml:"is_64bit"`
	Users   []string      `yaml:"users"`
	Keys    []SnapshotKey `yaml:"keys"`
}

// SnapshotKey is one key of a snapshot
type SnapshotKey struct {
	Key    string          `yaml:"key"`
	View   string          `yaml:"view,omitempty"` // "wow64_32" for the 32-bit view
	Denied bool            `yaml:"denied,omitempty"`
	Values []SnapshotValue `yaml:"values"`
}

// SnapshotValue is one value of a snapshot key
type SnapshotValue struct {
	Name string      `yaml:"name"`
	Type string      `yaml:"type"`
	Data interface{} `yaml:"data"`
}

// LoadSnapshotFile reads a snapshot from disk
func LoadSnapshotFile(path string) (*MemoryBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return LoadSnapshot(f)
}

// LoadSnapshot decodes a YAML snapshot into a MemoryBackend
func LoadSnapshot(r io.Reader) (*MemoryBackend, error) {
	var snap Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	b := NewMemoryBackend(snap.Is64Bit)
	for _, sid := range snap.Users {
		b.AddUserHive(sid)
	}

	for i, sk := range snap.Keys {
		ref, err := ParseKey(sk.Key)
		if err != nil {
			return nil, fmt.Errorf("snapshot key %d: %w", i, err)
		}
		view := ViewDefault
		switch sk.View {
		case "":
		case View32.String():
			view = View32
		default:
			return nil, fmt.Errorf("snapshot key %s: unknown view %q", sk.Key, sk.View)
		}

		b.CreateKey(ref.Hive, ref.Path, view)
		for _, sv := range sk.Values {
			v, err := sv.decode()
			if err != nil {
				return nil, fmt.Errorf("snapshot value %s\\%s: %w", sk.Key, sv.Name, err)
			}
			b.SetValue(ref.Hive, ref.Path, view, sv.Name, v)
		}
		if sk.Denied {
			b.Deny(ref.Hive, ref.Path, view)
		}
	}
	return b, nil
}

func (sv SnapshotValue) decode() (Value, error) {
	typ := SZ
	if sv.Type != "" {
		var err error
		if typ, err = ParseValueType(sv.Type); err != nil {
			return Value{}, err
		}
	}

	switch typ {
	case SZ, EXPAND_SZ:
		s, err := asString(sv.Data)
		return Value{Type: typ, String: s}, err
	case MULTI_SZ:
		list, ok := sv.Data.([]interface{})
		if !ok && sv.Data != nil {
			return Value{}, fmt.Errorf("REG_MULTI_SZ data must be a list")
		}
		v := Value{Type: typ}
		for _, item := range list {
			s, err := asString(item)
			if err != nil {
				return Value{}, err
			}
			v.Strings = append(v.Strings, s)
		}
		return v, nil
	case DWORD, DWORD_BIG_ENDIAN, QWORD:
		n, ok := sv.Data.(int)
		if !ok || n < 0 {
			return Value{}, fmt.Errorf("%s data must be a non-negative integer", typ)
		}
		return Value{Type: typ, Integer: uint64(n)}, nil
	default:
		s, err := asString(sv.Data)
		if err != nil {
			return Value{}, err
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("%s data must be hex: %w", typ, err)
		}
		return Value{Type: typ, Binary: raw}, nil
	}
}

func asString(data interface{}) (string, error) {
	switch d := data.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	default:
		return "", fmt.Errorf("expected string data, got %T", data)
	}
}
