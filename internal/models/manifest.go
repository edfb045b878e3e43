package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ManifestShape records how a manifest arrived on the wire.
type ManifestShape int

const (
	ManifestEmpty ManifestShape = iota
	ManifestList
	ManifestObject
)

var ErrMalformedManifest = errors.New("malformed file manifest")

// ManifestEntry is one file of an analysis result. Key is only set for
// manifests that arrived as an object keyed by path.
type ManifestEntry struct {
	Key   string
	Value json.RawMessage
}

// FileManifest is the ordered file collection of a result or record. The
// backend sends it as a JSON array, as an object keyed by path, or as a string
// holding either encoding; all of them decode to the same entries, in the
// order they arrived. Serialized records the string form.
type FileManifest struct {
	Shape      ManifestShape
	Serialized bool
	Entries    []ManifestEntry
}

// Len is the module count shown for a manifest.
func (m FileManifest) Len() int { return len(m.Entries) }

func (m *FileManifest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = FileManifest{}
		return nil
	}
	if b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedManifest, err)
		}
		inb := bytes.TrimSpace([]byte(inner))
		if len(inb) == 0 || (inb[0] != '[' && inb[0] != '{') {
			return fmt.Errorf("%w: string does not hold a collection", ErrMalformedManifest)
		}
		if err := m.UnmarshalJSON(inb); err != nil {
			return err
		}
		m.Serialized = true
		return nil
	}

	switch b[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedManifest, err)
		}
		entries := make([]ManifestEntry, 0, len(items))
		for _, it := range items {
			entries = append(entries, ManifestEntry{Value: it})
		}
		*m = FileManifest{Shape: ManifestList, Entries: entries}
	case '{':
		entries, err := decodeObjectInOrder(b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedManifest, err)
		}
		*m = FileManifest{Shape: ManifestObject, Entries: entries}
	default:
		return fmt.Errorf("%w: unexpected %q", ErrMalformedManifest, b[0])
	}
	return nil
}

// decodeObjectInOrder walks the object's tokens so keys keep their wire
// order. A repeated key keeps its first position and its last value.
func decodeObjectInOrder(b []byte) ([]ManifestEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var entries []ManifestEntry
	seen := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key %v is not a string", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if i, dup := seen[key]; dup {
			entries[i].Value = v
			continue
		}
		seen[key] = len(entries)
		entries = append(entries, ManifestEntry{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	return entries, nil
}

func (m FileManifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if m.Shape == ManifestObject {
		buf.WriteByte('{')
		for i, e := range m.Entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeValue(&buf, e.Value); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	} else {
		buf.WriteByte('[')
		for i, e := range m.Entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(&buf, e.Value); err != nil {
				return nil, err
			}
		}
		buf.WriteByte(']')
	}
	if m.Serialized {
		return json.Marshal(buf.String())
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v json.RawMessage) error {
	if len(v) == 0 {
		buf.WriteString("null")
		return nil
	}
	return json.Compact(buf, v)
}
