package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"
)

type Entry struct {
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

// Snapshot is the ordered contents of a Store. Its JSON form is a single
// object whose keys keep the snapshot order.
type Snapshot []Entry

func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Item)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.Qty))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: top level must be an object", ErrMalformedSnapshot)
	}

	out := Snapshot{}
	pos := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
		key, _ := tok.(string)
		if key == "" {
			return fmt.Errorf("%w: empty item name", ErrMalformedSnapshot)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: item %q: %v", ErrMalformedSnapshot, key, err)
		}
		qty, err := quantityLiteral(raw)
		if err != nil {
			return fmt.Errorf("%w: item %q: quantity %s is not an integer", ErrMalformedSnapshot, key, raw)
		}

		if i, dup := pos[key]; dup {
			out[i].Qty = qty
			continue
		}
		pos[key] = len(out)
		out = append(out, Entry{Item: key, Qty: qty})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: extra data after json object", ErrMalformedSnapshot)
	}

	*s = out
	return nil
}

// quantityLiteral only accepts bare JSON numbers; quoted numbers are text.
func quantityLiteral(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, ErrInvalidQuantity
	}
	return ParseQuantity(json.Number(raw))
}

func (s Snapshot) index() ([]string, map[string]int, error) {
	order := make([]string, 0, len(s))
	qty := make(map[string]int, len(s))
	for _, e := range s {
		if !validItem(e.Item) {
			return nil, nil, fmt.Errorf("%w: invalid item name %q", ErrMalformedSnapshot, e.Item)
		}
		if _, dup := qty[e.Item]; !dup {
			order = append(order, e.Item)
		}
		qty[e.Item] = e.Qty
	}
	return order, qty, nil
}

func ReadFile(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := snap.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}

func WriteFile(path string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Save writes the whole table to path, replacing any existing file.
func (s *Store) Save(path string) error {
	if err := WriteFile(path, s.Items()); err != nil {
		return err
	}
	s.log.Info("inventory saved", zap.String("path", path), zap.Int("items", s.Len()))
	return nil
}

// Load replaces the whole table with the contents of path. On error the
// table is left untouched.
func (s *Store) Load(path string) error {
	snap, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.Restore(snap); err != nil {
		return err
	}
	s.log.Info("inventory loaded", zap.String("path", path), zap.Int("items", s.Len()))
	return nil
}
