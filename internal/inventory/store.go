package inventory

import (
	"errors"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultPath              = "inventory.json"
	DefaultLowStockThreshold = 5
)

var (
	ErrInvalidItem       = errors.New("invalid item name")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrItemNotFound      = errors.New("item not found")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// Store is the item -> quantity table. It is not safe for concurrent use;
// callers that share a Store across goroutines serialize access themselves.
type Store struct {
	log   *zap.Logger
	order []string
	qty   map[string]int
}

func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log, qty: map[string]int{}}
}

// Add increments item by qty, creating the entry if needed. Negative qty is
// applied as-is; only Remove deletes entries.
func (s *Store) Add(item string, qty int, j Journal) error {
	if !validItem(item) {
		s.log.Warn("invalid item name", zap.String("item", item))
		return ErrInvalidItem
	}

	cur, ok := s.qty[item]
	if addOverflows(cur, qty) {
		s.log.Warn("invalid quantity", zap.String("item", item), zap.Int("qty", qty))
		return ErrInvalidQuantity
	}
	if !ok {
		s.order = append(s.order, item)
	}
	s.qty[item] = cur + qty

	if j != nil {
		j.Append(addedLine(item, qty))
	}
	return nil
}

// AddValue validates untyped input before calling Add.
func (s *Store) AddValue(item, qty any, j Journal) error {
	name, n, err := s.parse(item, qty)
	if err != nil {
		return err
	}
	return s.Add(name, n, j)
}

func (s *Store) Remove(item string, qty int) error {
	if !validItem(item) {
		s.log.Warn("invalid item name", zap.String("item", item))
		return ErrInvalidItem
	}

	cur, ok := s.qty[item]
	if !ok {
		s.log.Warn("tried to remove non-existent item", zap.String("item", item))
		return ErrItemNotFound
	}
	if qty == math.MinInt || addOverflows(cur, -qty) {
		s.log.Warn("invalid quantity", zap.String("item", item), zap.Int("qty", qty))
		return ErrInvalidQuantity
	}

	if next := cur - qty; next > 0 {
		s.qty[item] = next
		return nil
	}
	s.delete(item)
	return nil
}

func (s *Store) RemoveValue(item, qty any) error {
	name, n, err := s.parse(item, qty)
	if err != nil {
		return err
	}
	return s.Remove(name, n)
}

// Quantity returns the stored quantity, 0 when the item is absent.
func (s *Store) Quantity(item string) int {
	return s.qty[item]
}

// LowStock lists items whose quantity is strictly below threshold, in
// insertion order.
func (s *Store) LowStock(threshold int) []string {
	out := make([]string, 0)
	for _, item := range s.order {
		if s.qty[item] < threshold {
			out = append(out, item)
		}
	}
	return out
}

func (s *Store) Len() int { return len(s.order) }

func (s *Store) Items() Snapshot {
	out := make(Snapshot, 0, len(s.order))
	for _, item := range s.order {
		out = append(out, Entry{Item: item, Qty: s.qty[item]})
	}
	return out
}

func (s *Store) Snapshot() Snapshot { return s.Items() }

// Restore replaces the whole table with snap. Nothing is merged with the
// previous contents.
func (s *Store) Restore(snap Snapshot) error {
	order, qty, err := snap.index()
	if err != nil {
		return err
	}
	s.order, s.qty = order, qty
	return nil
}

func (s *Store) parse(item, qty any) (string, int, error) {
	name, err := ParseItem(item)
	if err != nil {
		s.log.Warn("invalid item name", zap.Any("item", item))
		return "", 0, err
	}
	n, err := ParseQuantity(qty)
	if err != nil {
		s.log.Warn("invalid quantity", zap.String("item", name), zap.Any("qty", qty))
		return "", 0, err
	}
	return name, n, nil
}

func (s *Store) delete(item string) {
	delete(s.qty, item)
	for i, k := range s.order {
		if k == item {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func addOverflows(a, b int) bool {
	if b > 0 {
		return a > math.MaxInt-b
	}
	return a < math.MinInt-b
}

// validItem rejects names that would not survive a JSON round trip.
func validItem(item string) bool {
	return item != "" && utf8.ValidString(item)
}
