package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"StockKeeper/internal/inventory"
)

const (
	opAdd    = "add"
	opRemove = "remove"

	outcomeApplied         = "applied"
	outcomeInvalidItem     = "invalid_item"
	outcomeInvalidQuantity = "invalid_quantity"
	outcomeNotFound        = "not_found"
	outcomeError           = "error"
)

type StockMetrics struct {
	Operations *prometheus.CounterVec
}

// newStockMetrics registers the operation counter and gauges that read the
// store under the server lock at scrape time.
func newStockMetrics(reg prometheus.Registerer, s *Server) *StockMetrics {
	m := &StockMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_operations_total",
				Help: "Stock add/remove calls by outcome",
			},
			[]string{"op", "outcome"},
		),
	}

	items := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "inventory_items",
			Help: "Number of items currently tracked",
		},
		func() float64 {
			s.mu.Lock()
			defer s.mu.Unlock()
			return float64(s.Store.Len())
		},
	)
	units := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "inventory_units",
			Help: "Sum of all item quantities",
		},
		func() float64 {
			s.mu.Lock()
			defer s.mu.Unlock()
			var total float64
			for _, e := range s.Store.Items() {
				total += float64(e.Qty)
			}
			return total
		},
	)

	reg.MustRegister(m.Operations, items, units)
	return m
}

func (m *StockMetrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeApplied
	case errors.Is(err, inventory.ErrInvalidItem):
		return outcomeInvalidItem
	case errors.Is(err, inventory.ErrInvalidQuantity):
		return outcomeInvalidQuantity
	case errors.Is(err, inventory.ErrItemNotFound):
		return outcomeNotFound
	default:
		return outcomeError
	}
}
