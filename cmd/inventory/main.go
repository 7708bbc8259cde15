package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"StockKeeper/internal/inventory"
	"StockKeeper/pkg/kit"
)

func main() {
	log := kit.NewConsoleLogger("inventory")
	defer func() { _ = log.Sync() }()

	path := getenv("INVENTORY_FILE", inventory.DefaultPath)

	if err := run(os.Stdout, log, path); err != nil {
		log.Fatal("inventory demo failed", zap.Error(err), zap.String("path", path))
	}
}

// run walks the store through a fixed sequence of calls. Rejected calls are
// already reported by the store as warnings.
func run(out io.Writer, log *zap.Logger, path string) error {
	s := inventory.New(log)
	journal := inventory.NewLines(0)

	_ = s.Add("apple", 10, journal)
	_ = s.Add("banana", -2, journal)
	_ = s.AddValue(123, "ten", journal)
	_ = s.Remove("apple", 3)
	_ = s.Remove("orange", 1)

	fmt.Fprintf(out, "Apple stock: %d\n", s.Quantity("apple"))
	fmt.Fprintf(out, "Low items: %v\n", s.LowStock(inventory.DefaultLowStockThreshold))

	if err := s.Save(path); err != nil {
		return err
	}
	if err := s.Load(path); err != nil {
		return err
	}
	if err := s.Report(out); err != nil {
		return err
	}

	for _, line := range journal.All() {
		log.Info("journal", zap.String("line", line))
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
