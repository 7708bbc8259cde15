package inventory

import (
	"bufio"
	"fmt"
	"io"
)

func (s *Store) Report(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Items Report")
	for _, item := range s.order {
		fmt.Fprintf(bw, "%s -> %d\n", item, s.qty[item])
	}
	return bw.Flush()
}
