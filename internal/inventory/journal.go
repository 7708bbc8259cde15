package inventory

import (
	"fmt"
	"time"
)

const journalTimeLayout = "2006-01-02 15:04:05.000000"

type Journal interface {
	Append(line string)
}

// Lines keeps journal lines in memory. With max > 0 the oldest lines are
// dropped once the cap is reached.
type Lines struct {
	max   int
	lines []string
}

func NewLines(max int) *Lines {
	return &Lines{max: max}
}

func (l *Lines) Append(line string) {
	l.lines = append(l.lines, line)
	if l.max > 0 && len(l.lines) > l.max {
		l.lines = append(l.lines[:0], l.lines[len(l.lines)-l.max:]...)
	}
}

func (l *Lines) All() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Lines) Len() int { return len(l.lines) }

var now = time.Now

func addedLine(item string, qty int) string {
	return fmt.Sprintf("%s: Added %d of %s", now().Format(journalTimeLayout), qty, item)
}
