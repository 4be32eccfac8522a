package ui

import (
	"bytes"
	"fmt"

	"github.com/fatih/color"
)

// DiffResult compares two line sequences position by position
type DiffResult struct {
	Old     []string
	New     []string
	Changed bool
	noColor bool
}

// Diff pairs before[i] with after[i] and records whether any pair differs
func Diff(before, after []string, noColor bool) *DiffResult {
	d := &DiffResult{Old: before, New: after, noColor: noColor}
	d.Changed = len(before) != len(after)
	for i := 0; !d.Changed && i < len(before); i++ {
		d.Changed = before[i] != after[i]
	}
	return d
}

func (d *DiffResult) pair(i int) (string, string) {
	var o, n string
	if i < len(d.Old) {
		o = d.Old[i]
	}
	if i < len(d.New) {
		n = d.New[i]
	}
	return o, n
}

// String renders every differing position as "- old" / "+ new" lines
func (d *DiffResult) String() string {
	if !d.Changed {
		return newColor(d.noColor, color.FgGreen).Sprint("No differences")
	}

	var buf bytes.Buffer
	red := newColor(d.noColor, color.FgRed)
	green := newColor(d.noColor, color.FgGreen)
	cyan := newColor(d.noColor, color.FgCyan)

	for i := 0; i < max(len(d.Old), len(d.New)); i++ {
		o, n := d.pair(i)
		if o == n {
			continue
		}
		cyan.Fprintf(&buf, "@@ %d @@\n", i+1)
		if o != "" {
			red.Fprintf(&buf, "- %s\n", o)
		}
		if n != "" {
			green.Fprintf(&buf, "+ %s\n", n)
		}
	}
	return buf.String()
}

// Stats summarizes changed, added and removed positions
func (d *DiffResult) Stats() string {
	if !d.Changed {
		return "No differences"
	}

	added, removed, changed := 0, 0, 0
	for i := 0; i < max(len(d.Old), len(d.New)); i++ {
		o, n := d.pair(i)
		switch {
		case o == "" && n != "":
			added++
		case o != "" && n == "":
			removed++
		case o != n:
			changed++
		}
	}
	return fmt.Sprintf("%d instructions changed, %d added, %d removed", changed, added, removed)
}
