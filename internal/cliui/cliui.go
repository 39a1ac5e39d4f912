// Package cliui renders the acting tree and the resource table to a
// terminal, in the teacher's internal/ui ANSI-table idiom (status color per
// node kind, a spinner-free one-shot render rather than display.go's
// animated pipeline, since an acting tree snapshot is a point-in-time view
// rather than a single-flow message stream).
package cliui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	runewidth "github.com/mattn/go-runewidth"

	"github.com/ompas-labs/acting-core/internal/acting"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/types"
)

// ANSI codes (teacher's internal/ui/display.go palette).
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiBlue   = "\033[34m"
)

var kindColor = map[types.ProcessKind]string{
	types.KindRoot:      ansiDim,
	types.KindTask:      ansiCyan,
	types.KindMethod:    ansiBlue,
	types.KindCommand:   ansiYellow,
	types.KindAcquire:   ansiDim + ansiBlue,
	types.KindArbitrary: ansiBlue,
}

var statusColor = map[types.Status]string{
	types.StatusPending:   ansiDim,
	types.StatusRunning:   ansiYellow,
	types.StatusSuccess:   ansiGreen,
	types.StatusFailure:   ansiRed,
	types.StatusCancelled: ansiRed,
}

// PrintTree renders the tree's current snapshot as an indented outline
// rooted at id, one line per node: kind, label, args, status.
func PrintTree(w io.Writer, tree *acting.Tree, id types.ProcessId) {
	snap := tree.Snapshot()
	printNode(w, snap, id, 0)
}

func printNode(w io.Writer, snap map[types.ProcessId]acting.Node, id types.ProcessId, depth int) {
	n, ok := snap[id]
	if !ok {
		return
	}
	indent := strings.Repeat("  ", depth)
	color := kindColor[n.Kind]
	sc := statusColor[n.Status]
	label := n.Label
	if len(n.Args) > 0 {
		label += " " + argList(n.Args)
	}
	fmt.Fprintf(w, "%s%s%s%s%s %s[%s]%s\n", indent, color, label, ansiReset,
		trailingErr(n), sc, n.Status, ansiReset)
	children := append([]types.ProcessId(nil), n.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	for _, c := range children {
		printNode(w, snap, c, depth+1)
	}
}

func trailingErr(n acting.Node) string {
	if n.Err == nil {
		return ""
	}
	return fmt.Sprintf(" %s(%s: %s)%s", ansiDim, n.Err.Code, clip(n.Err.Message, 60), ansiReset)
}

func argList(args []types.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// clip truncates s to at most n display columns, appending "…" if trimmed
// (teacher's internal/ui/display.go clip, generalized from a rune count to a
// display-column count via go-runewidth so truncation never splits a
// double-width glyph mid-character — the teacher declares go-runewidth as a
// dependency of its patched readline fork's backspace-width fix but never
// calls it from its own display code; this is that call's first real home).
func clip(s string, n int) string {
	if runewidth.StringWidth(s) <= n {
		return s
	}
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if w+rw > n-1 {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	b.WriteRune('…')
	return b.String()
}

// PrintResources renders a fixed-width table of every declared resource's
// capacity, free count, and waiter count, column widths computed with
// go-runewidth so labels containing wide runes still align.
func PrintResources(w io.Writer, descs []resource.Descriptor) {
	labelWidth := len("RESOURCE")
	for _, d := range descs {
		if lw := runewidth.StringWidth(d.Label); lw > labelWidth {
			labelWidth = lw
		}
	}
	fmt.Fprintf(w, "%s%-*s  %6s  %6s  %7s%s\n", ansiBold,
		labelWidth, "RESOURCE", "TOTAL", "FREE", "WAITERS", ansiReset)
	for _, d := range descs {
		pad := labelWidth - runewidth.StringWidth(d.Label)
		if pad < 0 {
			pad = 0
		}
		color := ansiGreen
		if d.FreeCapacity == 0 {
			color = ansiRed
		}
		fmt.Fprintf(w, "%s%s%s  %6d  %6d  %7d%s\n",
			color, d.Label+strings.Repeat(" ", pad),
			ansiReset, d.TotalCapacity, d.FreeCapacity, d.WaiterCount, ansiReset)
	}
}
