package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/likithgowdabh/eventstack/internal/domain"
)

// renderBoard writes one line per slot in registry order
func renderBoard(w io.Writer, slots []domain.SlotID, view domain.View) {
	for _, id := range slots {
		slot, ok := view[id]
		if !ok {
			continue
		}

		names := make([]string, 0, len(slot.Badges))
		for _, b := range slot.Badges {
			names = append(names, b.Username)
		}

		line := fmt.Sprintf("%-12s %-9s", id, slot.CountLabel)
		if label := slot.Button.Label(); label != "" {
			line += fmt.Sprintf(" [%s]", label)
		}
		if len(names) > 0 {
			line += " " + strings.Join(names, ", ")
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// renderStatus writes the connectivity indicator line
func renderStatus(w io.Writer, status domain.Status) {
	fmt.Fprintf(w, "== %s ==\n", status.Text())
	if status.IsTerminal() {
		fmt.Fprintln(w, "   (send SIGHUP to try again)")
	}
}
