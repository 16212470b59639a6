// Package cli formats command output for the terminal.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"

	"github.com/starford/bucketpress/internal/publish"
	"github.com/starford/bucketpress/internal/vdir"
)

var (
	boldStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// NewTable creates a table that writes to w with the first column in bold.
func NewTable(w io.Writer, headers ...any) table.Table {
	tbl := table.New(headers...)
	tbl.WithWriter(w)
	tbl.WithFirstColumnFormatter(func(format string, vals ...any) string {
		return boldStyle.Render(fmt.Sprintf(format, vals...))
	})
	tbl.WithPadding(2)
	// ANSI-aware width keeps styled columns aligned.
	tbl.WithWidthFunc(lipgloss.Width)
	return tbl
}

// PrintListing writes folders then files of l as a table.
func PrintListing(w io.Writer, l vdir.Listing) {
	if len(l.Folders) == 0 && len(l.Files) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("(empty)"))
		return
	}
	tbl := NewTable(w, "NAME", "KIND", "SIZE", "UPDATED")
	for _, f := range l.Folders {
		tbl.AddRow(f.Name+"/", f.Kind, "-", "-")
	}
	for _, f := range l.Files {
		size := "-"
		if f.Size != nil {
			size = FormatSize(*f.Size)
		}
		updated := "-"
		if !f.UpdatedAt.IsZero() {
			updated = f.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		tbl.AddRow(f.Name, f.Kind, size, updated)
	}
	tbl.Print()
}

// PrintPublish reports a publish outcome on one line.
func PrintPublish(w io.Writer, res publish.Result) {
	msg := res.Snapshot.Message
	if res.Triggered {
		_, _ = fmt.Fprintln(w, boldStyle.Render("published"), msg)
		return
	}
	if msg == "" {
		msg = "a publish is already in progress"
	}
	_, _ = fmt.Fprintln(w, mutedStyle.Render("not published:"), msg)
}

// FormatSize renders n bytes with a binary unit.
func FormatSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Location renders path for headings; the root is shown as "/".
func Location(path string) string {
	if path == "" {
		return "/"
	}
	return "/" + strings.Trim(path, "/")
}
