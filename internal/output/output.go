// Package output renders command results for pipes and terminals.
//
// Pipe mode writes a single JSON document per command. Human mode writes
// plain text, styled with lipgloss only when the writer is a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7f57b4")).
			Bold(true)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9c4ff"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7f57b4")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#273540"))
)

// Printer writes command results to w
type Printer struct {
	w     io.Writer
	pipe  bool
	color bool
}

// New creates a printer. Colour is enabled when w is a terminal and pipe is off.
func New(w io.Writer, pipe bool) *Printer {
	color := false
	if f, ok := w.(*os.File); ok && !pipe {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, pipe: pipe, color: color}
}

// Pipe reports whether the printer emits JSON
func (p *Printer) Pipe() bool {
	return p.pipe
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(p.w, string(data))
	return err
}

// Results writes query results
func (p *Printer) Results(results []types.Result) error {
	if results == nil {
		results = []types.Result{}
	}
	if p.pipe {
		return p.writeJSON(results)
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s\n", p.style(labelStyle, "Path:"), p.style(pathStyle, r.Path))
		fmt.Fprintf(&b, "%s \n%s\n", p.style(labelStyle, "Content:"), r.Document)
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// Stats writes the outcome of a vectorise run
func (p *Printer) Stats(stats types.VectoriseStats) error {
	if p.pipe {
		return p.writeJSON(stats)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%d\n", p.style(labelStyle, "Added:"), stats.Add)
	fmt.Fprintf(&b, "%s\t%d\n", p.style(labelStyle, "Updated:"), stats.Update)
	if stats.Removed > 0 {
		fmt.Fprintf(&b, "%s\t%d\n", p.style(labelStyle, "Removed orphans:"), stats.Removed)
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(&b, "%s\t%d\n", p.style(labelStyle, "Skipped:"), stats.Skipped)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(&b, "%s\t%d\n", p.style(labelStyle, "Failed:"), stats.Failed)
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// collectionEntry is the pipe form of one ls row
type collectionEntry struct {
	ProjectRoot       string `json:"project-root"`
	User              string `json:"user"`
	Hostname          string `json:"hostname"`
	CollectionName    string `json:"collection_name"`
	Size              int    `json:"size"`
	EmbeddingFunction string `json:"embedding_function"`
}

// Collections writes the ls table. home, when set, is shortened to ~ in project roots.
func (p *Printer) Collections(infos []storage.CollectionInfo, home string) error {
	if p.pipe {
		entries := make([]collectionEntry, 0, len(infos))
		for _, info := range infos {
			entries = append(entries, collectionEntry{
				ProjectRoot:       info.ProjectRoot,
				User:              info.Username,
				Hostname:          info.Hostname,
				CollectionName:    info.Name,
				Size:              info.Size,
				EmbeddingFunction: info.EmbeddingFunction,
			})
		}
		return p.writeJSON(entries)
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		root := info.ProjectRoot
		if home != "" && strings.HasPrefix(root, home) {
			root = "~" + strings.TrimPrefix(root, home)
		}
		rows = append(rows, []string{root, strconv.Itoa(info.Size), info.EmbeddingFunction})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Project Root", "Collection Size", "Embedding Function").
		Rows(rows...)
	if p.color {
		t = t.BorderStyle(borderStyle).StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	} else {
		t = t.StyleFunc(func(int, int) lipgloss.Style { return cellStyle })
	}

	_, err := fmt.Fprintln(p.w, t.Render())
	return err
}
