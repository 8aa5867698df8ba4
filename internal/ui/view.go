package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/commons-systems/pdfmerger/internal/merge"
)

const maxVisible = 12

// View renders the window.
func (m *Model) View() string {
	var lines []string
	lines = append(lines, titleStyle.Render(windowTitle))

	if m.banner != "" {
		lines = append(lines, bannerStyle.Render(m.banner), "")
	}

	lines = append(lines, m.renderList()...)
	lines = append(lines, "")

	if m.editing {
		lines = append(lines, m.output.View())
	} else {
		lines = append(lines, dimStyle.Render("Output: ")+m.outputPreview())
	}

	if m.status != "" {
		style := errorStyle
		if m.statusOK {
			style = successStyle
		}
		lines = append(lines, style.Render(m.status))
	}

	lines = append(lines, helpStyle.Render(m.help.View(m.keys)))
	return frameStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderList() []string {
	items := m.set.Items()
	if len(items) == 0 {
		return []string{dimStyle.Render("No PDFs yet. Open files with pdfmerger, or launch it again with more files.")}
	}

	start, end := 0, len(items)
	if len(items) > maxVisible {
		if m.cursor >= maxVisible/2 {
			start = m.cursor - maxVisible/2
		}
		end = min(start+maxVisible, len(items))
		start = max(end-maxVisible, 0)
	}

	var lines []string
	for i := start; i < end; i++ {
		it := items[i]
		label := fmt.Sprintf("%2d. %s", i+1, it.Name)
		if it.Pages > 0 {
			label += dimStyle.Render(fmt.Sprintf("  %d p.", it.Pages))
		}
		if i == m.cursor {
			lines = append(lines, selectedItemStyle.Render("> "+label))
		} else {
			lines = append(lines, normalItemStyle.Render("  "+label))
		}
	}
	if len(items) > maxVisible {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  %d files", len(items))))
	}
	return lines
}

func (m *Model) outputPreview() string {
	out, err := m.resolveOutput()
	if err != nil {
		name, _ := merge.ResolveOutput(".", m.output.Value())
		return filepath.Base(name)
	}
	return out
}
