// Package ui is the pdfmerger window: a bubbletea program showing the
// working set and driving the merge.
package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/commons-systems/pdfmerger/internal/activation"
	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/merge"
	"github.com/commons-systems/pdfmerger/internal/workset"
)

const windowTitle = "PDF Merger"

type pageCountMsg struct {
	path  string
	pages int
	err   error
}

type mergeDoneMsg struct {
	output string
	err    error
}

// Options configures a Model.
type Options struct {
	// OutputName is the initial output file name. Blank means merge.DefaultName.
	OutputName string
	// OutputDir overrides the directory of the first added file.
	OutputDir string
}

// Result is what the window leaves behind when it closes.
type Result struct {
	Output string // set after a successful merge
}

// Model is the bubbletea model for the merge window.
type Model struct {
	dispatcher *activation.Dispatcher
	engine     merge.Engine
	shell      *Shell
	set        *workset.Set

	keys   KeyMap
	help   help.Model
	output textinput.Model

	defaultName string
	now         func() time.Time

	cursor   int
	editing  bool
	merging  bool
	banner   string
	status   string
	statusOK bool
	result   Result

	// Commands produced while ingesting inside a task; returned by Update.
	queued []tea.Cmd

	width  int
	height int
}

// New creates the window model. Paths already delivered to d are ingested
// when the program starts.
func New(d *activation.Dispatcher, eng merge.Engine, opts Options) *Model {
	ti := textinput.New()
	ti.Prompt = "Output: "
	ti.Placeholder = merge.DefaultName
	ti.CharLimit = 255
	name := strings.TrimSpace(opts.OutputName)
	if name == "" {
		name = merge.DefaultName
	}
	ti.SetValue(name)

	m := &Model{
		dispatcher:  d,
		engine:      eng,
		set:         workset.New(),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		output:      ti,
		defaultName: name,
		now:         time.Now,
		width:       80,
		height:      24,
	}
	if opts.OutputDir != "" {
		m.set.SetBaseDir(opts.OutputDir)
	}
	m.shell = newShell(m.ingest)
	return m
}

// Shell returns the adapter the dispatcher delivers through.
func (m *Model) Shell() *Shell {
	return m.shell
}

// Items returns the working set in order.
func (m *Model) Items() []workset.Item {
	return m.set.Items()
}

// Result returns the outcome once the program has finished.
func (m *Model) Result() Result {
	return m.result
}

// Init marks the window as constructed and flushes paths buffered so far.
func (m *Model) Init() tea.Cmd {
	m.shell.ready.Store(true)
	if !m.dispatcher.IsReady() {
		if err := m.dispatcher.MarkReady(m.shell); err != nil {
			debug.Log("UI_MARK_READY_ERROR error=%v", err)
		}
	}

	cmds := m.takeQueued()
	cmds = append(cmds, tea.SetWindowTitle(windowTitle), m.shell.waitForTask())
	return tea.Batch(cmds...)
}

// ingest runs on the event loop, either from Init or from a uiTaskMsg.
func (m *Model) ingest(paths []string) {
	added := m.set.Ingest(paths)
	if len(added) == 0 {
		return
	}

	// The terminal analogue of bringing the window to the front.
	if len(added) == 1 {
		m.banner = "Added " + added[0].Name
	} else {
		m.banner = fmt.Sprintf("Added %d files", len(added))
	}
	m.queued = append(m.queued, tea.SetWindowTitle(fmt.Sprintf("%s (%d)", windowTitle, m.set.Len())))
	for _, it := range added {
		m.queued = append(m.queued, pageCountCmd(m.engine, it.Path))
	}
}

func (m *Model) takeQueued() []tea.Cmd {
	cmds := m.queued
	m.queued = nil
	return cmds
}

func pageCountCmd(eng merge.Engine, path string) tea.Cmd {
	return func() tea.Msg {
		n, err := eng.PageCount(path)
		return pageCountMsg{path: path, pages: n, err: err}
	}
}

func mergeCmd(eng merge.Engine, inputs []string, output string) tea.Cmd {
	return func() tea.Msg {
		err := eng.Merge(context.Background(), inputs, output)
		return mergeDoneMsg{output: output, err: err}
	}
}

// Update handles one message on the event loop.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case uiTaskMsg:
		msg.fn()
		cmds := append(m.takeQueued(), m.shell.waitForTask())
		return m, tea.Batch(cmds...)

	case pageCountMsg:
		if msg.err != nil {
			debug.Log("UI_PAGE_COUNT_ERROR path=%s error=%v", msg.path, msg.err)
			return m, nil
		}
		m.set.SetPages(msg.path, msg.pages)
		return m, nil

	case mergeDoneMsg:
		m.merging = false
		if msg.err != nil {
			m.setStatus("Failed to merge PDFs: "+merge.Message(msg.err), false)
			return m, nil
		}
		m.result.Output = msg.output
		m.setStatus("PDFs merged successfully! Saved to: "+msg.output, true)
		return m, m.quit()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.output.Width = max(msg.Width-20, 10)
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm), key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.output.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.output, cmd = m.output.Update(msg)
	return m, cmd
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.banner = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.set.Len()-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.MoveUp):
		if m.set.MoveUp(m.cursor) {
			m.cursor--
		}

	case key.Matches(msg, m.keys.MoveDown):
		if m.set.MoveDown(m.cursor) {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Remove):
		if m.set.Remove(m.cursor) && m.cursor >= m.set.Len() && m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Clear):
		m.set.Clear()
		m.cursor = 0

	case key.Matches(msg, m.keys.EditName):
		m.editing = true
		return m, m.output.Focus()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Merge):
		return m, m.startMerge()
	}
	return m, nil
}

func (m *Model) startMerge() tea.Cmd {
	if m.merging {
		return nil
	}
	if m.set.Len() < 2 {
		m.setStatus(merge.ErrTooFewInputs.Error(), false)
		return nil
	}
	output, err := m.resolveOutput()
	if err != nil {
		m.setStatus(merge.Message(err), false)
		return nil
	}

	m.merging = true
	m.setStatus("Merging…", true)
	debug.Log("UI_MERGE_START inputs=%d output=%s", m.set.Len(), output)
	return mergeCmd(m.engine, m.set.Paths(), output)
}

// resolveOutput returns the merge target. An untouched default name that
// would overwrite an existing file becomes a timestamped name instead.
func (m *Model) resolveOutput() (string, error) {
	output, err := merge.ResolveOutput(m.set.BaseDir(), m.output.Value())
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(m.output.Value())
	if name != "" && name != m.defaultName {
		return output, nil
	}
	if _, err := os.Stat(output); err == nil {
		return filepath.Join(filepath.Dir(output), merge.DefaultFileName(m.now())), nil
	}
	return output, nil
}

func (m *Model) setStatus(s string, ok bool) {
	m.status = s
	m.statusOK = ok
}

func (m *Model) quit() tea.Cmd {
	m.shell.Stop()
	return tea.Quit
}
