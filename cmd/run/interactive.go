package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/script-bridge/bridge"
	"github.com/wippyai/script-bridge/gojaengine"
	"github.com/wippyai/script-bridge/wire"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// evalModeNames orders the modes the TUI cycles through with tab.
var evalModeNames = []string{"sync", "blocking", "async"}

type historyEntry struct {
	script string
	output string
	failed bool
}

type interactiveModel struct {
	err      error
	bridge   *bridge.Bridge
	cfg      *hostConfig
	loadFile string
	input    textinput.Model
	history  []historyEntry
	funcs    []string
	modeIdx  int
	busy     bool
}

type loadedMsg struct {
	err    error
	bridge *bridge.Bridge
	cfg    *hostConfig
	funcs  []string
}

type evalDoneMsg struct {
	script string
	output string
	failed bool
}

func newInteractiveModel(configFile string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "script expression"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{input: ti, loadFile: configFile}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	b := bridge.New(gojaengine.New())

	var cfg *hostConfig
	var funcs []string
	if m.loadFile != "" {
		loaded, err := loadConfig(m.loadFile)
		if err != nil {
			b.Close()
			return loadedMsg{err: err}
		}
		if err := registerStubs(b, loaded); err != nil {
			b.Close()
			return loadedMsg{err: err}
		}
		cfg = loaded
		for _, fn := range loaded.Functions {
			funcs = append(funcs, fn.Name)
		}
	}

	return loadedMsg{bridge: b, cfg: cfg, funcs: funcs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.bridge != nil {
				m.bridge.Close()
			}
			return m, tea.Quit

		case "tab":
			if !m.busy {
				m.modeIdx = (m.modeIdx + 1) % len(evalModeNames)
			}
			return m, nil

		case "enter":
			script := strings.TrimSpace(m.input.Value())
			if script == "" || m.busy || m.bridge == nil {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			return m, m.evaluate(script, evalModeNames[m.modeIdx])
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.bridge = msg.bridge
		m.cfg = msg.cfg
		m.funcs = msg.funcs

	case evalDoneMsg:
		m.busy = false
		m.history = append(m.history, historyEntry{
			script: msg.script,
			output: msg.output,
			failed: msg.failed,
		})
		if len(m.history) > 10 {
			m.history = m.history[len(m.history)-10:]
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// evaluate runs the script off the UI loop and reports the rendered
// outcome. Async evaluations are driven to completion here, host loop
// included, so the UI only ever sees terminal results.
func (m *interactiveModel) evaluate(script, mode string) tea.Cmd {
	b := m.bridge
	cfg := m.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		var v wire.Value
		var err error
		switch mode {
		case "sync":
			v, err = b.Evaluate(ctx, script)
		case "blocking":
			v, err = b.EvaluateBlocking(ctx, script)
		case "async":
			v, err = evalAsync(ctx, b, cfg, script)
		}
		if err != nil {
			return evalDoneMsg{script: script, output: err.Error(), failed: true}
		}

		data, err := wire.Marshal(v)
		if err != nil {
			return evalDoneMsg{script: script, output: err.Error(), failed: true}
		}
		return evalDoneMsg{script: script, output: string(data)}
	}
}

func evalAsync(ctx context.Context, b *bridge.Bridge, cfg *hostConfig, script string) (wire.Value, error) {
	evalID, err := b.StartAsyncEval(ctx, script)
	if err != nil {
		return nil, err
	}

	stubs := make(map[string]stubFunc)
	if cfg != nil {
		for _, fn := range cfg.Functions {
			stubs[fn.Name] = fn
		}
	}

	for {
		if req, ok := b.PollRequest(); ok {
			if err := serveRequest(b, stubs, req); err != nil {
				return nil, err
			}
			continue
		}

		res, err := b.PollAsyncEval(evalID)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case bridge.StatusSuccess:
			return res.Value, nil
		case bridge.StatusError:
			return nil, fmt.Errorf("%s", res.Err)
		}

		select {
		case <-ctx.Done():
			_ = b.CancelAsyncEval(evalID)
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}
	if m.bridge == nil {
		return "Starting bridge..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Script Bridge"))
	b.WriteString("  mode: ")
	b.WriteString(modeStyle.Render(evalModeNames[m.modeIdx]))
	b.WriteString("\n\n")

	if len(m.funcs) > 0 {
		b.WriteString("Host functions: ")
		styled := make([]string, len(m.funcs))
		for i, name := range m.funcs {
			styled[i] = funcStyle.Render(name)
		}
		b.WriteString(strings.Join(styled, ", "))
		b.WriteString("\n\n")
	}

	for _, entry := range m.history {
		b.WriteString("> ")
		b.WriteString(entry.script)
		b.WriteString("\n")
		if entry.failed {
			b.WriteString(errorStyle.Render(entry.output))
		} else {
			b.WriteString(resultStyle.Render(entry.output))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.busy {
		b.WriteString("evaluating...\n")
	} else {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter evaluate • tab cycle mode • ctrl+c quit"))

	return b.String()
}

func runInteractive(configFile string) error {
	p := tea.NewProgram(newInteractiveModel(configFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
