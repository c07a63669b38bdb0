package tui

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agent-chat/pkg/chat"
	"agent-chat/pkg/parser"
	"agent-chat/pkg/swapform"
	"agent-chat/pkg/types"
)

type editField int

const (
	editNone editField = iota
	editAmount
	editSlippage
)

// updateMsg is sent when the controller state changed
type updateMsg struct{}

// opDoneMsg reports the end of an asynchronous operation
type opDoneMsg struct {
	op  string
	err error
}

// allowanceMsg reports a finished allowance read for the form at index
type allowanceMsg struct {
	index int
	err   error
}

type Model struct {
	ctx     context.Context
	session *chat.Session

	snapshot chat.Snapshot
	form     *swapform.Form
	formIdx  int

	input    textarea.Model
	edit     textinput.Model
	editing  editField
	spinner  spinner.Model
	viewport viewport.Model

	working int
	status  string
	failed  bool

	width    int
	height   int
	quitting bool

	startAgent string
}

// NewModel creates the chat view for session. ctx bounds every call the view
// makes on the user's behalf.
func NewModel(ctx context.Context, session *chat.Session) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message... (Enter to send, Alt+Enter for a new line)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	ti := textinput.New()
	ti.CharLimit = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = noticeStyle

	m := Model{
		ctx:      ctx,
		session:  session,
		formIdx:  -1,
		input:    ta,
		edit:     ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		working:  1, // initial history load
		width:    80,
		height:   30,
	}
	m.snapshot = session.Controller().Snapshot()
	return m
}

// WithAgent makes the view open on agent id instead of the default
func (m Model) WithAgent(id string) Model {
	m.startAgent = id
	return m
}

func (m Model) Init() tea.Cmd {
	load := m.op("load", m.session.Load)
	if m.startAgent != "" {
		session, id := m.session, m.startAgent
		load = m.op("select", func(ctx context.Context) error {
			return session.SelectAgent(ctx, id)
		})
	}
	return tea.Batch(
		m.waitForUpdate(),
		load,
		m.spinner.Tick,
		textarea.Blink,
	)
}

func (m Model) waitForUpdate() tea.Cmd {
	ch := m.session.Controller().Updates()
	return func() tea.Msg {
		<-ch
		return updateMsg{}
	}
}

func (m Model) op(name string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: name, err: fn(ctx)}
	}
}

// run starts an operation that keeps the spinner going until it finishes
func (m *Model) run(name string, fn func(context.Context) error) tea.Cmd {
	m.working++
	return m.op(name, fn)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 2)
		m.layout()
		return m, nil

	case updateMsg:
		cmd := m.sync()
		return m, tea.Batch(cmd, m.waitForUpdate())

	case opDoneMsg:
		if m.working > 0 {
			m.working--
		}
		m.report(msg.op, msg.err)
		return m, nil

	case allowanceMsg:
		if msg.err != nil && msg.index == m.formIdx {
			m.setStatus(msg.err.Error(), true)
		}
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy() {
			m.layout()
		}
		return m, cmd

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		next := m.session.Registry().Next(m.session.Selected().ID)
		cmd := m.selectAgent(next.ID)
		return m, cmd
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.editing != editNone {
		return m.updateEdit(msg)
	}

	if m.formFocused() {
		return m.updateForm(key)
	}

	// the prompt stays reachable once replies follow it, e.g. after an approval
	if m.form != nil {
		switch key {
		case "ctrl+s":
			return m.updateForm("enter")
		case "ctrl+x":
			return m.updateForm("c")
		}
	}

	if key == "enter" {
		return m.submitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// formFocused reports whether keys go to the swap prompt: it must be the
// active prompt and the newest message
func (m Model) formFocused() bool {
	n := len(m.snapshot.Messages)
	return m.form != nil && n > 0 && m.formIdx == n-1
}

func (m Model) updateForm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "enter":
		if m.form.Loading() || m.snapshot.State != chat.StateIdle {
			m.setStatus("A transaction is already in progress", true)
			return m, nil
		}
		form := m.form
		action := form.Action()
		m.setStatus(fmt.Sprintf("%s: requesting transaction...", action), false)
		cmd := m.run(strings.ToLower(action.String()), func(ctx context.Context) error {
			_, err := form.Submit(ctx)
			return err
		})
		return m, cmd
	case "c":
		cmd := m.run("cancel", m.form.Cancel)
		return m, cmd
	case "a":
		m.startEdit(editAmount, m.form.Amount())
	case "s":
		m.startEdit(editSlippage, fmt.Sprintf("%g", m.form.Slippage()))
	case "r":
		return m, m.refreshAllowance()
	}
	return m, nil
}

func (m *Model) startEdit(field editField, value string) {
	m.editing = field
	m.edit.SetValue(value)
	m.edit.CursorEnd()
	m.edit.Focus()
	m.input.Blur()
	m.layout()
}

func (m *Model) stopEdit() {
	m.editing = editNone
	m.edit.Blur()
	m.input.Focus()
	m.layout()
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopEdit()
		return m, nil
	case "enter":
		var err error
		if m.form == nil {
			err = swapform.ErrInactive
		} else if m.editing == editAmount {
			err = m.form.SetAmount(m.edit.Value())
		} else {
			err = m.form.SetSlippage(m.edit.Value())
		}
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.stopEdit()
		m.setStatus("", false)
		return m, nil
	}

	var cmd tea.Cmd
	m.edit, cmd = m.edit.Update(msg)
	return m, cmd
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	command, ok, err := parser.ParseChatCommand(text)
	if ok {
		m.input.Reset()
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		return m.runCommand(command)
	}

	if m.snapshot.Disabled {
		return m, nil
	}
	m.input.Reset()
	m.setStatus("", false)
	session := m.session
	cmd := m.run("send", func(ctx context.Context) error {
		return session.SubmitMessage(ctx, text)
	})
	return m, cmd
}

func (m Model) runCommand(command *parser.Command) (tea.Model, tea.Cmd) {
	switch command.Kind {
	case parser.CommandAgent:
		cmd := m.selectAgent(command.Arg)
		return m, cmd
	case parser.CommandCancel:
		if m.form == nil {
			m.setStatus("There is no swap to cancel", true)
			return m, nil
		}
		cmd := m.run("cancel", m.form.Cancel)
		return m, cmd
	case parser.CommandRefresh:
		cmd := m.run("load", m.session.Load)
		return m, cmd
	case parser.CommandQuit:
		m.quitting = true
		return m, tea.Quit
	default:
		m.setStatus("/agent <id>  /cancel  /refresh  /quit    Swap prompt: Enter run  a amount  s slippage  r allowance  c cancel", false)
		return m, nil
	}
}

func (m *Model) selectAgent(id string) tea.Cmd {
	m.form = nil
	m.formIdx = -1
	m.editing = editNone
	m.setStatus("", false)
	session := m.session
	return m.run("select", func(ctx context.Context) error {
		return session.SelectAgent(ctx, id)
	})
}

// sync pulls a fresh snapshot and keeps the swap form bound to the active
// prompt
func (m *Model) sync() tea.Cmd {
	prev := m.snapshot.State
	m.snapshot = m.session.Controller().Snapshot()
	// updates coalesce, so any non-idle state before means a tx just ended
	txEnded := prev != chat.StateIdle && m.snapshot.State == chat.StateIdle

	var cmd tea.Cmd
	idx := m.snapshot.ActiveSwap
	if idx < 0 {
		m.form = nil
		m.formIdx = -1
	} else {
		payload := m.snapshot.Messages[idx].(types.SwapMessage).Payload
		switch {
		case m.form == nil || idx != m.formIdx:
			m.form = m.session.NewForm(payload, true)
			m.formIdx = idx
			cmd = m.refreshAllowance()
		case !reflect.DeepEqual(m.form.Payload(), payload):
			m.form.Seed(payload)
			cmd = m.refreshAllowance()
		case txEnded:
			// an approval may just have been confirmed
			cmd = m.refreshAllowance()
		}
	}
	if m.editing != editNone && !m.formFocused() {
		m.stopEdit()
	}

	m.layout()
	m.viewport.GotoBottom()
	return cmd
}

func (m Model) refreshAllowance() tea.Cmd {
	form, idx, ctx := m.form, m.formIdx, m.ctx
	if form == nil || form.IsNative() {
		return nil
	}
	return func() tea.Msg {
		_, err := form.RefreshAllowance(ctx)
		return allowanceMsg{index: idx, err: err}
	}
}

func (m *Model) report(op string, err error) {
	switch {
	case err == nil:
		if op == "approve" || op == "swap" {
			m.setStatus("Transaction sent, waiting for confirmation...", false)
		}
	case errors.Is(err, chat.ErrWalletRequired):
		m.setStatus("This agent needs a connected wallet. Configure wallet.private_key and wallet.rpc_url.", true)
	case errors.Is(err, context.Canceled):
	default:
		m.setStatus(fmt.Sprintf("%s failed: %v", op, err), true)
	}
	m.layout()
}

func (m *Model) setStatus(text string, failed bool) {
	m.status = text
	m.failed = failed
}

func (m Model) busy() bool {
	return m.working > 0 || m.snapshot.Busy || m.snapshot.State != chat.StateIdle
}

// layout sizes the transcript viewport and re-renders its content
func (m *Model) layout() {
	// title, input, status and help lines
	reserved := 2 + m.input.Height() + 2
	if m.editing != editNone {
		reserved++
	}
	height := m.height - reserved
	if height < 3 {
		height = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = height
	m.viewport.SetContent(m.renderTranscript())
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n\n")
	b.WriteString(m.viewport.View() + "\n")

	if m.editing != editNone {
		label := "Amount: "
		if m.editing == editSlippage {
			label = "Slippage %: "
		}
		b.WriteString(statusBarStyle.Render(label) + m.edit.View() + "\n")
	}

	if m.formFocused() {
		b.WriteString(dimStyle.Render("  Answer the swap prompt above or cancel it (c).") + "\n")
	} else {
		b.WriteString(m.input.View() + "\n")
	}

	b.WriteString(m.renderStatus() + "\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	selected := m.session.Selected()
	parts := []string{titleStyle.Render("Agent Chat")}
	for _, a := range m.session.Registry().List() {
		if a.ID == selected.ID {
			parts = append(parts, selectedAgentStyle.Render(a.Name))
		} else {
			parts = append(parts, agentTabStyle.Render(a.Name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderStatus() string {
	var parts []string
	if m.busy() {
		label := "Thinking..."
		switch m.snapshot.State {
		case chat.StateAwaitingSignature:
			label = "Signing transaction..."
		case chat.StateAwaitingConfirmation:
			label = "Waiting for confirmation " + shortHash(m.snapshot.TxHash.Hex())
		case chat.StateSettled:
			label = "Reporting result..."
		}
		parts = append(parts, m.spinner.View()+" "+label)
	}

	selected := m.session.Selected()
	if selected.RequiresConnectedWallet && !m.session.Controller().Wallet().Connected() {
		parts = append(parts, noticeStyle.Render("Wallet not connected"))
	}
	if m.status != "" {
		if m.failed {
			parts = append(parts, errorStyle.Render(m.status))
		} else {
			parts = append(parts, m.status)
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderHelp() string {
	if m.editing != editNone {
		return helpStyle.Render("  Enter: apply  Esc: discard")
	}
	if m.formFocused() {
		return helpStyle.Render("  Enter: " + m.form.Action().String() + "  a: amount  s: slippage  r: allowance  c: cancel  Tab: agent  Ctrl+C: quit")
	}
	if m.form != nil {
		return helpStyle.Render("  Enter: send  Ctrl+S: " + m.form.Action().String() + "  Ctrl+X: cancel swap  Tab: agent  /help  Ctrl+C: quit")
	}
	return helpStyle.Render("  Enter: send  Alt+Enter: newline  Tab: agent  PgUp/PgDn: scroll  /help  Ctrl+C: quit")
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + ".." + hash[len(hash)-4:]
}
