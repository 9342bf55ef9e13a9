package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nickchat/internal/protocol"
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	purple = lipgloss.Color("99")
	cyan   = lipgloss.Color("86")
	red    = lipgloss.Color("196")
	yellow = lipgloss.Color("220")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	orange = lipgloss.Color("214")
	blue   = lipgloss.Color("75")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Width(10)

	hintStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true)

	errorStyle  = lipgloss.NewStyle().Foreground(red)
	sysStyle    = lipgloss.NewStyle().Foreground(yellow).Italic(true)
	myNameStyle = lipgloss.NewStyle().Bold(true).Foreground(orange)
	peerStyle   = lipgloss.NewStyle().Bold(true).Foreground(blue)
)

// ---------------------------------------------------------------------------
// Bubbletea message types
// ---------------------------------------------------------------------------

type serverLineMsg string     // a line arrived from the server
type disconnectedMsg struct{} // server closed the connection

type appState int

const (
	stateNick appState = iota
	stateChat
)

const exitCommand = "exit"

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type model struct {
	conn  io.Writer
	lines chan string // reader goroutine → bubbletea bridge

	state appState
	me    string // proposed name once accepted; empty for a generated one

	// Nickname prompt
	nickInput textinput.Model
	pending   *string // proposal awaiting the server's verdict
	statusMsg string

	// Chat
	ready     bool
	viewport  viewport.Model
	chatInput textinput.Model
	chatLines []string

	width, height int
	quitting      bool
	errMsg        string
}

func newModel(conn io.Writer, lines chan string) model {
	ni := textinput.New()
	ni.Placeholder = "leave empty for an automatic name"
	ni.Focus()
	ni.CharLimit = protocol.MaxNameLength
	ni.Width = 36

	ci := textinput.New()
	ci.Placeholder = "Type a message…  (exit to leave)"
	ci.CharLimit = protocol.DefaultMaxFrameSize

	return model{
		conn:      conn,
		lines:     lines,
		state:     stateNick,
		nickInput: ni,
		chatInput: ci,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForLine(m.lines))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.vpHeight())
			m.viewport.SetContent(strings.Join(m.chatLines, "\n"))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.vpHeight()
		}
		m.chatInput.Width = msg.Width - 4
		return m, nil

	case serverLineMsg:
		m = m.handleServerLine(string(msg))
		return m, waitForLine(m.lines)

	case disconnectedMsg:
		m.errMsg = "connection closed by server"
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch m.state {
		case stateNick:
			return m.handleNickKey(msg)
		case stateChat:
			return m.handleChatKey(msg)
		}
	}
	return m, nil
}

// vpHeight returns the number of lines available for the chat viewport.
func (m model) vpHeight() int {
	// header (1) + footer border (1) + footer input (1) = 3 lines reserved
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

// ---------------------------------------------------------------------------
// Key handlers
// ---------------------------------------------------------------------------

func (m model) handleNickKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEnter:
		if m.pending != nil {
			return m, nil
		}
		name := strings.TrimSpace(m.nickInput.Value())
		if err := protocol.WriteFrame(m.conn, name); err != nil {
			m.errMsg = fmt.Sprintf("send failed: %v", err)
			m.quitting = true
			return m, tea.Quit
		}
		m.pending = &name
		m.statusMsg = "Checking nickname…"
		return m, nil
	}

	var cmd tea.Cmd
	m.nickInput, cmd = m.nickInput.Update(msg)
	return m, cmd
}

func (m model) handleChatKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEnter:
		text := strings.TrimSpace(m.chatInput.Value())
		m.chatInput.Reset()
		switch text {
		case "":
			return m, nil
		case exitCommand:
			m.quitting = true
			return m, tea.Quit
		}
		if err := protocol.WriteFrame(m.conn, text); err != nil {
			m.errMsg = fmt.Sprintf("send failed: %v", err)
			m.quitting = true
			return m, tea.Quit
		}
		m.appendChat(myNameStyle.Render("You") + ": " + text)
		return m, nil

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

// ---------------------------------------------------------------------------
// Server line handler
// ---------------------------------------------------------------------------

func (m model) handleServerLine(line string) model {
	if m.state == stateNick {
		v, err := protocol.ParseVerdict(line)
		if err != nil || m.pending == nil {
			return m
		}
		name := *m.pending
		m.pending = nil
		if v == protocol.Taken {
			m.statusMsg = fmt.Sprintf("%q is already taken. Please choose another one.", name)
			m.nickInput.SetValue("")
			return m
		}
		m.me = name
		m.state = stateChat
		m.statusMsg = ""
		m.nickInput.Blur()
		m.chatInput.Focus()
		return m
	}

	m.appendChat(renderLine(line))
	return m
}

// renderLine styles one incoming line.  Join and leave announcements carry no
// marker on the wire, so they are recognised by their fixed suffixes.
func renderLine(line string) string {
	if strings.HasSuffix(line, " has joined the chat.") || strings.HasSuffix(line, " has left the chat.") {
		return sysStyle.Render("⚡ " + line)
	}
	if name, text, ok := strings.Cut(line, ": "); ok {
		return peerStyle.Render(name) + ": " + text
	}
	return line
}

// appendChat adds a rendered line and scrolls the viewport to the bottom.
func (m *model) appendChat(line string) {
	m.chatLines = append(m.chatLines, line)
	if m.ready {
		m.viewport.SetContent(strings.Join(m.chatLines, "\n"))
		m.viewport.GotoBottom()
	}
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func (m model) View() string {
	if m.quitting {
		return ""
	}
	switch m.state {
	case stateNick:
		return m.viewNick()
	case stateChat:
		return m.viewChat()
	}
	return ""
}

func (m model) viewNick() string {
	if m.width == 0 {
		return "\n  Connecting to server…"
	}

	status := ""
	if m.statusMsg != "" {
		if m.pending != nil {
			status = hintStyle.Render(m.statusMsg)
		} else {
			status = errorStyle.Render(m.statusMsg)
		}
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("  nickchat  "),
		"",
		labelStyle.Render("Nickname")+"  "+m.nickInput.View(),
		"",
		hintStyle.Render("Enter: join   Esc/Ctrl+C: quit"),
		"",
		status,
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}

func (m model) viewChat() string {
	if !m.ready {
		return "\n  Connecting…"
	}

	who := m.me
	if who == "" {
		who = "auto-assigned name"
	}
	hdr := headerStyle.
		Width(m.width).
		Render(fmt.Sprintf(" nickchat  ·  %s  ·  PgUp/Dn: Scroll  exit or Ctrl+C: Quit", who))

	footer := footerBorderStyle.
		Width(m.width - 2).
		Render(m.chatInput.View())

	return lipgloss.JoinVertical(lipgloss.Left, hdr, m.viewport.View(), footer)
}

// waitForLine returns a tea.Cmd that blocks until the next line arrives on ch.
// When ch is closed (server disconnected), it returns disconnectedMsg.
func waitForLine(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return disconnectedMsg{}
		}
		return serverLineMsg(line)
	}
}
