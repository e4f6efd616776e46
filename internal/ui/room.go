package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/meshroom/internal/negotiation"
)

// RoomUI runs the live room view. Events are folded into shared tiles and
// the program is only nudged to redraw, so Handle never blocks the
// orchestrator.
type RoomUI struct {
	program *tea.Program
	model   *roomModel
	wg      sync.WaitGroup
}

type changedMsg struct{}

type roomModel struct {
	room    string
	spinner spinner.Model
	onQuit  func()
	changed chan struct{}

	mu       sync.Mutex
	tiles    *Tiles
	quitting bool
}

// NewRoomUI builds the view for room. onQuit runs when the user presses q.
func NewRoomUI(room string, onQuit func()) *RoomUI {
	return &RoomUI{model: newRoomModel(room, onQuit)}
}

func newRoomModel(room string, onQuit func()) *roomModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	if onQuit == nil {
		onQuit = func() {}
	}
	return &roomModel{
		room:    room,
		spinner: s,
		onQuit:  onQuit,
		changed: make(chan struct{}, 1),
		tiles:   NewTiles(),
	}
}

// Start runs the program in a goroutine. The view is inline so earlier
// output stays visible.
func (ui *RoomUI) Start() {
	ui.program = tea.NewProgram(ui.model)
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		if _, err := ui.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Handle records ev. It matches the orchestrator's OnEvent hook.
func (ui *RoomUI) Handle(ev negotiation.Event) {
	ui.model.apply(ev)
}

// Stop quits the program and waits for it to restore the terminal.
func (ui *RoomUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

// Tiles returns the accumulated room state. Call it after Stop.
func (ui *RoomUI) Tiles() *Tiles {
	ui.model.mu.Lock()
	defer ui.model.mu.Unlock()
	return ui.model.tiles
}

func (m *roomModel) apply(ev negotiation.Event) {
	m.mu.Lock()
	m.tiles.Apply(ev)
	m.mu.Unlock()
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

func (m *roomModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changed
		return changedMsg{}
	}
}

func (m *roomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForChange())
}

func (m *roomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.mu.Lock()
			m.quitting = true
			m.mu.Unlock()
			m.onQuit()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case changedMsg:
		return m, m.waitForChange()
	}
	return m, nil
}

func (m *roomModel) View() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quitting {
		return ""
	}

	var b strings.Builder

	room := m.room
	if room == "" {
		room = "default room"
	}
	fmt.Fprintf(&b, "\n%s %s", IconRoom, TitleStyle.Render(room))
	if m.tiles.Self != "" {
		fmt.Fprintf(&b, "  %s", MutedStyle.Render("you are "+m.tiles.Self))
	}
	b.WriteString("\n\n")

	var status string
	switch {
	case m.tiles.Self == "":
		status = "Joining..."
	case len(m.tiles.Active()) == 0:
		status = "Waiting for others to join"
	default:
		status = fmt.Sprintf("%d of %d streams live", m.tiles.Streams(), len(m.tiles.Active()))
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), status)

	b.WriteString(m.tiles.View())
	b.WriteString("\n")

	for _, e := range m.tiles.Errors {
		fmt.Fprintf(&b, "%s %s\n", IconWarning, WarningStyle.Render(e))
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to leave"))
	return b.String()
}
