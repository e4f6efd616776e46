package ui

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/meshroom/internal/negotiation"
	"github.com/BioHazard786/meshroom/internal/utils"
)

// Tile is what the room shows for one remote participant.
type Tile struct {
	Peer     string
	Role     negotiation.Role
	State    negotiation.State
	StreamID string
	Opened   time.Time
	// Connected is when the stream was first shown, zero if never.
	Connected time.Time
	Closed    time.Time
	Reason    string
}

// Live reports whether the tile's stream is currently on screen.
func (t Tile) Live() bool {
	return t.StreamID != "" && t.State == negotiation.Connected
}

// Tiles folds orchestrator events into per-peer display state. It keeps
// closed peers around for the session summary. It is not safe for
// concurrent use.
type Tiles struct {
	Self   string
	Errors []string

	tiles map[string]*Tile
}

func NewTiles() *Tiles {
	return &Tiles{tiles: make(map[string]*Tile)}
}

// Apply updates the tiles from one event.
func (ts *Tiles) Apply(ev negotiation.Event) {
	switch ev.Kind {
	case negotiation.EventJoined:
		ts.Self = ev.Peer
		return
	case negotiation.EventRelayError:
		if ev.Err != nil {
			ts.Errors = append(ts.Errors, ev.Err.Error())
		}
		return
	case negotiation.EventLinkOpened:
		// A peer that comes back gets a fresh tile.
		ts.tiles[ev.Peer] = &Tile{Peer: ev.Peer, Role: ev.Role, State: ev.State, Opened: ev.At}
		return
	}

	t, ok := ts.tiles[ev.Peer]
	if !ok {
		t = &Tile{Peer: ev.Peer, Opened: ev.At}
		ts.tiles[ev.Peer] = t
	}
	t.Role = ev.Role

	switch ev.Kind {
	case negotiation.EventStateChanged:
		t.State = ev.State
	case negotiation.EventStreamAdded:
		t.State = ev.State
		t.StreamID = ev.StreamID
		if t.Connected.IsZero() {
			t.Connected = ev.At
		}
	case negotiation.EventStreamRemoved:
		t.StreamID = ""
	case negotiation.EventLinkClosed:
		t.State = negotiation.Closed
		t.StreamID = ""
		t.Closed = ev.At
		t.Reason = closeReason(ev.Err)
	}
}

func closeReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, negotiation.ErrPeerLeft):
		return "left"
	case errors.Is(err, negotiation.ErrLocalTeardown):
		return "hung up"
	default:
		return err.Error()
	}
}

// All returns every tile seen, sorted by peer-id.
func (ts *Tiles) All() []Tile {
	out := make([]Tile, 0, len(ts.tiles))
	for _, t := range ts.tiles {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b Tile) int { return cmp.Compare(a.Peer, b.Peer) })
	return out
}

// Active returns the tiles whose link is not closed.
func (ts *Tiles) Active() []Tile {
	return slices.DeleteFunc(ts.All(), func(t Tile) bool { return t.State == negotiation.Closed })
}

// Streams counts the streams currently shown.
func (ts *Tiles) Streams() int {
	n := 0
	for _, t := range ts.tiles {
		if t.Live() {
			n++
		}
	}
	return n
}

// View renders the active tiles as a table.
func (ts *Tiles) View() string {
	active := ts.Active()
	if len(active) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	rows := make([][]string, 0, len(active))
	for _, t := range active {
		stream := MutedStyle.Render("-")
		if t.Live() {
			stream = IconStream + " " + utils.ShortID(t.StreamID, 24)
		}
		rows = append(rows, []string{
			utils.ShortID(t.Peer, 12),
			t.Role.String(),
			StateStyle(t.State).Render(t.State.String()),
			stream,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Peer", "Role", "State", "Stream").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}
