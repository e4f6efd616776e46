package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/BioHazard786/meshroom/internal/negotiation"
	"github.com/BioHazard786/meshroom/internal/utils"
)

// Plain prints one line per room event, for pipes and dumb terminals.
type Plain struct {
	mu    sync.Mutex
	out   io.Writer
	tiles *Tiles
}

func NewPlain(out io.Writer) *Plain {
	return &Plain{out: out, tiles: NewTiles()}
}

// Handle records ev and prints it. It matches the orchestrator's OnEvent
// hook.
func (p *Plain) Handle(ev negotiation.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tiles.Apply(ev)

	ts := ev.At.Format("15:04:05")
	switch ev.Kind {
	case negotiation.EventJoined:
		fmt.Fprintf(p.out, "%s joined as %s\n", ts, ev.Peer)
	case negotiation.EventLinkOpened:
		fmt.Fprintf(p.out, "%s %s link opened (%s)\n", ts, utils.ShortID(ev.Peer, 12), ev.Role)
	case negotiation.EventStateChanged:
		fmt.Fprintf(p.out, "%s %s %s\n", ts, utils.ShortID(ev.Peer, 12), ev.State)
	case negotiation.EventStreamAdded:
		fmt.Fprintf(p.out, "%s %s stream %s (%d live)\n", ts, utils.ShortID(ev.Peer, 12), ev.StreamID, p.tiles.Streams())
	case negotiation.EventStreamRemoved:
		fmt.Fprintf(p.out, "%s %s stream removed (%d live)\n", ts, utils.ShortID(ev.Peer, 12), p.tiles.Streams())
	case negotiation.EventLinkClosed:
		fmt.Fprintf(p.out, "%s %s closed: %s\n", ts, utils.ShortID(ev.Peer, 12), closeReason(ev.Err))
	case negotiation.EventRelayError:
		fmt.Fprintf(p.out, "%s relay error: %v\n", ts, ev.Err)
	}
}

// Tiles returns the state accumulated so far. Call it once events stop.
func (p *Plain) Tiles() *Tiles {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tiles
}
