package ui

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/meshroom/internal/utils"
)

// RenderSummary writes the end-of-session table: one row per peer seen,
// with how long its stream was up.
func RenderSummary(w io.Writer, room string, ts *Tiles, ended time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	if room == "" {
		room = "default room"
	}
	t.SetTitle("Session summary: " + room)
	t.AppendHeader(table.Row{"Peer", "Role", "Final state", "Streamed", "Reason"})

	streamed := 0
	for _, tile := range ts.All() {
		dur := "-"
		if !tile.Connected.IsZero() {
			streamed++
			end := tile.Closed
			if end.IsZero() {
				end = ended
			}
			dur = utils.FormatTimeDuration(end.Sub(tile.Connected))
		}
		reason := tile.Reason
		if reason == "" {
			reason = "-"
		}
		t.AppendRow(table.Row{tile.Peer, tile.Role.String(), tile.State.String(), dur, reason})
	}
	t.AppendFooter(table.Row{"Peers", len(ts.All()), "", streamed, ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}
