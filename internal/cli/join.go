package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/media"
	"github.com/BioHazard786/meshroom/internal/negotiation"
	"github.com/BioHazard786/meshroom/internal/protocol"
	"github.com/BioHazard786/meshroom/internal/rtc"
	"github.com/BioHazard786/meshroom/internal/signaling"
	"github.com/BioHazard786/meshroom/internal/ui"
	"github.com/BioHazard786/meshroom/internal/utils"
)

const connectTimeout = 10 * time.Second

func newJoinCmd() *cobra.Command {
	var (
		opts    config.Options
		newRoom bool
	)

	cmd := &cobra.Command{
		Use:     "join [room]",
		Aliases: []string{"j"},
		Short:   "Join a room and connect to everyone in it",
		Long: `Join a room on the relay and negotiate a connection with every participant.

Examples:
  meshroom join standup
  meshroom join --new
  meshroom join --server wss://relay.example.com standup
  meshroom join --audio-only --audio-file intro.ogg standup
  meshroom join --turn turn.example.com --turn-user me --turn-pass secret --relay`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Room = args[0]
			}
			if newRoom {
				if opts.Room != "" {
					return fmt.Errorf("--new cannot be combined with a room name")
				}
				opts.Room = utils.RoomName()
				fmt.Fprintf(cmd.OutOrStdout(), "%s New room %s, share the name to invite others\n",
					ui.IconRoom, ui.TitleStyle.Render(opts.Room))
			}
			cfg, err := config.Load(opts)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return join(cmd.Context(), cmd.OutOrStdout(), cfg, slog.Default())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Server, "server", "s", "", "relay channel URL (env MESHROOM_SERVER)")
	f.StringVarP(&opts.Room, "room", "r", "", "room to join (env MESHROOM_ROOM)")
	f.BoolVar(&newRoom, "new", false, "join a freshly named room")
	f.StringVar(&opts.Codec, "codec", "", "channel encoding: json or msgpack (env MESHROOM_CODEC)")
	f.StringVar(&opts.STUNServer, "stun", "", "STUN server URL (env STUN_SERVER)")
	f.StringVar(&opts.TURNServer, "turn", "", "TURN server host or URL (env TURN_SERVER)")
	f.StringVar(&opts.TURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	f.StringVar(&opts.TURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	f.BoolVar(&opts.ForceRelay, "relay", false, "only use TURN relay candidates")
	f.BoolVar(&opts.AudioOnly, "audio-only", false, "send audio only and do not wait for video")
	f.StringVar(&opts.VideoFile, "video-file", "", "IVF file to send instead of the test pattern")
	f.StringVar(&opts.AudioFile, "audio-file", "", "Ogg/Opus file to send instead of silence")
	f.IntVar(&opts.CandidateBuffer, "candidate-buffer", 0, "candidates held per peer before its description arrives")
	f.BoolVar(&opts.Plain, "plain", false, "print one line per event instead of the live view")

	return cmd
}

// eventSink is the room display: the live view or plain lines.
type eventSink interface {
	Handle(negotiation.Event)
	Tiles() *ui.Tiles
}

func join(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	mediaOpts := media.Options{
		AudioOnly: cfg.AudioOnly,
		VideoFile: cfg.VideoFile,
		AudioFile: cfg.AudioFile,
		Logger:    logger,
	}
	if err := media.Validate(mediaOpts); err != nil {
		return err
	}

	codec, err := protocol.ParseCodec(cfg.Codec)
	if err != nil {
		return err
	}

	var sp *ui.SimpleSpinner
	if !cfg.Plain {
		sp = ui.NewConnectionSpinner("Connecting to relay...")
		sp.Start()
	}
	client := signaling.NewClient(cfg.ServerURL, codec, logger)
	dialCtx, cancelDial := context.WithTimeout(ctx, connectTimeout)
	err = client.Connect(dialCtx)
	cancelDial()
	if err != nil {
		if sp != nil {
			sp.Error("Could not reach " + cfg.ServerURL)
		}
		return fmt.Errorf("connect to relay: %w", err)
	}
	defer client.Close()
	if sp != nil {
		sp.Success(fmt.Sprintf("Connected to %s (%s)", cfg.ServerURL, client.Codec().Name()))
	}

	factory, err := rtc.NewFactory(cfg, rtc.Options{Logger: logger})
	if err != nil {
		return err
	}

	ctx, leave := context.WithCancel(ctx)
	defer leave()

	var sink eventSink
	if cfg.Plain {
		sink = ui.NewPlain(out)
	} else {
		room := ui.NewRoomUI(cfg.Room, leave)
		room.Start()
		defer room.Stop()
		sink = room
	}

	required := []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo}
	if cfg.AudioOnly {
		required = required[:1]
	}

	o, err := negotiation.New(negotiation.Config{
		Room:                cfg.Room,
		Transport:           client,
		NewConnection:       factory.New,
		Capture:             media.Source(mediaOpts),
		RequiredKinds:       required,
		CandidateBufferSize: cfg.CandidateBuffer,
		Logger:              logger,
		OnEvent:             sink.Handle,
	})
	if err != nil {
		return err
	}

	runErr := o.Run(ctx)
	if room, ok := sink.(*ui.RoomUI); ok {
		room.Stop()
	}

	switch {
	case errors.Is(runErr, negotiation.ErrMediaUnavailable):
		return runErr
	case errors.Is(runErr, negotiation.ErrRelayClosed):
		fmt.Fprintln(out)
		ui.RenderSummary(out, cfg.Room, sink.Tiles(), time.Now())
		return fmt.Errorf("lost connection to the relay: %w", runErr)
	case runErr != nil:
		return runErr
	}

	fmt.Fprintln(out)
	ui.RenderSummary(out, cfg.Room, sink.Tiles(), time.Now())
	return nil
}
