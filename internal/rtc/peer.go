// Package rtc backs negotiation links with pion PeerConnections.
package rtc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/logging"
	"github.com/BioHazard786/meshroom/internal/negotiation"
	"github.com/BioHazard786/meshroom/internal/utils"
)

// ErrConnectionFailed is reported through OnFailure when ICE or DTLS gives up.
var ErrConnectionFailed = errors.New("peer connection failed")

type Options struct {
	Logger *slog.Logger
	// Setting adjusts the setting engine before the API is built. Tests use
	// it to put connections on a virtual network.
	Setting func(*webrtc.SettingEngine)
	// ProbeRelay reports whether the host looks like it sits behind a VPN or
	// CGNAT. Defaults to utils.ShouldForceRelay.
	ProbeRelay func() bool
}

// Factory creates PeerConnections that share one API, ICE configuration and
// logger.
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
	log    *slog.Logger
}

func NewFactory(cfg *config.Config, opts Options) (*Factory, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	probe := opts.ProbeRelay
	if probe == nil {
		probe = utils.ShouldForceRelay
	}

	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || probe()) {
		policy = webrtc.ICETransportPolicyRelay
		log.Info("restricting ICE to TURN relay candidates")
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	se := webrtc.SettingEngine{LoggerFactory: logging.NewPionFactory(log)}
	if opts.Setting != nil {
		opts.Setting(&se)
	}

	return &Factory{
		api: webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se)),
		config: webrtc.Configuration{
			ICEServers:         iceServers,
			ICETransportPolicy: policy,
		},
		log: log,
	}, nil
}

// Configuration returns the ICE configuration every connection is built with.
func (f *Factory) Configuration() webrtc.Configuration { return f.config }

// New creates the connection toward peer. It matches
// negotiation.ConnectionFactory.
func (f *Factory) New(peer string) (negotiation.Connection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	c := &Conn{pc: pc, log: f.log.With("peer", peer)}
	pc.OnConnectionStateChange(c.stateChanged)
	return c, nil
}

// Conn adapts a pion PeerConnection to negotiation.Connection.
type Conn struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger

	mu        sync.Mutex
	onFailure func(error)
	failed    bool
}

var _ negotiation.Connection = (*Conn)(nil)

func (c *Conn) AddTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add %s track: %w", track.Kind(), err)
	}
	// RTCP has to be read for interceptors like NACK to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *Conn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *Conn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Conn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *Conn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *Conn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *Conn) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if cand == nil {
			return
		}
		f(cand.ToJSON())
	})
}

func (c *Conn) OnTrack(f func(negotiation.RemoteTrack)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.log.Debug("remote track",
			"kind", track.Kind(),
			"stream", track.StreamID(),
			"codec", track.Codec().MimeType,
		)
		f(negotiation.RemoteTrack{
			StreamID: track.StreamID(),
			TrackID:  track.ID(),
			Kind:     track.Kind(),
		})
		go drain(track)
	})
}

func (c *Conn) OnFailure(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailure = f
}

func (c *Conn) Close() error {
	return c.pc.Close()
}

func (c *Conn) stateChanged(state webrtc.PeerConnectionState) {
	c.log.Debug("peer connection state", "state", state)
	if state != webrtc.PeerConnectionStateFailed {
		return
	}
	c.mu.Lock()
	f := c.onFailure
	fire := !c.failed && f != nil
	c.failed = true
	c.mu.Unlock()
	if fire {
		f(ErrConnectionFailed)
	}
}

// drain keeps the receive buffers moving; the terminal client does not
// render remote media.
func drain(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}
