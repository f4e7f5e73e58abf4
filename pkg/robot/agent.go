package robot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/protocol"
)

// AgentConfig configures an Agent.
type AgentConfig struct {
	// URL is the relay robot endpoint, e.g. ws://host:5000/ws/robot/car-1.
	URL string

	MaxSpeed int
	Rate     RateConfig

	StateInterval     time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HandshakeTimeout  time.Duration
}

// DefaultAgentConfig returns the agent defaults for url.
func DefaultAgentConfig(url string) AgentConfig {
	return AgentConfig{
		URL:               url,
		MaxSpeed:          DefaultMaxSpeed,
		Rate:              DefaultRateConfig(),
		StateInterval:     2 * time.Second,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// Agent keeps a robot connected to the relay and applies its commands.
type Agent struct {
	cfg  AgentConfig
	hw   Hardware
	tank *TankDrive
	rc   *RateController

	wsMu      sync.Mutex
	ws        *websocket.Conn
	connected atomic.Bool
	sessions  atomic.Uint64
}

// NewAgent creates an agent driving hw.
func NewAgent(cfg AgentConfig, hw Hardware) *Agent {
	if cfg.StateInterval <= 0 {
		cfg.StateInterval = 2 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}

	tank := NewTankDrive(hw, cfg.MaxSpeed)
	return &Agent{
		cfg:  cfg,
		hw:   hw,
		tank: tank,
		rc:   NewRateController(tank, cfg.Rate),
	}
}

// Controller returns the motor control loop.
func (a *Agent) Controller() *RateController {
	return a.rc
}

// Connected reports whether a relay session is open.
func (a *Agent) Connected() bool {
	return a.connected.Load()
}

// Sessions returns how many relay sessions have been established.
func (a *Agent) Sessions() uint64 {
	return a.sessions.Load()
}

// Run drives the motors and stays connected to the relay until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.rc.Run(ctx) })
	g.Go(func() error { return a.connectLoop(ctx) })
	return g.Wait()
}

// connectLoop reconnects with exponential backoff.
func (a *Agent) connectLoop(ctx context.Context) error {
	delay := a.cfg.ReconnectDelay
	for {
		established, err := a.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		// Never keep driving on a dead link.
		a.rc.SetPower(drive.Stop)

		if established {
			delay = a.cfg.ReconnectDelay
		}
		log.Warn("relay connection lost", "url", a.cfg.URL, "error", err, "retry", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, a.cfg.MaxReconnectDelay)
	}
}

// session runs one relay connection until it fails or ctx is done.
func (a *Agent) session(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial relay: %w", err)
	}

	a.wsMu.Lock()
	a.ws = ws
	a.wsMu.Unlock()
	a.connected.Store(true)
	a.sessions.Add(1)
	a.rc.Feed()
	log.Info("connected to relay", "url", a.cfg.URL)

	defer func() {
		a.connected.Store(false)
		a.wsMu.Lock()
		a.ws = nil
		a.wsMu.Unlock()
		ws.Close()
	}()

	g, sctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.readLoop(ws) })
	g.Go(func() error { return a.reportLoop(sctx) })
	g.Go(func() error {
		<-sctx.Done()
		ws.Close()
		return nil
	})
	return true, g.Wait()
}

func (a *Agent) readLoop(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		a.handleMessage(data)
	}
}

// reportLoop sends status and keepalives until ctx is done.
func (a *Agent) reportLoop(ctx context.Context) error {
	a.reportState()

	stateTicker := time.NewTicker(a.cfg.StateInterval)
	defer stateTicker.Stop()

	pingTicker := time.NewTicker(a.pingInterval())
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stateTicker.C:
			a.reportState()
		case <-pingTicker.C:
			if err := a.send(protocol.NewPingMessage("")); err != nil {
				return err
			}
		}
	}
}

// pingInterval keeps the watchdog fed while the relay is quiet.
func (a *Agent) pingInterval() time.Duration {
	if w := a.rc.cfg.Watchdog; w > 0 && w/2 < a.cfg.StateInterval {
		return w / 2
	}
	return a.cfg.StateInterval
}

func (a *Agent) reportState() {
	state, err := a.hw.Status()
	if err != nil {
		log.Warn("status read failed", "error", err)
		return
	}
	state.Connected = true
	if err := a.send(protocol.NewStateMessage(state)); err != nil {
		log.Debug("state report failed", "error", err)
	}
}

// handleMessage applies one message from the relay.
func (a *Agent) handleMessage(data []byte) {
	a.rc.Feed()

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("relay sent unparseable message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeDrive:
		power, err := msg.GetDriveData()
		if err != nil {
			log.Warn("bad drive message", "error", err)
			return
		}
		a.rc.SetPower(*power)

	case protocol.TypeButton:
		button, err := msg.GetButtonData()
		if err != nil {
			log.Warn("bad button message", "error", err)
			return
		}
		if err := a.hw.Beep(button.Name); err != nil {
			log.Warn("beep failed", "button", button.Name, "error", err)
		}

	case protocol.TypePing:
		now := time.Now().UnixMilli()
		if err := a.send(protocol.NewPongMessage("", msg.Timestamp, now)); err != nil {
			log.Debug("pong failed", "error", err)
		}

	case protocol.TypePong:
		// keepalive only

	default:
		log.Debug("ignoring relay message", "type", msg.Type)
	}
}

// send writes msg on the current session.
func (a *Agent) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	a.wsMu.Lock()
	defer a.wsMu.Unlock()
	if a.ws == nil {
		return ErrNotConnected
	}
	return a.ws.WriteMessage(websocket.TextMessage, data)
}
