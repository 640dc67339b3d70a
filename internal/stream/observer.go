// Package stream exposes the running character to external renderers over
// WebSocket. Clients receive bus events (and optionally rendered frames) and
// may send command JSON back.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/metrics"
	"github.com/normanking/ragdoll/internal/ragdoll"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8766"

	// EventsEndpoint is the path for WebSocket connections.
	EventsEndpoint = "/ragdoll-events"

	// StateEndpoint returns the latest frame as JSON.
	StateEndpoint = "/state"

	// HealthEndpoint is the path for health checks.
	HealthEndpoint = "/health"

	// MetricsEndpoint serves prometheus metrics.
	MetricsEndpoint = "/metrics"

	// WriteWait is the timeout for writing to a WebSocket.
	WriteWait = 10 * time.Second

	// PongWait is the timeout for pong responses.
	PongWait = 60 * time.Second

	// PingPeriod is how often to send ping frames.
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is the largest command a client may send.
	MaxMessageSize = 4096

	// CommandTimeout bounds how long a client command waits for the engine.
	CommandTimeout = 2 * time.Second

	sendBuffer = 256
)

// Commander executes commands on behalf of clients. engine.Loop satisfies
// it.
type Commander interface {
	Submit(ctx context.Context, cmd ragdoll.Command) error
}

// HistorySource returns recent events for replay. *bus.Bus satisfies it.
type HistorySource interface {
	Recent(n int) []bus.Event
}

// Config configures the observer.
type Config struct {
	Addr          string        `mapstructure:"addr"`
	ReplayHistory bool          `mapstructure:"replay_history"`
	HistoryCount  int           `mapstructure:"history_count"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
}

// DefaultConfig returns the default observer configuration.
func DefaultConfig() Config {
	return Config{
		Addr:          DefaultAddr,
		ReplayHistory: true,
		HistoryCount:  bus.DefaultHistorySize,
		FrameInterval: 100 * time.Millisecond,
	}
}

// Ack is sent back to a client for every command it sends.
type Ack struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Observer is a WebSocket server streaming ragdoll events to clients.
type Observer struct {
	cfg       Config
	log       zerolog.Logger
	commander Commander
	history   HistorySource
	upgrader  websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*client]struct{}

	frameMu   sync.RWMutex
	lastFrame *ragdoll.Frame
	lastSent  time.Time

	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	frames bool
	once   sync.Once

	// replayed is the last event sequence sent during replay; live events
	// up to it are skipped.
	replayed uint64
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// New creates an observer. commander and history may be nil; without a
// commander client messages are rejected.
func New(cfg Config, commander Commander, history HistorySource, log zerolog.Logger) *Observer {
	if cfg.HistoryCount <= 0 {
		cfg.HistoryCount = bus.DefaultHistorySize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Observer{
		cfg:       cfg,
		log:       log,
		commander: commander,
		history:   history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the HTTP routes.
func (o *Observer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(EventsEndpoint, o.handleWebSocket)
	mux.HandleFunc(StateEndpoint, o.handleState)
	mux.HandleFunc(HealthEndpoint, o.handleHealth)
	mux.Handle(MetricsEndpoint, promhttp.Handler())
	return mux
}

// Start listens on the configured address and serves in the background.
func (o *Observer) Start() error {
	if o.server != nil {
		return fmt.Errorf("observer already running")
	}
	ln, err := net.Listen("tcp", o.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", o.cfg.Addr, err)
	}
	o.server = &http.Server{Handler: o.Handler(), ReadHeaderTimeout: 5 * time.Second}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.log.Info().Str("addr", ln.Addr().String()).Msg("stream server started")
		if err := o.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Error().Err(err).Msg("stream server error")
		}
	}()
	return nil
}

// Stop closes every client and shuts the server down.
func (o *Observer) Stop(ctx context.Context) error {
	o.cancel()

	o.clientsMu.Lock()
	for c := range o.clients {
		c.close()
		delete(o.clients, c)
	}
	o.clientsMu.Unlock()
	metrics.StreamClients.Set(0)

	var err error
	if o.server != nil {
		if serr := o.server.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("stream server shutdown: %w", serr)
		}
	}
	o.wg.Wait()
	o.log.Info().Msg("stream server stopped")
	return err
}

// ClientCount returns the number of connected clients.
func (o *Observer) ClientCount() int {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	return len(o.clients)
}

// OnEvent forwards a bus event to every client. It never blocks; a client
// whose buffer is full is dropped.
func (o *Observer) OnEvent(e bus.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		o.log.Warn().Err(err).Str("event", string(e.Type)).Msg("failed to marshal event")
		return
	}
	o.broadcast(data, false, e.Seq)
}

// OnFrame records the latest frame and streams it to frame subscribers at
// most once per FrameInterval.
func (o *Observer) OnFrame(f ragdoll.Frame) {
	now := time.Now()
	o.frameMu.Lock()
	o.lastFrame = &f
	due := now.Sub(o.lastSent) >= o.cfg.FrameInterval
	if due {
		o.lastSent = now
	}
	o.frameMu.Unlock()

	if !due {
		return
	}
	data, err := json.Marshal(bus.Event{Type: bus.EventFrame, Timestamp: now, Data: f})
	if err != nil {
		o.log.Warn().Err(err).Msg("failed to marshal frame")
		return
	}
	o.broadcast(data, true, 0)
}

// broadcast sends data to every client. Frames only go to clients that
// asked for them; events already replayed to a client are skipped.
func (o *Observer) broadcast(data []byte, frame bool, seq uint64) {
	o.clientsMu.RLock()
	var slow []*client
	for c := range o.clients {
		if frame && !c.frames {
			continue
		}
		if !frame && seq != 0 && seq <= c.replayed {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	o.clientsMu.RUnlock()

	for _, c := range slow {
		o.log.Warn().Msg("stream client too slow, disconnecting")
		o.unregister(c)
	}
}

// register adds c, first queueing up to replay events of history. Both
// happen under the write lock so no event falls between the replay and the
// live stream.
func (o *Observer) register(c *client, replay int) bool {
	o.clientsMu.Lock()
	defer o.clientsMu.Unlock()
	if o.ctx.Err() != nil {
		return false
	}
	if replay > 0 && o.history != nil {
		o.replay(c, replay)
	}
	o.clients[c] = struct{}{}
	metrics.StreamClients.Set(float64(len(o.clients)))
	o.log.Info().Int("clients", len(o.clients)).Msg("stream client connected")
	return true
}

func (o *Observer) unregister(c *client) {
	o.clientsMu.Lock()
	defer o.clientsMu.Unlock()
	if _, ok := o.clients[c]; !ok {
		return
	}
	delete(o.clients, c)
	c.close()
	metrics.StreamClients.Set(float64(len(o.clients)))
	o.log.Info().Int("clients", len(o.clients)).Msg("stream client disconnected")
}

// handleWebSocket upgrades the connection. Query parameters: replay=false
// skips history replay, count=N limits it, frames=true adds frame messages.
func (o *Observer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	replay := o.cfg.ReplayHistory && q.Get("replay") != "false"
	count := o.cfg.HistoryCount
	if n, err := strconv.Atoi(q.Get("count")); err == nil && n >= 0 {
		count = n
	}

	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		frames: q.Get("frames") == "true",
	}
	if !replay {
		count = 0
	}
	if !o.register(c, count) {
		conn.Close()
		return
	}

	o.wg.Add(2)
	go o.writePump(c)
	go o.readPump(c)
}

func (o *Observer) replay(c *client, count int) {
	for _, e := range o.history.Recent(count) {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
			c.replayed = e.Seq
		default:
			return
		}
	}
}

func (o *Observer) writePump(c *client) {
	defer o.wg.Done()
	defer c.conn.Close()

	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				o.unregister(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				o.unregister(c)
				return
			}
		}
	}
}

func (o *Observer) readPump(c *client) {
	defer o.wg.Done()
	defer o.unregister(c)

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				o.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		o.reply(c, o.handleCommand(data))
	}
}

func (o *Observer) handleCommand(data []byte) Ack {
	cmd, err := ragdoll.DecodeCommand(data)
	if err != nil {
		return Ack{Type: "error", Error: err.Error()}
	}
	if o.commander == nil {
		return Ack{Type: "error", Command: cmd.Kind(), Error: "commands are disabled"}
	}

	ctx, cancel := context.WithTimeout(o.ctx, CommandTimeout)
	defer cancel()
	if err := o.commander.Submit(ctx, cmd); err != nil {
		return Ack{Type: "error", Command: cmd.Kind(), Error: err.Error()}
	}
	return Ack{Type: "ack", Command: cmd.Kind()}
}

func (o *Observer) reply(c *client, ack Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	if _, ok := o.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// handleState returns the latest frame.
func (o *Observer) handleState(w http.ResponseWriter, r *http.Request) {
	o.frameMu.RLock()
	frame := o.lastFrame
	o.frameMu.RUnlock()

	if frame == nil {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(frame)
}

func (o *Observer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status   string `json:"status"`
		Service  string `json:"service"`
		Clients  int    `json:"clients"`
		HasFrame bool   `json:"has_frame"`
	}{
		Status:  "healthy",
		Service: "ragdoll-stream",
		Clients: o.ClientCount(),
	}
	o.frameMu.RLock()
	health.HasFrame = o.lastFrame != nil
	o.frameMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
