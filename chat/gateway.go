package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/auth"
	"github.com/consulthub/consulthub-api/config"
	"github.com/consulthub/consulthub-api/databases"
	"github.com/consulthub/consulthub-api/models"
)

const mirrorTimeout = 3 * time.Second

// Authenticator resolves the handshake credentials of a connection
type Authenticator interface {
	AuthenticateToken(ctx context.Context, authField, header string) (*auth.Identity, error)
}

// Options tunes the transport
type Options struct {
	PingInterval    time.Duration
	PingTimeout     time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

// OptionsFromConfig reads the chat settings out of the service config
func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		PingInterval:    conf.PingInterval,
		PingTimeout:     conf.PingTimeout,
		SendBuffer:      conf.SendBuffer,
		MaxMessageBytes: conf.MaxMessageBytes,
	}
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 60 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	return o
}

type inbound struct {
	conn  *Conn
	event InboundEvent
	err   error
}

type authResult struct {
	conn     *Conn
	identity *auth.Identity
	err      error
}

type presenceUpdate struct {
	userID string
	connID string
	online bool
}

// Gateway accepts chat connections and relays events between room members.
// Rooms, presence and connections are owned by the goroutine running Run;
// everything else talks to it over channels.
type Gateway struct {
	authn    Authenticator
	store    databases.PresenceStore
	opts     Options
	upgrader websocket.Upgrader

	register    chan *Conn
	unregister  chan *Conn
	inbound     chan inbound
	authResults chan authResult
	queries     chan func()
	mirror      chan presenceUpdate

	base    context.Context
	stopAll context.CancelFunc
	done    chan struct{}

	conns    map[string]*Conn
	rooms    *registry
	presence *presence
	ids      messageIDs
}

// NewGateway builds a gateway. store may be nil when presence is not mirrored.
func NewGateway(authn Authenticator, store databases.PresenceStore, opts Options) *Gateway {
	if store == nil {
		store = databases.NoopPresence{}
	}
	opts = opts.withDefaults()
	base, cancel := context.WithCancel(context.Background())

	return &Gateway{
		authn: authn,
		store: store,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		register:    make(chan *Conn),
		unregister:  make(chan *Conn),
		inbound:     make(chan inbound),
		authResults: make(chan authResult),
		queries:     make(chan func()),
		mirror:      make(chan presenceUpdate, 256),
		base:        base,
		stopAll:     cancel,
		done:        make(chan struct{}),
		conns:       make(map[string]*Conn),
		rooms:       newRegistry(),
		presence:    newPresence(),
		ids:         messageIDs{now: time.Now},
	}
}

// ServeWS upgrades the request and starts authenticating the connection in
// the background. Events sent before authentication finishes are rejected.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	authField := r.URL.Query().Get(auth.TokenQueryParam)
	header := r.Header.Get("Authorization")

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade chat connection",
			"remote", r.RemoteAddr,
			"error", err)
		return
	}

	c := newConn(ws, g.opts.SendBuffer)
	ctx, cancel := context.WithCancel(g.base)
	c.cancel = cancel

	select {
	case g.register <- c:
	case <-g.done:
		cancel()
		ws.Close()
		return
	}

	go c.writePump(g.opts.PingInterval)
	go c.readPump(g)
	go g.authenticate(ctx, c, authField, header)
}

func (g *Gateway) authenticate(ctx context.Context, c *Conn, authField, header string) {
	identity, err := g.authn.AuthenticateToken(ctx, authField, header)
	select {
	case g.authResults <- authResult{conn: c, identity: identity, err: err}:
	case <-g.done:
	}
}

func (g *Gateway) unregisterConn(c *Conn) {
	select {
	case g.unregister <- c:
	case <-g.done:
	}
}

func (g *Gateway) dispatchInbound(in inbound) bool {
	select {
	case g.inbound <- in:
		return true
	case <-g.done:
		return false
	}
}

// Run owns the gateway state until ctx is cancelled. Open connections are
// closed on the way out.
func (g *Gateway) Run(ctx context.Context) {
	go g.mirrorPresence(ctx)

	defer func() {
		for _, c := range g.conns {
			c.cancel()
			g.closeConn(c)
		}
		g.stopAll()
		close(g.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-g.register:
			g.conns[c.id] = c
			zap.S().Debugw("chat connection opened",
				"conn", c.id,
				"remote", c.remote)
		case c := <-g.unregister:
			g.disconnect(c)
		case res := <-g.authResults:
			g.handleAuth(res)
		case in := <-g.inbound:
			g.handleInbound(in)
		case fn := <-g.queries:
			fn()
		}
	}
}

func (g *Gateway) handleAuth(res authResult) {
	c := res.conn
	if _, ok := g.conns[c.id]; !ok || c.closed {
		zap.S().Debugw("authentication finished after disconnect",
			"conn", c.id)
		return
	}

	if res.err != nil {
		message := "Authentication failed"
		var authErr *auth.Error
		if errors.As(res.err, &authErr) {
			message = authErr.Message
		}
		zap.S().Warnw("chat authentication failed",
			"conn", c.id,
			"remote", c.remote,
			"reason", res.err)
		g.emit(c, ErrorEvent{Message: message})
		g.closeConn(c)
		return
	}

	c.userID = res.identity.UserID
	c.profile = res.identity.Profile
	if prev := g.presence.set(c.userID, c); prev != nil && prev != c {
		zap.S().Infow("chat presence replaced by newer connection",
			"userId", c.userID,
			"previous", prev.id,
			"conn", c.id)
	}
	g.mirrorUpdate(presenceUpdate{userID: c.userID, connID: c.id, online: true})

	zap.S().Infow("User connected",
		"name", c.profile.Name,
		"userId", c.userID,
		"conn", c.id)
	g.emit(c, Authenticated{UserID: c.userID, Profile: c.profile})
}

func (g *Gateway) disconnect(c *Conn) {
	if _, ok := g.conns[c.id]; !ok {
		return
	}
	delete(g.conns, c.id)
	c.cancel()

	if c.userID != "" {
		if userID, ok := g.presence.remove(c.id); ok {
			g.mirrorUpdate(presenceUpdate{userID: userID, connID: c.id, online: false})
		}
		// a newer connection of the same user may own the membership by now
		if roomID, ok := g.rooms.findRoomOf(c.userID); ok && g.rooms.memberConn(roomID, c.userID) == c {
			g.rooms.leave(roomID, c.userID)
			g.broadcast(roomID, c.userID, UserLeft{UserID: c.userID})
		}
	}
	g.closeConn(c)

	zap.S().Infow("User disconnected",
		"conn", c.id,
		"userId", c.userID)
}

func (g *Gateway) handleInbound(in inbound) {
	c := in.conn
	if _, ok := g.conns[c.id]; !ok || c.closed {
		return
	}
	if c.userID == "" {
		g.emit(c, ErrorEvent{Message: validation(ErrNotAuthenticated).Message})
		return
	}
	if in.err != nil {
		g.emit(c, ErrorEvent{Message: validation(in.err).Message})
		return
	}

	if err := g.dispatch(c, in.event); err != nil {
		var evErr *HandlerError
		if !errors.As(err, &evErr) {
			evErr = &HandlerError{Message: operationFailure(in.event), Err: err}
		}
		zap.S().Debugw("chat event rejected",
			"event", in.event.EventName(),
			"userId", c.userID,
			"error", evErr)
		g.emit(c, ErrorEvent{Message: evErr.Message})
	}
}

// emit sends ev to a single connection
func (g *Gateway) emit(c *Conn, ev Event) {
	frame, err := Encode(ev)
	if err != nil {
		zap.S().Errorw("failed to encode chat event",
			"event", ev.EventName(),
			"error", err)
		return
	}
	g.deliver(c, frame)
}

// broadcast sends ev to every member of roomID except the user exclude
func (g *Gateway) broadcast(roomID, exclude string, ev Event) {
	frame, err := Encode(ev)
	if err != nil {
		zap.S().Errorw("failed to encode chat event",
			"event", ev.EventName(),
			"error", err)
		return
	}
	for _, c := range g.rooms.others(roomID, exclude) {
		g.deliver(c, frame)
	}
}

// deliver never blocks the loop. A connection that cannot keep up is hung up
// on and cleaned up once its read pump notices.
func (g *Gateway) deliver(c *Conn, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		zap.S().Warnw("chat send buffer full, dropping connection",
			"conn", c.id,
			"userId", c.userID)
		g.closeConn(c)
	}
}

func (g *Gateway) closeConn(c *Conn) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (g *Gateway) mirrorUpdate(u presenceUpdate) {
	select {
	case g.mirror <- u:
	default:
		zap.S().Warnw("presence mirror queue full, skipping update",
			"userId", u.userID,
			"online", u.online)
	}
}

// mirrorPresence copies presence changes to the shared store in order
func (g *Gateway) mirrorPresence(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-g.mirror:
			mctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
			var err error
			if u.online {
				err = g.store.Online(mctx, u.userID, u.connID)
			} else {
				err = g.store.Offline(mctx, u.userID, u.connID)
			}
			cancel()
			if err != nil {
				zap.S().Warnw("failed to mirror chat presence",
					"userId", u.userID,
					"online", u.online,
					"error", err)
			}
		}
	}
}

// query runs fn on the loop and waits for it
func (g *Gateway) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case g.queries <- func() { fn(); close(finished) }:
	case <-g.done:
		return ErrGatewayStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-g.done:
		return ErrGatewayStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a snapshot of the gateway
func (g *Gateway) Stats(ctx context.Context) (models.ChatStats, error) {
	var stats models.ChatStats
	err := g.query(ctx, func() {
		stats.Rooms, stats.Members = g.rooms.size()
		stats.OnlineUsers = len(g.presence.byUser)
		stats.Connections = len(g.conns)
	})
	return stats, err
}

// RoomMembers lists the user ids currently in roomID
func (g *Gateway) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	var members []string
	err := g.query(ctx, func() {
		members = g.rooms.members(roomID)
	})
	return members, err
}

// OnlineUsers maps every present user to its connection id
func (g *Gateway) OnlineUsers(ctx context.Context) (map[string]string, error) {
	var online map[string]string
	err := g.query(ctx, func() {
		online = g.presence.snapshot()
	})
	return online, err
}

// RefreshPresence renews the shared store entry of every online user. The
// renewals are queued from the loop so that they stay ordered with the
// offline updates of later disconnects.
func (g *Gateway) RefreshPresence(ctx context.Context) (int, error) {
	var queued int
	err := g.query(ctx, func() {
		for userID, c := range g.presence.byUser {
			g.mirrorUpdate(presenceUpdate{userID: userID, connID: c.id, online: true})
			queued++
		}
	})
	return queued, err
}
