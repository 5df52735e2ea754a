package app

import (
	"log"
	"sync"

	"golang.org/x/net/websocket"
)

// peerSendBuffer bounds the per-connection outbound queue. A client that
// cannot drain its socket loses frames rather than stalling a broadcast.
const peerSendBuffer = 32

// gatewayFrame is one pushed event as it appears on the wire.
type gatewayFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// gatewayPeer is one WebSocket connection with its own write pump, so a slow
// reader never blocks the coordinator.
type gatewayPeer struct {
	conn      *websocket.Conn
	send      chan gatewayFrame
	closeOnce sync.Once
}

func newGatewayPeer(conn *websocket.Conn) *gatewayPeer {
	peer := &gatewayPeer{
		conn: conn,
		send: make(chan gatewayFrame, peerSendBuffer),
	}
	go peer.writePump()
	return peer
}

func (p *gatewayPeer) writePump() {
	for frame := range p.send {
		if err := websocket.JSON.Send(p.conn, frame); err != nil {
			_ = p.conn.Close()
			return
		}
	}
}

func (p *gatewayPeer) close() {
	p.closeOnce.Do(func() {
		close(p.send)
		_ = p.conn.Close()
	})
}

// enqueue hands a frame to the write pump without blocking. Frames to a
// backed-up peer are dropped; delivery is best-effort by contract.
func (p *gatewayPeer) enqueue(frame gatewayFrame) bool {
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

// Gateway tracks every user's active WebSocket connections and implements
// Notifier by fanning each event out to all of them. When a user's last
// connection goes away the configured disconnect handler runs, which the
// coordinator uses to model an implicit leave of all parties.
type Gateway struct {
	mu    sync.Mutex
	peers map[string]map[*gatewayPeer]struct{}

	onUserDisconnected func(userID string)
}

// NewGateway creates an empty connection registry.
func NewGateway() *Gateway {
	return &Gateway{peers: make(map[string]map[*gatewayPeer]struct{})}
}

// SetDisconnectHandler installs the callback invoked after a user's last
// connection closes. It must be set before the gateway accepts connections.
func (g *Gateway) SetDisconnectHandler(handler func(userID string)) {
	g.onUserDisconnected = handler
}

// Deliver pushes an event to every active connection of the user. Unknown or
// offline users are not an error.
func (g *Gateway) Deliver(userID string, event string, payload any) {
	frame := gatewayFrame{Event: event, Payload: payload}

	g.mu.Lock()
	peers := make([]*gatewayPeer, 0, len(g.peers[userID]))
	for peer := range g.peers[userID] {
		peers = append(peers, peer)
	}
	g.mu.Unlock()

	for _, peer := range peers {
		if !peer.enqueue(frame) {
			log.Printf("gateway frame dropped user_id=%s event=%s", userID, event)
		}
	}
}

// register adds a connection for the user.
func (g *Gateway) register(userID string, peer *gatewayPeer) {
	g.mu.Lock()
	connections := g.peers[userID]
	if connections == nil {
		connections = make(map[*gatewayPeer]struct{})
		g.peers[userID] = connections
	}
	connections[peer] = struct{}{}
	total := len(connections)
	g.mu.Unlock()
	log.Printf("gateway connected user_id=%s connections=%d", userID, total)
}

// unregister removes a connection and fires the disconnect handler when it
// was the user's last one.
func (g *Gateway) unregister(userID string, peer *gatewayPeer) {
	g.mu.Lock()
	connections := g.peers[userID]
	delete(connections, peer)
	last := len(connections) == 0
	if last {
		delete(g.peers, userID)
	}
	g.mu.Unlock()

	peer.close()
	log.Printf("gateway disconnected user_id=%s last=%t", userID, last)
	if last && g.onUserDisconnected != nil {
		g.onUserDisconnected(userID)
	}
}
