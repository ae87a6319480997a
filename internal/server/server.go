package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/vibechat/relay/internal/blob"
	"github.com/vibechat/relay/internal/stats"
	"github.com/vibechat/relay/internal/types"
)

const (
	metricActiveConnections = "ActiveConnections"
	metricMessagesRelayed   = "MessagesRelayed"
	metricFilesStored       = "FilesStored"
	metricSignalsForwarded  = "SignalsForwarded"
)

type shutdownReq struct {
	done chan struct{}
}

// storedFile re-enters the event loop once a blob write has completed,
// carrying what is needed to build and fan out the file message.
type storedFile struct {
	client *Client
	to     string
	info   blob.FileInfo
	msgId  int
}

// RelayServer owns the registry, the message store and the connection
// table. All mutation and fan-out happens on the Run goroutine, one
// event at a time; the only concurrent work is blob writes, which
// re-enter the loop via storedFileChan when they finish.
type RelayServer struct {
	log            *log.Logger
	blobs          *blob.Store
	stats          stats.StatsProvider
	registry       *Registry
	store          *MessageStore
	conns          map[string]*Client
	connsLock      sync.Mutex
	eventChan      chan *ClientMessage
	storedFileChan chan *storedFile
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	sendQueueSize  int
	stop           chan shutdownReq
}

func NewRelayServer(logger *log.Logger, blobs *blob.Store, su stats.StatsProvider, sendQueueSize int) (*RelayServer, error) {
	if sendQueueSize <= 0 {
		return nil, fmt.Errorf("send queue size must be positive")
	}

	rs := &RelayServer{
		log:            logger,
		blobs:          blobs,
		stats:          su,
		registry:       NewRegistry(),
		store:          NewMessageStore(logger),
		conns:          make(map[string]*Client),
		eventChan:      make(chan *ClientMessage, 256),
		storedFileChan: make(chan *storedFile, 256),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		sendQueueSize:  sendQueueSize,
		stop:           make(chan shutdownReq),
	}

	rs.stats.RegisterMetric(metricActiveConnections)
	rs.stats.RegisterMetric(metricMessagesRelayed)
	rs.stats.RegisterMetric(metricFilesStored)
	rs.stats.RegisterMetric(metricSignalsForwarded)

	return rs, nil
}

func (rs *RelayServer) Run() {
	for {
		select {
		case client := <-rs.RegisterChan:
			rs.handleRegister(client)
		case client := <-rs.deRegisterChan:
			rs.handleDisconnect(client)
		case msg := <-rs.eventChan:
			rs.handleEvent(msg)
		case sf := <-rs.storedFileChan:
			rs.handleStoredFile(sf)
		case req := <-rs.stop:
			rs.log.Println("stopping relay")
			rs.connsLock.Lock()
			for _, c := range rs.conns {
				c.stopClient()
			}
			rs.connsLock.Unlock()

			close(req.done)
			return
		}
	}
}

func (rs *RelayServer) Shutdown(ctx context.Context) error {
	req := shutdownReq{done: make(chan struct{})}

	select {
	case rs.stop <- req:
	case <-ctx.Done():
		return fmt.Errorf("relay shutdown: %w", ctx.Err())
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("relay shutdown: %w", ctx.Err())
	}
}

func (rs *RelayServer) handleRegister(c *Client) {
	rs.addConn(c)
	rs.stats.Incr(metricActiveConnections)
}

// handleDisconnect flags the connection's participant offline and
// re-broadcasts the roster. A connection that never joined, or whose
// registry entry was superseded by a rejoin, leaves the roster alone.
func (rs *RelayServer) handleDisconnect(c *Client) {
	rs.removeConn(c)
	rs.stats.Decr(metricActiveConnections)

	if _, ok := rs.registry.MarkOffline(c.id); ok {
		rs.broadcastRoster()
	}
}

func (rs *RelayServer) handleEvent(msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		rs.handleJoin(msg)
	case msg.Message != nil:
		rs.handleMessage(msg)
	case msg.FileMessage != nil:
		rs.handleFileMessage(msg)
	case msg.Reaction != nil:
		rs.handleReaction(msg)
	case msg.ProfileUpdate != nil:
		rs.handleProfileUpdate(msg)
	case msg.Typing != nil:
		rs.handleTyping(msg)
	case msg.SignalOffer != nil:
		rs.forwardSignal(msg, msg.SignalOffer, signalOffer)
	case msg.SignalAnswer != nil:
		rs.forwardSignal(msg, msg.SignalAnswer, signalAnswer)
	case msg.SignalIce != nil:
		rs.forwardSignal(msg, msg.SignalIce, signalIce)
	}
}

func (rs *RelayServer) handleJoin(msg *ClientMessage) {
	c := msg.client
	p := rs.registry.Upsert(msg.Join.Username, msg.Join.Avatar, c.id)
	rs.log.Printf("%q joined on connection %s", p.Username, c.id)

	// the socket.io predecessor exposed the socket id implicitly; here
	// the joiner learns its connection id from the join response
	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"connection_id": c.id,
		"participant":   p,
	}))

	rs.broadcastRoster()

	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		History:     &HistorySnapshot{Messages: rs.store.History()},
	})
}

func (rs *RelayServer) handleMessage(msg *ClientMessage) {
	id := msg.Message.Id
	if id == "" {
		id = uuid.NewString()
	}

	m := types.Message{
		Id:        id,
		From:      msg.client.id,
		To:        msg.Message.To,
		Content:   msg.Message.Content,
		Timestamp: Now(),
	}

	if !rs.store.Append(m) {
		return
	}

	rs.fanOutMessage(m, msg.client)
	rs.stats.Incr(metricMessagesRelayed)
}

func (rs *RelayServer) handleFileMessage(msg *ClientMessage) {
	c := msg.client
	payload := msg.FileMessage

	// blob writes must not stall the event loop; the append and fan-out
	// happen when the result re-enters via storedFileChan
	go func() {
		info, err := rs.blobs.Save(payload.File, payload.Filename, payload.FileType)
		if err != nil {
			rs.log.Printf("saving upload %q: %v", payload.Filename, err)
			c.queueMessage(ErrInternalError(msg.Id))
			return
		}

		rs.storedFileChan <- &storedFile{
			client: c,
			to:     payload.To,
			info:   info,
			msgId:  msg.Id,
		}
	}()
}

func (rs *RelayServer) handleStoredFile(sf *storedFile) {
	m := types.Message{
		Id:        uuid.NewString(),
		From:      sf.client.id,
		To:        sf.to,
		FileRef:   sf.info.Ref,
		FileType:  sf.info.Type,
		Filename:  sf.info.Name,
		Timestamp: Now(),
	}

	if !rs.store.Append(m) {
		return
	}

	rs.fanOutMessage(m, sf.client)
	rs.stats.Incr(metricFilesStored)
	rs.stats.Incr(metricMessagesRelayed)
}

// fanOutMessage unicasts to the recipient if one is reachable and always
// echoes to the sender, which is the sender's only acceptance signal.
func (rs *RelayServer) fanOutMessage(m types.Message, sender *Client) {
	out := &ServerMessage{
		BaseMessage:     BaseMessage{Timestamp: m.Timestamp},
		MessageReceived: &m,
	}

	if m.To != "" && m.To != m.From {
		if recipient := rs.getConn(m.To); recipient != nil {
			recipient.queueMessage(out)
		}
	}

	sender.queueMessage(out)
}

func (rs *RelayServer) handleReaction(msg *ClientMessage) {
	m, ok := rs.store.AddReaction(msg.Reaction.MessageId, msg.Reaction.Username, msg.Reaction.Reaction)
	if !ok {
		rs.log.Printf("reaction for unknown message %q", msg.Reaction.MessageId)
		return
	}

	rs.broadcast(&ServerMessage{
		BaseMessage:    BaseMessage{Timestamp: Now()},
		MessageUpdated: &m,
	})
}

func (rs *RelayServer) handleProfileUpdate(msg *ClientMessage) {
	p, ok := rs.registry.UpdateProfile(msg.client.id, msg.ProfileUpdate.Username, msg.ProfileUpdate.Avatar)
	if !ok {
		rs.log.Printf("profile update for unknown connection %s", msg.client.id)
		return
	}

	rs.log.Printf("updated profile for %q on connection %s", p.Username, p.ConnectionId)
	rs.broadcastRoster()
}

func (rs *RelayServer) handleTyping(msg *ClientMessage) {
	if recipient := rs.getConn(msg.Typing.To); recipient != nil {
		recipient.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			TypingIndicator: &TypingIndicator{
				From:     msg.client.id,
				IsTyping: msg.Typing.IsTyping,
			},
		})
	}
}

type signalKind int

const (
	signalOffer signalKind = iota
	signalAnswer
	signalIce
)

// forwardSignal relays a WebRTC signaling payload verbatim to its
// target, tagged with the same kind it arrived as.
func (rs *RelayServer) forwardSignal(msg *ClientMessage, payload *SignalPayload, kind signalKind) {
	recipient := rs.getConn(payload.To)
	if recipient == nil {
		return
	}

	ev := &SignalEvent{From: msg.client.id, Payload: payload.Payload}
	out := &ServerMessage{BaseMessage: BaseMessage{Timestamp: Now()}}
	switch kind {
	case signalOffer:
		out.SignalOffer = ev
	case signalAnswer:
		out.SignalAnswer = ev
	case signalIce:
		out.SignalIce = ev
	}

	recipient.queueMessage(out)
	rs.stats.Incr(metricSignalsForwarded)
}

func (rs *RelayServer) broadcastRoster() {
	rs.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Roster:      &RosterUpdate{Participants: rs.registry.Snapshot()},
	})
}

func (rs *RelayServer) broadcast(msg *ServerMessage) {
	rs.connsLock.Lock()
	defer rs.connsLock.Unlock()

	for _, c := range rs.conns {
		c.queueMessage(msg)
	}
}

func (rs *RelayServer) addConn(c *Client) {
	rs.connsLock.Lock()
	defer rs.connsLock.Unlock()

	rs.log.Printf("adding connection %s", c.id)
	rs.conns[c.id] = c
}

func (rs *RelayServer) removeConn(c *Client) {
	rs.connsLock.Lock()
	defer rs.connsLock.Unlock()

	rs.log.Printf("removing connection %s", c.id)
	delete(rs.conns, c.id)
}

func (rs *RelayServer) getConn(id string) *Client {
	rs.connsLock.Lock()
	defer rs.connsLock.Unlock()

	return rs.conns[id]
}

// Roster exposes the current roster for read-side consumers.
func (rs *RelayServer) Roster() []types.Participant {
	return rs.registry.Snapshot()
}

// History exposes the full message log for read-side consumers.
func (rs *RelayServer) History() []types.Message {
	return rs.store.History()
}
