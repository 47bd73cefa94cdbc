// Package core owns all room state, membership, and broadcast fan-out.
package core

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PrivateChatProtocol/private-chat-server/internal/domain"
)

// membership is the two-sided connection<->username index of one room.
// Invariant: byName and byConn always describe the same set of pairs.
// All mutation goes through add/remove so the two sides cannot diverge.
type membership struct {
	byName map[string]Conn   // username -> connection
	byConn map[string]string // connection ID -> username
}

func newMembership() *membership {
	return &membership{
		byName: make(map[string]Conn),
		byConn: make(map[string]string),
	}
}

// add inserts the pair unless the username is taken or the connection
// already holds membership under another name. Username comparison is
// case-sensitive exact match.
func (m *membership) add(conn Conn, username string) bool {
	if _, taken := m.byName[username]; taken {
		return false
	}
	if _, joined := m.byConn[conn.ID()]; joined {
		return false
	}
	m.byName[username] = conn
	m.byConn[conn.ID()] = username
	return true
}

// remove deletes both sides of the pair. No-op if the username is absent.
func (m *membership) remove(username string) {
	conn, ok := m.byName[username]
	if !ok {
		return
	}
	delete(m.byName, username)
	delete(m.byConn, conn.ID())
}

func (m *membership) size() int { return len(m.byName) }

func (m *membership) conns() []Conn {
	out := make([]Conn, 0, len(m.byName))
	for _, c := range m.byName {
		out = append(out, c)
	}
	return out
}

func (m *membership) users() []string {
	out := make([]string, 0, len(m.byName))
	for name := range m.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registry maps room IDs to their membership tables. Rooms come into
// existence on first successful join and are destroyed when the last
// member leaves; no room persists empty.
//
// Transport adapters run one reader goroutine per connection, so every
// operation takes the registry-wide mutex. Sends happen after the critical
// section, against a snapshot of the membership taken inside it.
type Registry struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]*membership
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*membership)}
}

// CreateRoom allocates an empty room. Reports false if it already exists.
func (r *Registry) CreateRoom(roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(roomID)
}

func (r *Registry) createLocked(roomID domain.RoomID) bool {
	if _, ok := r.rooms[roomID]; ok {
		log.Info().Str("module", "core.registry").Str("room", string(roomID)).Msg("room already exists")
		return false
	}
	r.rooms[roomID] = newMembership()
	log.Info().Str("module", "core.registry").Str("room", string(roomID)).Msg("room created")
	return true
}

// JoinRoom adds the connection to the room under the given username,
// creating the room if absent. On success every current member, the new
// one included, receives a join notice. Rejections (username taken, or
// connection already in the room) mutate nothing and broadcast nothing.
func (r *Registry) JoinRoom(conn Conn, roomID domain.RoomID, username string) bool {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.createLocked(roomID)
		room = r.rooms[roomID]
	}
	if !room.add(conn, username) {
		r.mu.Unlock()
		log.Warn().Str("module", "core.registry").
			Str("room", string(roomID)).Str("username", username).
			Msg("join rejected")
		return false
	}
	conns := room.conns()
	r.mu.Unlock()

	r.deliver(roomID, conns, domain.JoinNotice(roomID, username))
	log.Info().Str("module", "core.registry").
		Str("room", string(roomID)).Str("username", username).
		Msg("user joined room")
	return true
}

// LeaveRoom removes the connection/username pair from the room. Removal of
// an absent pair is a no-op, and the call still reports true as long as the
// room existed. The room is destroyed when its last member leaves; otherwise
// the remaining members receive a leave notice.
func (r *Registry) LeaveRoom(conn Conn, roomID domain.RoomID, username string) bool {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		log.Warn().Str("module", "core.registry").Str("room", string(roomID)).
			Msg("attempted to leave non-existent room")
		return false
	}
	room.remove(username)
	if room.size() == 0 {
		delete(r.rooms, roomID)
		r.mu.Unlock()
		log.Info().Str("module", "core.registry").Str("room", string(roomID)).
			Msg("room deleted (empty)")
		return true
	}
	conns := room.conns()
	r.mu.Unlock()

	r.deliver(roomID, conns, domain.LeaveNotice(roomID, username))
	log.Info().Str("module", "core.registry").
		Str("room", string(roomID)).Str("username", username).
		Msg("user left room")
	return true
}

// BroadcastMessage delivers the message to every current member of the
// room. The message is stamped with a server-side delivery timestamp and
// serialized once, so all recipients get identical bytes. A missing room
// is a silent no-op.
func (r *Registry) BroadcastMessage(roomID domain.RoomID, msg domain.Message) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		log.Warn().Str("module", "core.registry").Str("room", string(roomID)).
			Msg("attempted to broadcast to non-existent room")
		return
	}
	conns := room.conns()
	r.mu.Unlock()

	r.deliver(roomID, conns, msg)
}

// BroadcastUserList sends the room's current roster to all its members.
func (r *Registry) BroadcastUserList(roomID domain.RoomID) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	users := room.users()
	r.mu.Unlock()

	r.BroadcastMessage(roomID, domain.UserListMessage(roomID, users))
}

// HandleDisconnect removes the connection from every room it is a member
// of, following the same path as LeaveRoom in each: remaining members get
// a leave notice, emptied rooms are destroyed. Safe to call for a
// connection that never joined anything.
func (r *Registry) HandleDisconnect(conn Conn) {
	type pair struct {
		roomID   domain.RoomID
		username string
	}
	r.mu.Lock()
	var found []pair
	for roomID, room := range r.rooms {
		if username, ok := room.byConn[conn.ID()]; ok {
			found = append(found, pair{roomID, username})
		}
	}
	r.mu.Unlock()

	for _, p := range found {
		log.Info().Str("module", "core.registry").
			Str("room", string(p.roomID)).Str("username", p.username).
			Msg("removing disconnected user")
		r.LeaveRoom(conn, p.roomID, p.username)
	}
}

// SendError delivers a system error message to a single connection,
// bypassing room membership. Send failures are logged, never propagated.
func (r *Registry) SendError(conn Conn, msg domain.Message) {
	msg.Timestamp = time.Now().UnixMilli()
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "core.registry").Msg("marshal error message")
		return
	}
	if err := conn.Send(payload); err != nil {
		log.Error().Err(err).Str("module", "core.registry").Str("conn", conn.ID()).
			Msg("send error message")
	}
}

// Stats reports the current room and connection counts.
func (r *Registry) Stats() (rooms, connections int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		connections += room.size()
	}
	return len(r.rooms), connections
}

// deliver stamps, serializes once, and sends the same bytes to every
// connection. A failed send to one recipient does not stop the others.
func (r *Registry) deliver(roomID domain.RoomID, conns []Conn, msg domain.Message) {
	msg.Timestamp = time.Now().UnixMilli()
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "core.registry").Msg("marshal broadcast")
		return
	}
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			log.Error().Err(err).Str("module", "core.registry").
				Str("room", string(roomID)).Str("conn", conn.ID()).
				Msg("broadcast send failed")
		}
	}
	log.Debug().Str("module", "core.registry").Str("room", string(roomID)).
		Int("recipients", len(conns)).Msg("broadcast delivered")
}
