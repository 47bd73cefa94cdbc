package core

// Conn is a live transport connection the registry can deliver payloads to.
// Equality is by ID. The registry only borrows connections: it never opens
// or closes them, the transport adapter owns their lifecycle.
type Conn interface {
	ID() string
	Send(payload []byte) error
}
