package channel

import "bidio/internal/models"

// ServerID is the connection id of programmatic calls made by the process
// itself. Transports must never hand it to a remote connection.
const ServerID = "server"

// Conn is one party attached to a channel. User is the identity the
// transport authenticated, or nil.
type Conn interface {
	ID() string
	User() models.Owner
}

type conn struct {
	id   string
	user models.Owner
}

// NewConn returns a remote connection.
func NewConn(id string, user models.Owner) Conn {
	return conn{id: id, user: user.Clone()}
}

func (c conn) ID() string         { return c.id }
func (c conn) User() models.Owner { return c.user }

type serverConn struct{}

func (serverConn) ID() string         { return ServerID }
func (serverConn) User() models.Owner { return nil }

// ServerConn is the synthetic origin of server-side calls. Its successes
// reach every subscriber and only it may force updates.
var ServerConn Conn = serverConn{}

// IsServer reports whether c is the server origin. Only the ServerConn
// value qualifies; a remote connection carrying the same id does not.
func IsServer(c Conn) bool {
	return c == nil || c == ServerConn
}
