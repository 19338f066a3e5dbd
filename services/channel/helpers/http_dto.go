package helpers

// Headers read by the stream and packet handlers
const (
	HeaderConn = "X-Bid-Conn" // connection id of the sender, excluded from its own broadcast
	HeaderUser = "X-Bid-User" // JSON owner of the authenticated user
)

// Request/Response DTOs
type ChannelResponse struct {
	Name        string `json:"name"`
	Stream      string `json:"stream"`
	Subscribers int    `json:"subscribers"`
}

type PacketResponse struct {
	Packet string `json:"packet"`
}

type ConnectEvent struct {
	ID string `json:"id"`
}
