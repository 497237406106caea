//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=../internal/mocks/mock_transport.go -package=mocks
package signaling

// Transport sends events to connections on behalf of the Router.
//
// Both methods are best effort: they must not block on a slow peer and must not
// fail when the connection is already gone. A message that cannot be sent is lost.
type Transport interface {
	// Deliver sends one event to conn.
	Deliver(conn *Conn, event string, payload any)
	// Broadcast sends one event to every live connection.
	Broadcast(event string, payload any)
}
