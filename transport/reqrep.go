package transport

import (
	"fmt"
	"net"
	"time"
)

// ReqRepListener is the listening side of a Request/Reply endpoint. Each
// accepted connection carries exactly one request followed by exactly one
// reply; callers loop on Accept to serve one exchange after another,
// possibly concurrently across connections (submissions on different
// priority endpoints, or from different clients on the same endpoint,
// are independent).
type ReqRepListener struct {
	ln net.Listener
}

// ListenReqRep opens a Request/Reply listener on address ("scheme://host:port").
func ListenReqRep(address string) (*ReqRepListener, error) {
	network, hostport, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: listen reqrep %s: %w", address, err)
	}
	return &ReqRepListener{ln: ln}, nil
}

// Accept blocks until the next requester connects, returning an Exchange
// bound to that single connection.
func (l *ReqRepListener) Accept() (*Exchange, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return &Exchange{conn: conn}, nil
}

// Close stops accepting new connections.
func (l *ReqRepListener) Close() error {
	return l.ln.Close()
}

// Addr returns the listener's bound address.
func (l *ReqRepListener) Addr() net.Addr { return l.ln.Addr() }

// Exchange is one Request/Reply lock-step cycle: exactly one Recv followed
// by exactly one Send, then Close.
type Exchange struct {
	conn net.Conn
}

// Recv reads the single request frame.
func (e *Exchange) Recv() ([]byte, error) {
	return readFrame(e.conn)
}

// Send writes the single reply frame.
func (e *Exchange) Send(data []byte) error {
	return writeFrame(e.conn, data)
}

// Close releases the underlying connection.
func (e *Exchange) Close() error {
	return e.conn.Close()
}

// ReqRepClient is the dialing side of a Request/Reply endpoint: one
// Send-then-Recv cycle per dial, mirroring how every submission path in
// this system (client submission, control-plane forwarding, result
// queries) opens a fresh dialer per attempt.
type ReqRepClient struct {
	conn net.Conn
}

// DialReqRep opens a fresh dialer connection to address.
func DialReqRep(address string) (*ReqRepClient, error) {
	network, hostport, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: dial reqrep %s: %w", address, err)
	}
	return &ReqRepClient{conn: conn}, nil
}

// Send writes the request frame.
func (c *ReqRepClient) Send(data []byte) error {
	return writeFrame(c.conn, data)
}

// Recv reads the reply frame.
func (c *ReqRepClient) Recv() ([]byte, error) {
	return readFrame(c.conn)
}

// RecvTimeout reads the reply frame, failing if none arrives within d.
// Used for the client's per-attempt submission timeout, the subworker's
// 5s registration-ack wait, and its 1s heartbeat-ack wait.
func (c *ReqRepClient) RecvTimeout(d time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})
	return readFrame(c.conn)
}

// Close releases the underlying connection.
func (c *ReqRepClient) Close() error {
	return c.conn.Close()
}
