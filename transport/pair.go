package transport

import (
	"fmt"
	"net"
)

// Pair is a one-to-one, bidirectional, no-lock-step socket: either side
// may Send or Recv at any time, independent of the other's state. Used
// only for completion-callback delivery.
type Pair struct {
	conn net.Conn
}

// ListenPair opens a Pair endpoint and blocks for the single peer to
// connect. A Pair accepts exactly one connection over its lifetime.
func ListenPair(address string) (*Pair, error) {
	network, hostport, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: listen pair %s: %w", address, err)
	}
	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		return nil, fmt.Errorf("transport: accept pair %s: %w", address, err)
	}
	return &Pair{conn: conn}, nil
}

// DialPair connects to a Pair endpoint at address.
func DialPair(address string) (*Pair, error) {
	network, hostport, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: dial pair %s: %w", address, err)
	}
	return &Pair{conn: conn}, nil
}

// Send writes one frame to the peer.
func (p *Pair) Send(data []byte) error {
	return writeFrame(p.conn, data)
}

// Recv reads one frame from the peer.
func (p *Pair) Recv() ([]byte, error) {
	return readFrame(p.conn)
}

// Close releases the underlying connection.
func (p *Pair) Close() error {
	return p.conn.Close()
}
