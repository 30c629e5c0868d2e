package transport

import (
	"fmt"
	"net"
	"sync"
)

// Bus is a many-to-many gossip socket. One participant listens; every
// other participant dials it. A message sent by any participant is
// delivered to every other participant, never back to its own sender.
type Bus struct {
	listening bool

	ln net.Listener

	mu    sync.Mutex
	peers map[net.Conn]struct{}

	dialConn net.Conn

	recvCh chan []byte
	errCh  chan error
	closed chan struct{}
}

// ListenBus opens a Bus hub on address; every Dial-ed peer's messages are
// relayed to every other peer.
func ListenBus(address string) (*Bus, error) {
	network, hostport, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: listen bus %s: %w", address, err)
	}
	b := &Bus{
		listening: true,
		ln:        ln,
		peers:     make(map[net.Conn]struct{}),
		recvCh:    make(chan []byte, 64),
		errCh:     make(chan error, 1),
		closed:    make(chan struct{}),
	}
	go b.acceptLoop()
	return b, nil
}

// DialBus connects to a Bus hub at address as one participant.
func DialBus(address string) (*Bus, error) {
	network, hostport, err := splitAddress(address)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: dial bus %s: %w", address, err)
	}
	b := &Bus{
		dialConn: conn,
		recvCh:   make(chan []byte, 64),
		errCh:    make(chan error, 1),
		closed:   make(chan struct{}),
	}
	go b.readLoop(conn)
	return b, nil
}

func (b *Bus) acceptLoop() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.peers[conn] = struct{}{}
		b.mu.Unlock()
		go b.relayLoop(conn)
	}
}

// relayLoop reads frames from one peer, hands each to the listening
// side's own Recv (dropped if its receive buffer is full), and fans it
// out to every other connected peer, excluding the sender.
func (b *Bus) relayLoop(conn net.Conn) {
	defer func() {
		b.mu.Lock()
		delete(b.peers, conn)
		b.mu.Unlock()
		conn.Close()
	}()
	for {
		frame, err := readFrame(conn)
		if err != nil {
			return
		}
		select {
		case b.recvCh <- frame:
		default:
		}
		b.mu.Lock()
		for peer := range b.peers {
			if peer == conn {
				continue
			}
			_ = writeFrame(peer, frame)
		}
		b.mu.Unlock()
	}
}

// readLoop feeds received frames from a dialer's single connection into
// recvCh.
func (b *Bus) readLoop(conn net.Conn) {
	for {
		frame, err := readFrame(conn)
		if err != nil {
			select {
			case b.errCh <- err:
			default:
			}
			return
		}
		select {
		case b.recvCh <- frame:
		case <-b.closed:
			return
		}
	}
}

// Send broadcasts data fire-and-forget to every other participant.
func (b *Bus) Send(data []byte) error {
	if b.listening {
		b.mu.Lock()
		defer b.mu.Unlock()
		for peer := range b.peers {
			_ = writeFrame(peer, data)
		}
		return nil
	}
	return writeFrame(b.dialConn, data)
}

// Recv blocks for the next message observed on the bus.
func (b *Bus) Recv() ([]byte, error) {
	select {
	case frame := <-b.recvCh:
		return frame, nil
	case err := <-b.errCh:
		return nil, err
	case <-b.closed:
		return nil, fmt.Errorf("transport: bus closed")
	}
}

// Close shuts the bus down, disconnecting every peer.
func (b *Bus) Close() error {
	select {
	case <-b.closed:
		return nil
	default:
		close(b.closed)
	}
	if b.listening {
		b.mu.Lock()
		for peer := range b.peers {
			peer.Close()
		}
		b.mu.Unlock()
		return b.ln.Close()
	}
	return b.dialConn.Close()
}
