// Package transport implements the three Scalability-Protocol (SP) socket
// primitives the dispatch core depends on: Request/Reply, Bus, and Pair,
// built atop raw TCP (see DESIGN.md for why this is hand-built instead of
// wrapping an existing nanomsg/SP library).
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const maxFrameSize = 64 << 20 // 64 MiB guards against a corrupt length prefix

// writeFrame writes data to conn prefixed with its 4-byte big-endian length.
func writeFrame(conn net.Conn, data []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("transport: write frame header: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("transport: write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame from conn.
func readFrame(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("transport: frame too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, fmt.Errorf("transport: read frame body: %w", err)
	}
	return buf, nil
}

// splitAddress turns a "scheme://host:port" address into the network and
// host:port net.Dial/net.Listen expects. Only the "tcp" scheme is
// supported; any other scheme is passed through verbatim as the network.
func splitAddress(address string) (network, hostport string, err error) {
	idx := strings.Index(address, "://")
	if idx < 0 {
		return "tcp", address, nil
	}
	return address[:idx], address[idx+3:], nil
}

// ParseAddress breaks a "scheme://host:port" address into its parts,
// defaulting scheme to "tcp", host to "127.0.0.1", and port to 5555 when
// absent. Shared by every package that must rewrite a peer's base
// address to one of its priority-offset endpoints.
func ParseAddress(address string) (host string, port int, scheme string, err error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", 0, "", fmt.Errorf("transport: parse address %q: %w", address, err)
	}
	host = u.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	scheme = u.Scheme
	if scheme == "" {
		scheme = "tcp"
	}
	portStr := u.Port()
	if portStr == "" {
		port = 5555
	} else {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, "", fmt.Errorf("transport: parse address %q: %w", address, err)
		}
	}
	return host, port, scheme, nil
}

// FormatAddress rebuilds a "scheme://host:port" address.
func FormatAddress(scheme, host string, port int) string {
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}
