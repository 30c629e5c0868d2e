// Package discovery implements the WORKER_ANNOUNCE gossip message shared
// by the control plane (announcer, via transport.Bus) and subworkers/
// clients (listeners).
//
// Parsing splits on the first two ":" only (at most 3 fields) rather than
// naively, so the address field is taken whole regardless of how many
// colons it contains (e.g. "tcp://10.0.0.1:5555" has two).
package discovery

import (
	"fmt"
	"strings"
)

const announcePrefix = "WORKER_ANNOUNCE"

// Announce formats a worker announcement for broadcast on the discovery
// Bus.
func Announce(workerID, address string) string {
	return fmt.Sprintf("%s:%s:%s", announcePrefix, workerID, address)
}

// Announcement is a parsed WORKER_ANNOUNCE message.
type Announcement struct {
	WorkerID string
	Address  string
}

// Parse splits msg into its worker ID and address fields. It returns
// false if msg is not a well-formed WORKER_ANNOUNCE message.
func Parse(msg string) (Announcement, bool) {
	parts := strings.SplitN(msg, ":", 3)
	if len(parts) != 3 || parts[0] != announcePrefix {
		return Announcement{}, false
	}
	return Announcement{WorkerID: parts[1], Address: parts[2]}, true
}
