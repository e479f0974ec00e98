// Package stream connects the counter to NATS: frames come in on one subject
// and results go out on a per-session subject.
package stream

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials NATS with reconnects enabled forever.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}
