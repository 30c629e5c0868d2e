package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPair_SendRecvRoundTrip(t *testing.T) {
	listenerReady := make(chan *Pair, 1)
	go func() {
		p, err := ListenPair("tcp://127.0.0.1:19420")
		if err == nil {
			listenerReady <- p
		}
	}()

	time.Sleep(20 * time.Millisecond)
	dialer, err := DialPair("tcp://127.0.0.1:19420")
	assert.NoError(t, err)
	defer dialer.Close()

	var listener *Pair
	select {
	case listener = <-listenerReady:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted a connection")
	}
	defer listener.Close()

	assert.NoError(t, dialer.Send([]byte("ping")))
	frame, err := listener.Recv()
	assert.NoError(t, err)
	assert.Equal(t, "ping", string(frame))

	assert.NoError(t, listener.Send([]byte("pong")))
	frame, err = dialer.Recv()
	assert.NoError(t, err)
	assert.Equal(t, "pong", string(frame))
}
