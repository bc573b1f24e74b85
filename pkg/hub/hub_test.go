package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn records deliveries; flipping dead makes it refuse frames like a
// peer whose buffer is gone.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	dead   bool
	closed bool
}

func (f *fakeConn) Deliver(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead {
		return false
	}
	f.frames = append(f.frames, payload)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRegisterIdempotent(t *testing.T) {
	req := require.New(t)
	h := New()
	c := &fakeConn{}

	h.Register(7, 1, c)
	h.Register(7, 1, c)

	req.Equal(1, h.GroupSize(7))

	h.Broadcast(7, []byte("hello"))
	req.Equal(1, c.received(), "duplicate registration must not cause duplicate delivery")
}

func TestDeregisterAbsentIsNoOp(t *testing.T) {
	req := require.New(t)
	h := New()
	c := &fakeConn{}

	// Never registered, and a group that never existed.
	h.Deregister(7, c)
	h.Deregister(42, c)

	h.Register(7, 1, c)
	h.Deregister(7, c)
	h.Deregister(7, c) // overlapping disconnect paths call twice

	req.Equal(0, h.GroupSize(7))
	req.False(h.Registered(7, c))
}

func TestBroadcastGroupIsolation(t *testing.T) {
	req := require.New(t)
	h := New()
	a := &fakeConn{}
	b := &fakeConn{}
	other := &fakeConn{}

	h.Register(7, 1, a)
	h.Register(7, 2, b)
	h.Register(8, 3, other)

	h.Broadcast(7, []byte("hi"))

	req.Equal(1, a.received())
	req.Equal(1, b.received())
	req.Equal(0, other.received(), "message must not leak to another group")
}

func TestBroadcastIncludesSender(t *testing.T) {
	req := require.New(t)
	h := New()
	sender := &fakeConn{}
	peer := &fakeConn{}

	h.Register(7, 1, sender)
	h.Register(7, 2, peer)

	h.Broadcast(7, []byte("hi"))

	req.Equal(1, sender.received(), "sender sees its own canonical echo")
	req.Equal(1, peer.received())
}

func TestDeadPeerPrunedWithoutAbortingDelivery(t *testing.T) {
	req := require.New(t)
	h := New()
	dead := &fakeConn{dead: true}
	live := &fakeConn{}

	h.Register(7, 1, dead)
	h.Register(7, 2, live)

	h.Broadcast(7, []byte("hi"))

	req.Equal(1, live.received(), "a dead peer must not block the rest")
	req.False(h.Registered(7, dead))
	req.True(dead.isClosed())
	req.True(h.Registered(7, live))
}

func TestEmptyGroupPruned(t *testing.T) {
	req := require.New(t)
	h := New()
	c := &fakeConn{}

	h.Register(7, 1, c)
	h.Deregister(7, c)

	h.mu.RLock()
	_, ok := h.groups[7]
	h.mu.RUnlock()
	req.False(ok, "empty group entry should be removed")
}

func TestConcurrentRegisterBroadcastDeregister(t *testing.T) {
	req := require.New(t)
	h := New()

	const conns = 50
	const rounds = 20

	var wg sync.WaitGroup
	clients := make([]*fakeConn, conns)
	for i := range clients {
		clients[i] = &fakeConn{}
	}

	for i, c := range clients {
		wg.Add(1)
		go func(userID int64, c *fakeConn) {
			defer wg.Done()
			h.Register(7, userID, c)
		}(int64(i), c)
	}
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Broadcast(7, []byte(fmt.Sprintf("round %d", i)))
		}(i)
	}
	wg.Wait()

	// Every registered conn sees every broadcast issued after its
	// registration completed; none sees more than the total.
	h.Broadcast(7, []byte("final"))
	for _, c := range clients {
		req.LessOrEqual(c.received(), rounds+1)
		req.GreaterOrEqual(c.received(), 1, "registration completed before the final broadcast")
	}

	for _, c := range clients {
		h.Deregister(7, c)
	}
	req.Equal(0, h.GroupSize(7))
}
