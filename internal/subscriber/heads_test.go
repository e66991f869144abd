package subscriber

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type headStream struct {
	ch  chan<- *types.Header
	sub *fakeSub
}

type fakeHeads struct {
	streams chan headStream
}

func (f *fakeHeads) SubscribeNewHead(_ context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	sub := newFakeSub()
	f.streams <- headStream{ch: ch, sub: sub}
	return sub, nil
}

func recv(t *testing.T, ch <-chan uint64) uint64 {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "head channel closed")
		return n
	case <-time.After(2 * time.Second):
		t.Fatalf("no head received")
		return 0
	}
}

func TestWatchHeads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heads := &fakeHeads{streams: make(chan headStream, 4)}
	out := WatchHeads(ctx, heads, Config{RetryBackoff: time.Millisecond}, zap.NewNop())

	first := <-heads.streams
	first.ch <- &types.Header{Number: big.NewInt(100)}
	first.ch <- nil
	first.ch <- &types.Header{Number: big.NewInt(101)}
	assert.Equal(t, uint64(100), recv(t, out))
	assert.Equal(t, uint64(101), recv(t, out))

	first.sub.errCh <- errors.New("websocket: close 1006")
	second := <-heads.streams
	second.ch <- &types.Header{Number: big.NewInt(102)}
	assert.Equal(t, uint64(102), recv(t, out))

	cancel()
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("head channel not closed after cancel")
	}
	<-second.sub.unsubscribed
}
