package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

type handlerFunc func(ctx context.Context, job EmailJob) error

func (f handlerFunc) Handle(ctx context.Context, job EmailJob) error { return f(ctx, job) }

func TestProcessAcksHandledJob(t *testing.T) {
	var got EmailJob
	ack := &fakeAck{}
	process(context.Background(), []byte(`{"type":"verification","email":"a@example.com","token":"t"}`), false, ack,
		handlerFunc(func(_ context.Context, j EmailJob) error { got = j; return nil }))
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Equal(t, JobVerification, got.Type)
}

func TestProcessDropsMalformedJob(t *testing.T) {
	called := false
	h := handlerFunc(func(context.Context, EmailJob) error { called = true; return nil })
	for _, body := range []string{`not json`, `{"type":"spam","email":"a@example.com","token":"t"}`, `{"type":"verification","email":"nope","token":"t"}`} {
		ack := &fakeAck{}
		process(context.Background(), []byte(body), false, ack, h)
		assert.True(t, ack.nacked, body)
		assert.False(t, ack.requeued, body)
	}
	assert.False(t, called)
}

func TestProcessRequeuesFirstSendFailure(t *testing.T) {
	requeueDelay = 50 * time.Millisecond
	t.Cleanup(func() { requeueDelay = time.Second })

	ack := &fakeAck{}
	start := time.Now()
	process(context.Background(), []byte(`{"type":"password-reset","email":"a@example.com","token":"t"}`), false, ack,
		handlerFunc(func(context.Context, EmailJob) error { return errors.New("smtp down") }))
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "requeue is delayed")
}

func TestProcessDropsRedeliveredSendFailure(t *testing.T) {
	requeueDelay = time.Hour
	t.Cleanup(func() { requeueDelay = time.Second })

	ack := &fakeAck{}
	process(context.Background(), []byte(`{"type":"password-reset","email":"a@example.com","token":"t"}`), true, ack,
		handlerFunc(func(context.Context, EmailJob) error { return errors.New("smtp down") }))
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
}

func TestProcessRequeueDelayStopsOnShutdown(t *testing.T) {
	requeueDelay = time.Hour
	t.Cleanup(func() { requeueDelay = time.Second })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ack := &fakeAck{}
	process(ctx, []byte(`{"type":"verification","email":"a@example.com","token":"t"}`), false, ack,
		handlerFunc(func(context.Context, EmailJob) error { return errors.New("smtp down") }))
	assert.True(t, ack.requeued, "job goes back for another consumer")
}
