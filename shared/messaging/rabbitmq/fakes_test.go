package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

type publishCall struct {
	exchange  string
	key       string
	mandatory bool
	msg       amqp.Publishing
}

type consumeCall struct {
	queue    string
	consumer string
	autoAck  bool
}

type fakeChannel struct {
	mu          sync.Mutex
	published   []publishCall
	publishErr  error
	qosErr      error
	consumeErr  error
	closeErr    error
	prefetch    int
	consumes    []consumeCall
	deliveries  chan amqp.Delivery
	closeCalls  int
	cancelCalls int

	confirming bool
	confirmErr error
	confirms   chan amqp.Confirmation
	returns    chan amqp.Return
	closeNotes chan *amqp.Error
	tag        uint64
	// noRoute makes mandatory publishes come back as returned, nack makes
	// the broker refuse them.
	noRoute bool
	nack    bool
	// closeBeforeConfirm shuts the channel down while a publish awaits
	// its confirm.
	closeBeforeConfirm bool
	brokerClosed       bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	if f.brokerClosed {
		return amqp.ErrClosed
	}
	f.published = append(f.published, publishCall{exchange: exchange, key: key, mandatory: mandatory, msg: msg})
	if f.closeBeforeConfirm {
		f.closeLocked()
		return nil
	}

	if !f.confirming {
		return nil
	}
	f.tag++
	if mandatory && f.noRoute && f.returns != nil {
		f.returns <- amqp.Return{ReplyCode: amqp.NoRoute, ReplyText: "NO_ROUTE", RoutingKey: key, MessageId: msg.MessageId}
	}
	if f.confirms != nil {
		f.confirms <- amqp.Confirmation{DeliveryTag: f.tag, Ack: !f.nack}
	}
	return nil
}

func (f *fakeChannel) Confirm(bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirming = true
	return nil
}

func (f *fakeChannel) NotifyPublish(c chan amqp.Confirmation) chan amqp.Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms = c
	return c
}

func (f *fakeChannel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returns = c
	return c
}

func (f *fakeChannel) NotifyClose(c chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeNotes = c
	return c
}

// closeByBroker mimics the server closing the channel, e.g. after a
// publish to an exchange that does not exist.
func (f *fakeChannel) closeByBroker() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *fakeChannel) closeLocked() {
	if f.brokerClosed {
		return
	}
	f.brokerClosed = true
	if f.closeNotes != nil {
		f.closeNotes <- &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange"}
		close(f.closeNotes)
	}
	if f.confirms != nil {
		close(f.confirms)
	}
	if f.returns != nil {
		close(f.returns)
	}
}

func (f *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefetch = prefetchCount
	return f.qosErr
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	f.consumes = append(f.consumes, consumeCall{queue: queue, consumer: consumer, autoAck: autoAck})
	return f.deliveries, nil
}

func (f *fakeChannel) Cancel(string, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return f.closeErr
}

func (f *fakeChannel) publishes() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishCall(nil), f.published...)
}

func (f *fakeChannel) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeConn struct {
	mu           sync.Mutex
	channels     []*fakeChannel
	channelErr   error
	configure    func(*fakeChannel)
	closed       bool
	closeCalls   int
	panicOnProbe bool
}

func (f *fakeConn) Channel() (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	ch := newFakeChannel()
	if f.configure != nil {
		f.configure(ch)
	}
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnProbe {
		panic("probe exploded")
	}
	return f.closed
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	return nil
}

func (f *fakeConn) setClosed(closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = closed
}

func (f *fakeConn) channelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func (f *fakeConn) channel(i int) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[i]
}

// settlement is one Ack or Nack received by fakeAck.
type settlement struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAck struct {
	settled chan settlement
	ackErr  error
}

func newFakeAck() *fakeAck {
	return &fakeAck{settled: make(chan settlement, 16)}
}

func (a *fakeAck) Ack(tag uint64, _ bool) error {
	a.settled <- settlement{tag: tag, ack: true}
	return a.ackErr
}

func (a *fakeAck) Nack(tag uint64, _ bool, requeue bool) error {
	a.settled <- settlement{tag: tag, requeue: requeue}
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAck) next(t *testing.T) settlement {
	t.Helper()
	select {
	case s := <-a.settled:
		return s
	case <-timeout():
		t.Fatal("timed out waiting for message settlement")
		return settlement{}
	}
}

func newDelivery(t *testing.T, ack amqp.Acknowledger, tag uint64, msg *messaging.Message) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		MessageId:    msg.ID,
		Body:         body,
	}
}

func newObservedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.Wrap(zap.New(core)), logs
}

const waitFor = 2 * time.Second

func timeout() <-chan time.Time {
	return time.After(waitFor)
}
