package devicehub

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeConn struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	hang       bool
	published  []published
	handlers   map[string]mqtt.MessageHandler
}

func newFakeConn() *fakeConn {
	return &fakeConn{connected: true, handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) IsConnectionOpen() bool { return f.IsConnected() }
func (f *fakeConn) Connect() mqtt.Token    { return doneToken(nil) }
func (f *fakeConn) Disconnect(uint)        {}

func (f *fakeConn) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hang {
		return pendingToken()
	}
	if f.publishErr != nil {
		return doneToken(f.publishErr)
	}
	f.published = append(f.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken(nil)
}

func (f *fakeConn) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
	return doneToken(nil)
}

func (f *fakeConn) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		f.Subscribe(topic, qos, callback)
	}
	return doneToken(nil)
}

func (f *fakeConn) Unsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.handlers, topic)
	}
	return doneToken(nil)
}

func (f *fakeConn) AddRoute(string, mqtt.MessageHandler) {}

func (f *fakeConn) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// deliver invokes the handler registered for topic as the broker would.
func (f *fakeConn) deliver(filter, topic string, payload []byte) {
	f.mu.Lock()
	handler := f.handlers[filter]
	f.mu.Unlock()
	if handler != nil {
		handler(f, fakeMessage{topic: topic, payload: payload})
	}
}
