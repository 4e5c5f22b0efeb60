package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/config"
	"github.com/itohio/hallboard/pkg/stream"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool { return true }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publications. Unused mqtt.Client methods panic through
// the nil embedded interface.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	published    []message
	err          error
	timeout      bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	}
	c.published = append(c.published, message{topic: topic, qos: qos, retained: retained, payload: data})
	return &fakeToken{err: c.err, timeout: c.timeout}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func testConfig() config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.Topic = "test/board"
	return cfg
}

func change() stream.Change {
	c := stream.Change{Time: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Method: 2}
	c.Bitmap.Set(3, 4)
	c.Bitmap.Set(0, 0)
	c.Placed.Set(3, 4)
	c.Lifted.Set(1, 4)
	return c
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(change())

	assert.Equal(t, "present", ev.Method)
	assert.Equal(t, "0000000010000001", ev.Bitmap)
	assert.Equal(t, []string{"a1", "e4"}, ev.Occupied)
	assert.Equal(t, []string{"e4"}, ev.Placed)
	assert.Equal(t, []string{"e2"}, ev.Lifted)
	assert.False(t, ev.Initial)
}

func TestPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	p := New(client, testConfig(), zerolog.Nop())

	require.NoError(t, p.Publish(change()))
	require.Len(t, client.published, 1)

	msg := client.published[0]
	assert.Equal(t, "test/board", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var ev Event
	require.NoError(t, json.Unmarshal(msg.payload, &ev))
	assert.Equal(t, NewEvent(change()), ev)
	assert.NotContains(t, string(msg.payload), "initial")
}

func TestPublisher_Errors(t *testing.T) {
	client := &fakeClient{err: errors.New("not authorized")}
	p := New(client, testConfig(), zerolog.Nop())
	assert.ErrorContains(t, p.Publish(change()), "not authorized")

	client = &fakeClient{timeout: true}
	p = New(client, testConfig(), zerolog.Nop())
	assert.ErrorIs(t, p.Publish(change()), ErrTimeout)
}

func TestPublisher_RunAndClose(t *testing.T) {
	client := &fakeClient{}
	p := New(client, testConfig(), zerolog.Nop())

	in := make(chan stream.Change, 3)
	for i := range 3 {
		in <- stream.Change{Bitmap: board.Bitmap(1 << i)}
	}
	close(in)
	p.Run(in)
	assert.Len(t, client.published, 3)

	require.NoError(t, p.Close())
	assert.True(t, client.disconnected)
	last := client.published[len(client.published)-1]
	assert.Equal(t, StatusTopic("test/board"), last.topic)
	assert.Equal(t, Offline, string(last.payload))
	assert.True(t, last.retained)
}
