package alert

import (
	"encoding/json"
	"errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {

	ev := Event{
		Kind:    ItemsMissing,
		Session: "abc",
		Time:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Cycle:   13,
		Items:   []int{1, 4},
	}

	data, err := JSON.Encode(ev)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "items_missing", m["kind"])
	assert.NotContains(t, m, "person")

	data, err = MsgPack.Encode(ev)
	require.NoError(t, err)

	var back Event
	require.NoError(t, msgpack.Unmarshal(data, &back))
	assert.Equal(t, ev.Items, back.Items)
	assert.Equal(t, ev.Cycle, back.Cycle)
	assert.True(t, ev.Time.Equal(back.Time))

	_, err = Encoding("xml").Encode(ev)
	assert.Error(t, err)
}

// fakeToken is a completed mqtt.Token
type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient records published messages
type fakeClient struct {
	topics   []string
	payloads [][]byte
	token    *fakeToken
	closed   bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool,
	payload interface{}) mqtt.Token {

	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))

	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.closed = true
}

func TestMQTTPublish(t *testing.T) {

	client := &fakeClient{token: &fakeToken{}}
	pub := newMQTT(MQTTConfig{Topic: "site/cam1", Encoding: MsgPack}, client, zerolog.Nop())

	require.NoError(t, pub.Publish(Event{Kind: RepCompleted, Person: 2, Count: 5}))
	require.Len(t, client.topics, 1)
	assert.Equal(t, "site/cam1/rep_completed", client.topics[0])

	var back Event
	require.NoError(t, msgpack.Unmarshal(client.payloads[0], &back))
	assert.Equal(t, 5, back.Count)

	published, failed := pub.Counts()
	assert.Equal(t, uint64(1), published)
	assert.Equal(t, uint64(0), failed)

	require.NoError(t, pub.Close())
	assert.True(t, client.closed)
}

func TestMQTTPublishFailures(t *testing.T) {

	client := &fakeClient{token: &fakeToken{err: errors.New("not connected")}}
	pub := newMQTT(MQTTConfig{}, client, zerolog.Nop())

	assert.Error(t, pub.Publish(Event{Kind: ItemsMissing}))
	assert.Equal(t, "framewatch/alerts/items_missing", client.topics[0])

	client.token = &fakeToken{timeout: true}
	assert.Error(t, pub.Publish(Event{Kind: ItemsMissing}))

	_, failed := pub.Counts()
	assert.Equal(t, uint64(2), failed)
}

func TestNewMQTTRequiresBroker(t *testing.T) {
	_, err := NewMQTT(MQTTConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestPublisherFunc(t *testing.T) {

	var got []Event
	pub := PublisherFunc(func(ev Event) error {
		got = append(got, ev)
		return nil
	})

	require.NoError(t, pub.Publish(Event{Kind: ItemsMissing}))
	assert.Len(t, got, 1)
	assert.NoError(t, pub.Close())
	assert.NoError(t, Nop.Publish(Event{}))
}
