/*
Package alert publishes pipeline events, items going missing and completed
exercise repetitions, to external consumers.
*/
package alert

import (
	"encoding/json"
	"fmt"
	"github.com/vmihailenco/msgpack/v5"
	"time"
)

// Kind identifies the type of event
type Kind string

const (
	// ItemsMissing is raised when tracked items are evicted
	ItemsMissing Kind = "items_missing"
	// RepCompleted is raised when a person completes an exercise repetition
	RepCompleted Kind = "rep_completed"
)

// Event is a single alert
type Event struct {
	Kind    Kind      `json:"kind" msgpack:"kind"`
	Session string    `json:"session" msgpack:"session"`
	Time    time.Time `json:"time" msgpack:"time"`
	// Cycle is the lifecycle cycle the event was raised on
	Cycle int `json:"cycle,omitempty" msgpack:"cycle,omitempty"`
	// Items are the evicted track identities
	Items []int `json:"items,omitempty" msgpack:"items,omitempty"`
	// Person and Count are the track identity and its repetition total
	Person int `json:"person,omitempty" msgpack:"person,omitempty"`
	Count  int `json:"count,omitempty" msgpack:"count,omitempty"`
}

// Encoding is the payload format of published events
type Encoding string

const (
	JSON    Encoding = "json"
	MsgPack Encoding = "msgpack"
)

// Encode serializes the event
func (e Encoding) Encode(ev Event) ([]byte, error) {

	switch e {
	case JSON, "":
		return json.Marshal(ev)
	case MsgPack:
		return msgpack.Marshal(ev)
	}

	return nil, fmt.Errorf("unknown alert encoding %q", e)
}

// Publisher delivers events
type Publisher interface {
	Publish(ev Event) error
	Close() error
}

// PublisherFunc adapts a function to the Publisher interface
type PublisherFunc func(ev Event) error

// Publish calls f
func (f PublisherFunc) Publish(ev Event) error {
	return f(ev)
}

// Close does nothing
func (f PublisherFunc) Close() error {
	return nil
}

// Nop is a Publisher that discards every event
var Nop Publisher = PublisherFunc(func(Event) error { return nil })
