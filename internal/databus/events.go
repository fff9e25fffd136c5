package databus

import (
	"encoding/json"
	"time"

	"moff.io/hedera-dapp/internal/state"
	"moff.io/hedera-dapp/pkg/log"
)

const (
	ActionSetAccountIDs    = "setAccountIds"
	ActionSetIsConnected   = "setIsConnected"
	ActionSetPairingString = "setPairingString"
	ActionConnectionState  = "connectionState"

	hashconnectKey = "hashconnect"
	connectionKey  = "connection"
)

// ActionEvent is one state action published on the state topic.
type ActionEvent struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`

	topic string
	key   string
}

func (e *ActionEvent) Serialize() []byte {
	raw, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal %s event: %v", e.Type, err)
		return nil
	}
	return raw
}

func (e *ActionEvent) Topic() string { return e.topic }

func (e *ActionEvent) Key() string { return e.key }

// Dispatcher publishes hashconnect actions, and connection state changes
// through OnConnectionChange, to Kafka.
type Dispatcher struct {
	bus   *DataBus
	topic string
	now   func() time.Time
}

var _ state.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(bus *DataBus, topic string) *Dispatcher {
	return &Dispatcher{bus: bus, topic: topic, now: time.Now}
}

func (d *Dispatcher) publish(action, key string, payload interface{}) error {
	return d.bus.Publish(&ActionEvent{
		Type:      action,
		Payload:   payload,
		Timestamp: d.now().UnixMilli(),
		topic:     d.topic,
		key:       key,
	})
}

func (d *Dispatcher) SetAccountIDs(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return d.publish(ActionSetAccountIDs, hashconnectKey, ids)
}

func (d *Dispatcher) SetIsConnected(connected bool) error {
	return d.publish(ActionSetIsConnected, hashconnectKey, connected)
}

func (d *Dispatcher) SetPairingString(pairing string) error {
	return d.publish(ActionSetPairingString, hashconnectKey, pairing)
}

// OnConnectionChange is a state.NewConnectionStore callback.
func (d *Dispatcher) OnConnectionChange(s state.ConnectionState) {
	if err := d.publish(ActionConnectionState, connectionKey, s); err != nil {
		log.Error(err)
	}
}
