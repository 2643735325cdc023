package bus

import (
	"encoding/json"
	"time"
)

// MessageType discriminates the three payload shapes spec.md §6 names.
type MessageType string

const (
	TypeMetric    MessageType = "metric"
	TypeDiscovery MessageType = "discovery"
	TypeAlert     MessageType = "alert"
)

// MetricMessage carries one host's metric sample to the ingest worker.
// SystemID and Timestamp identify the target row; Data is the probe's raw
// field set.
type MetricMessage struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SystemID  string          `json:"system_id"`
	Data      json.RawMessage `json:"data"`
}

// DiscoveredSystem is one host entry inside a DiscoveryMessage.
type DiscoveredSystem struct {
	NetworkAddress  string  `json:"network_address"`
	HardwareAddress *string `json:"hardware_address,omitempty"`
	Hostname        *string `json:"hostname,omitempty"`
}

// DiscoveryMessage carries a batch of newly/re-observed hosts.
type DiscoveryMessage struct {
	Type      MessageType        `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Systems   []DiscoveredSystem `json:"systems"`
	Count     int                `json:"count"`
}

// AlertMessage is opaque payload logged and always acked by the ingest
// worker, per spec.md §4.7.
type AlertMessage struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// PublishMetric encodes and publishes a MetricMessage to the metrics
// subject.
func (c *Client) PublishMetric(msg MetricMessage) error {
	msg.Type = TypeMetric
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.Publish(SubjectMetrics, body)
}

// PublishDiscovery encodes and publishes a DiscoveryMessage to the
// discovery subject.
func (c *Client) PublishDiscovery(msg DiscoveryMessage) error {
	msg.Type = TypeDiscovery
	msg.Count = len(msg.Systems)
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.Publish(SubjectDiscovery, body)
}
