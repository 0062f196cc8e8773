package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
)

// Topic suffixes nodes publish to, relative to the configured base topic.
const (
	TopicRegister = "nodes/register"
	TopicUpdates  = "updates"
)

var errUnknownTopic = errors.New("unknown topic")

// NodeRegistration is the payload a node publishes to join the federation.
type NodeRegistration struct {
	NodeID string `json:"node_id"`
	Region string `json:"region"`
}

// Message is a decoded inbound message. Exactly one of Register and Update
// is set, depending on the topic it arrived on.
type Message struct {
	Topic    string
	Register *NodeRegistration
	Update   *fl.Envelope
}

// DecodeMessage parses a JSON payload according to the topic suffix.
// Failures wrap ErrInvalidData.
func DecodeMessage(topic string, payload []byte) (Message, error) {
	msg := Message{Topic: topic}
	switch {
	case strings.HasSuffix(topic, "/"+TopicRegister):
		var reg NodeRegistration
		if err := json.Unmarshal(payload, &reg); err != nil {
			return msg, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, err)
		}
		msg.Register = &reg
	case strings.HasSuffix(topic, "/"+TopicUpdates):
		var env fl.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return msg, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, err)
		}
		msg.Update = &env
	default:
		return msg, fmt.Errorf("%w: %w %q", pkgerrors.ErrInvalidData, errUnknownTopic, topic)
	}

	return msg, nil
}
