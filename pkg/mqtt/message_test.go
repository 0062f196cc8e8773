package mqtt_test

import (
	"testing"
	"time"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	t.Parallel()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		desc     string
		topic    string
		payload  string
		register *mqtt.NodeRegistration
		update   *fl.Envelope
		err      error
	}{
		{
			desc:     "registration",
			topic:    "fl/nodes/register",
			payload:  `{"node_id":"farm-1","region":"sa-east"}`,
			register: &mqtt.NodeRegistration{NodeID: "farm-1", Region: "sa-east"},
		},
		{
			desc:    "update",
			topic:   "fl/updates",
			payload: `{"node_id":"farm-1","round_id":3,"weights":[0.5,1.5],"sample_weight":10,"timestamp":"2025-03-01T12:00:00Z"}`,
			update: &fl.Envelope{
				NodeID:       "farm-1",
				RoundID:      3,
				Weights:      []float64{0.5, 1.5},
				SampleWeight: 10,
				Timestamp:    ts,
			},
		},
		{
			desc:    "update under nested base topic",
			topic:   "farms/north/updates",
			payload: `{"node_id":"farm-2","round_id":1,"weights":[1],"sample_weight":1}`,
			update:  &fl.Envelope{NodeID: "farm-2", RoundID: 1, Weights: []float64{1}, SampleWeight: 1},
		},
		{
			desc:    "malformed weights",
			topic:   "fl/updates",
			payload: `{"node_id":"farm-1","round_id":3,"weights":"not-a-vector"}`,
			err:     pkgerrors.ErrInvalidData,
		},
		{
			desc:    "invalid json",
			topic:   "fl/nodes/register",
			payload: `{"node_id":`,
			err:     pkgerrors.ErrInvalidData,
		},
		{
			desc:    "unknown topic",
			topic:   "fl/rounds/open",
			payload: `{}`,
			err:     pkgerrors.ErrInvalidData,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			msg, err := mqtt.DecodeMessage(tc.topic, []byte(tc.payload))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.topic, msg.Topic)
			assert.Equal(t, tc.register, msg.Register)
			assert.Equal(t, tc.update, msg.Update)
		})
	}
}
