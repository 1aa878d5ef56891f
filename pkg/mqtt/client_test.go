package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		topic  string
		want   bool
	}{
		{"exact match", "kevinbot/v1/command/kbot-01", "kevinbot/v1/command/kbot-01", true},
		{"exact mismatch", "kevinbot/v1/command/kbot-01", "kevinbot/v1/command/kbot-02", false},
		{"single level wildcard", "kevinbot/v1/command/+", "kevinbot/v1/command/kbot-01", true},
		{"single level wildcard too deep", "kevinbot/v1/command/+", "kevinbot/v1/command/kbot-01/extra", false},
		{"multi level wildcard", "kevinbot/v1/#", "kevinbot/v1/telemetry/kbot-01", true},
		{"wildcard in the middle", "kevinbot/+/command/kbot-01", "kevinbot/v1/command/kbot-01", true},
		{"filter longer than topic", "kevinbot/v1/command/+", "kevinbot/v1/command", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestTopicFilterSharedGroup(t *testing.T) {
	assert.Equal(t, "kevinbot/v1/command/+", topicFilter("$share/supervisors/kevinbot/v1/command/+"))
	assert.Equal(t, "kevinbot/v1/command/+", topicFilter("kevinbot/v1/command/+"))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	require.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "test"})
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
}
