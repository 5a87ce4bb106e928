package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/matcycle-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/mc-dev/topics/matcycle-domain-events", ResourceName("mc-dev", "topics", " matcycle-domain-events "))
	assert.Equal(t, "projects/other/topics/t", ResourceName("mc-dev", "topics", "projects/other/topics/t"))
	assert.Equal(t, "projects/mc-dev/subscriptions/projects/other/topics/t", ResourceName("mc-dev", "subscriptions", "projects/other/topics/t"))
	assert.Empty(t, ResourceName("mc-dev", "topics", ""))
	assert.Empty(t, ResourceName("", "topics", "t"))
}

func TestMissingOrDistinguishesNotFound(t *testing.T) {
	notFound := missingOr(status.Error(codes.NotFound, "gone"), "topic", "events")
	assert.EqualError(t, notFound, `topic "events" does not exist`)

	cause := status.Error(codes.Unavailable, "down")
	other := missingOr(cause, "subscription", "events-sub")
	assert.True(t, errors.Is(other, cause))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{DomainTopic: "t"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "mc-dev"}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errTopicRequired)
}

func TestCredentialOptions(t *testing.T) {
	assert.Len(t, credentialOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Len(t, credentialOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Empty(t, credentialOptions(config.GCPConfig{CredentialsJSON: "  "}))
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.Nil(t, c.Publisher("t"))
	assert.NoError(t, c.Close())
}
