package mailer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/staffdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	channel string
	data    []byte
	attrs   map[string]string
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.channel = channel
	p.data = data
	p.attrs = attrs
	return "id-1", nil
}

func TestEnqueueResetToken(t *testing.T) {
	publisher := &recordingPublisher{}
	m := New(publisher)

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	err := m.EnqueueResetToken(context.Background(), ResetTokenMessage{
		Login:     "bob",
		Role:      types.RoleUser,
		Token:     "deadbeef",
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "password-reset-mail", publisher.channel)
	assert.Equal(t, "password-reset", publisher.attrs["type"])

	var msg ResetTokenMessage
	require.NoError(t, json.Unmarshal(publisher.data, &msg))
	assert.Equal(t, "bob", msg.Login)
	assert.Equal(t, types.RoleUser, msg.Role)
	assert.Equal(t, "deadbeef", msg.Token)
	assert.True(t, expiresAt.Equal(msg.ExpiresAt))
}
