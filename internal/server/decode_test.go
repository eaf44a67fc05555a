package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwave/chatwave/internal/coordinator"
	"github.com/chatwave/chatwave/internal/protocol"
	"github.com/chatwave/chatwave/internal/storage"
)

func TestDecodeHelloRequest(t *testing.T) {
	// Payloads arrive as the generic map the JSON decoder produced.
	req, err := decodeHelloRequest(map[string]interface{}{
		"username": "alice",
		"password": "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "hunter2", req.Password)

	_, err = decodeHelloRequest(nil)
	assert.Error(t, err)
}

func TestDecodeChatSendRequest(t *testing.T) {
	req, err := decodeChatSendRequest(map[string]interface{}{
		"content": "hi",
		"kind":    "audio",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", req.Content)
	assert.Equal(t, protocol.MessageKindAudio, req.Kind)
}

func TestDecodeHistoryRequestBarePayload(t *testing.T) {
	req, err := decodeHistoryRequest(nil)
	require.NoError(t, err)
	assert.Zero(t, req.Limit)
	assert.Zero(t, req.BeforeSeq)

	req, err = decodeHistoryRequest(map[string]interface{}{"limit": 5, "before_seq": 42})
	require.NoError(t, err)
	assert.Equal(t, 5, req.Limit)
	assert.Equal(t, int64(42), req.BeforeSeq)
}

func TestReasonFor(t *testing.T) {
	cases := []struct {
		err    error
		reason string
	}{
		{coordinator.ErrNotBound, "hello first"},
		{coordinator.ErrNotJoined, "join room first"},
		{coordinator.ErrRoomNotFound, "room not found"},
		{coordinator.ErrEmptyContent, "message empty"},
		{coordinator.ErrPersistence, "message not stored"},
		{coordinator.ErrPermissionDenied, "admin role required"},
		{coordinator.ErrServerFull, "server full"},
		{storage.ErrRoomExists, "room already exists"},
		{assert.AnError, "request failed"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.reason, reasonFor(tc.err), tc.err.Error())
	}
}
