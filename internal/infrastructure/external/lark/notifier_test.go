package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/domain/event"
)

type mockSender struct {
	SendTextFunc func(ctx context.Context, receiveIDType, receiveID, text string) (string, error)
}

func (m *mockSender) SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error) {
	return m.SendTextFunc(ctx, receiveIDType, receiveID, text)
}

func TestNotifier_Notify(t *testing.T) {
	var gotType, gotID, gotText string
	sender := &mockSender{
		SendTextFunc: func(ctx context.Context, receiveIDType, receiveID, text string) (string, error) {
			gotType, gotID, gotText = receiveIDType, receiveID, text
			return "om_123", nil
		},
	}

	n, err := NewNotifier(sender, "oc_chat", zap.NewNop())
	require.NoError(t, err)

	evt := event.NewEvent(event.TypeProposalRejected, 4, map[string]interface{}{
		"title":    "Travel",
		"stepName": "CFO",
		"actor":    "kim",
	})
	require.NoError(t, n.Notify(context.Background(), evt))

	assert.Equal(t, "chat_id", gotType)
	assert.Equal(t, "oc_chat", gotID)
	assert.Equal(t, `Proposal #4 "Travel" rejected at step CFO by kim`, gotText)
	assert.Equal(t, "lark", n.Name())
}

func TestNotifier_NotifyError(t *testing.T) {
	sender := &mockSender{
		SendTextFunc: func(ctx context.Context, receiveIDType, receiveID, text string) (string, error) {
			return "", errors.New("API error: code=230002")
		},
	}
	n, err := NewNotifier(sender, "oc_chat", zap.NewNop())
	require.NoError(t, err)

	err = n.Notify(context.Background(), event.NewEvent(event.TypeProposalSubmitted, 1, nil))
	assert.ErrorContains(t, err, "code=230002")
}

func TestNewNotifier_RequiresChatID(t *testing.T) {
	_, err := NewNotifier(&mockSender{}, "", zap.NewNop())
	assert.Error(t, err)
}

func TestTextContent_Escapes(t *testing.T) {
	content, err := textContent("line \"one\"\nline two")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.Equal(t, "line \"one\"\nline two", decoded["text"])
}
