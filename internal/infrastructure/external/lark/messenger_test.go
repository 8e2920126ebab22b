package lark

import (
	"context"
	"encoding/json"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
)

type fakeMessages struct {
	requests []*larkim.CreateMessageReq
	code     int
}

func (f *fakeMessages) Create(ctx context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.requests = append(f.requests, req)
	id := "om_1"
	return &larkim.CreateMessageResp{
		CodeError: larkcore.CodeError{Code: f.code, Msg: "bad receiver"},
		Data:      &larkim.CreateMessageRespData{MessageId: &id},
	}, nil
}

func TestMessenger_Notify(t *testing.T) {
	fake := &fakeMessages{}
	m := NewMessengerWithCreator(fake, zap.NewNop())

	err := m.Notify(context.Background(), &port.Notification{
		Recipient: &entity.User{ID: "u1", LarkOpenID: "ou_123"},
		Subject:   `Approval requested: "REQ-1"`,
		Body:      "Please review",
	})
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)
	require.NotNil(t, fake.requests[0])
}

func TestTextMessageBody(t *testing.T) {
	body, err := textMessageBody("ou_123", "Approval requested: \"REQ-1\"\nPlease review")
	require.NoError(t, err)
	require.NotNil(t, body)

	require.NotNil(t, body.ReceiveId)
	assert.Equal(t, "ou_123", *body.ReceiveId)
	require.NotNil(t, body.MsgType)
	assert.Equal(t, larkim.MsgTypeText, *body.MsgType)

	require.NotNil(t, body.Content)
	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, "Approval requested: \"REQ-1\"\nPlease review", content["text"])
}

func TestMessenger_SkipsUsersWithoutOpenID(t *testing.T) {
	fake := &fakeMessages{}
	m := NewMessengerWithCreator(fake, zap.NewNop())

	err := m.Notify(context.Background(), &port.Notification{Recipient: &entity.User{ID: "u1"}})
	require.NoError(t, err)
	assert.Empty(t, fake.requests)
}

func TestMessenger_APIFailure(t *testing.T) {
	m := NewMessengerWithCreator(&fakeMessages{code: 230001}, zap.NewNop())

	_, err := m.SendText(context.Background(), "ou_123", "hi")
	assert.ErrorContains(t, err, "code=230001")
}
