package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
)

// MessageCreator is the IM message endpoint of the Lark SDK
type MessageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger delivers notifications as Lark text messages addressed by open_id
type Messenger struct {
	messages MessageCreator
	logger   *zap.Logger
}

// NewMessenger creates a Lark notifier backed by the SDK client
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return NewMessengerWithCreator(sdk.GetClient().Im.Message, logger)
}

// NewMessengerWithCreator creates a Lark notifier on an explicit message endpoint
func NewMessengerWithCreator(messages MessageCreator, logger *zap.Logger) *Messenger {
	return &Messenger{messages: messages, logger: logger}
}

// Name implements port.Notifier
func (m *Messenger) Name() string { return "lark" }

// Notify implements port.Notifier. Users without a Lark open id are skipped.
func (m *Messenger) Notify(ctx context.Context, n *port.Notification) error {
	if n.Recipient == nil || n.Recipient.LarkOpenID == "" {
		m.logger.Debug("Recipient has no Lark open id, skipping",
			zap.String("requisition_id", n.RequisitionID))
		return nil
	}

	_, err := m.SendText(ctx, n.Recipient.LarkOpenID, n.Subject+"\n"+n.Body)
	return err
}

// SendText sends a text message and returns the Lark message id
func (m *Messenger) SendText(ctx context.Context, openID, text string) (string, error) {
	if openID == "" {
		return "", fmt.Errorf("openID cannot be empty")
	}
	body, err := textMessageBody(openID, text)
	if err != nil {
		return "", err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(body).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message", zap.String("receive_id", openID), zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent", zap.String("message_id", messageID), zap.String("receive_id", openID))
	return messageID, nil
}

func textMessageBody(openID, text string) (*larkim.CreateMessageReqBody, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message content: %w", err)
	}
	return larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(openID).
		MsgType(larkim.MsgTypeText).
		Content(string(content)).
		Build(), nil
}

var _ port.Notifier = (*Messenger)(nil)
