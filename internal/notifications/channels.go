package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/notifications/websocket"
)

// ErrSkipped is returned by a channel that has nothing to deliver to
var ErrSkipped = errors.New("channel skipped")

// Channel delivers a stored notification over one medium
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient *directory.User, n *Notification) (providerID string, err error)
}

// =====================================================
// WebSocket
// =====================================================

// WebSocketChannel pushes to the recipient's open sockets
type WebSocketChannel struct {
	manager *websocket.Manager
}

// NewWebSocketChannel creates a channel on top of the socket manager
func NewWebSocketChannel(manager *websocket.Manager) *WebSocketChannel {
	return &WebSocketChannel{manager: manager}
}

func (c *WebSocketChannel) Name() string { return ChannelWebSocket }

func (c *WebSocketChannel) Send(ctx context.Context, recipient *directory.User, n *Notification) (string, error) {
	err := c.manager.SendToUser(recipient.ID.String(), websocket.Message{
		Type: websocket.MessageTypeNotification,
		Kind: n.Kind,
		Data: map[string]interface{}{
			"notification_id": n.ID.String(),
			"title":           n.Title,
			"body":            n.Body,
			"payload":         map[string]interface{}(n.Payload),
		},
		Timestamp: time.Now(),
	})
	if errors.Is(err, websocket.ErrNotConnected) {
		return "", ErrSkipped
	}
	return "", err
}

// =====================================================
// Email (SES v2)
// =====================================================

// SESAPI is the subset of the SES v2 client the email channel uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailChannel sends plain-text email through SES
type EmailChannel struct {
	client SESAPI
	from   string
}

// NewEmailChannel creates an SES-backed email channel
func NewEmailChannel(client SESAPI, from string) *EmailChannel {
	return &EmailChannel{client: client, from: from}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, recipient *directory.User, n *Notification) (string, error) {
	if recipient.Email == "" {
		return "", ErrSkipped
	}

	out, err := c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{recipient.Email}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(n.Title)},
				Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String(n.Body)}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// =====================================================
// SMS (SNS)
// =====================================================

// SNSAPI is the subset of the SNS client the SMS channel uses
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSChannel texts the recipient's phone for a configured set of kinds
type SMSChannel struct {
	client SNSAPI
	kinds  map[string]bool
}

// NewSMSChannel creates an SNS-backed SMS channel. Only the listed kinds are texted.
func NewSMSChannel(client SNSAPI, kinds []string) *SMSChannel {
	allowed := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return &SMSChannel{client: client, kinds: allowed}
}

func (c *SMSChannel) Name() string { return ChannelSMS }

func (c *SMSChannel) Send(ctx context.Context, recipient *directory.User, n *Notification) (string, error) {
	if !c.kinds[n.Kind] || recipient.Phone == nil || *recipient.Phone == "" {
		return "", ErrSkipped
	}

	out, err := c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: recipient.Phone,
		Message:     aws.String(n.Title + ": " + n.Body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send sms: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
