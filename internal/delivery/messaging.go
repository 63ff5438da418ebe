package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	masterdata "metering-dashboard/internal/masterdata/domain"
	reports "metering-dashboard/internal/reports/domain"
)

// MessagingTransport pushes a text message to a messaging id. The second
// segment is optional.
type MessagingTransport interface {
	Push(ctx context.Context, recipientID, text, second string) error
}

// MessagingChannel delivers report notifications over a push-messaging
// transport. The artifact itself travels only as the archive link.
type MessagingChannel struct {
	transport MessagingTransport
}

// NewMessagingChannel constructs a messaging channel.
func NewMessagingChannel(transport MessagingTransport) (*MessagingChannel, error) {
	if transport == nil {
		return nil, errors.New("messaging channel: nil transport")
	}
	return &MessagingChannel{transport: transport}, nil
}

// Kind implements Channel.
func (c *MessagingChannel) Kind() Kind {
	return KindMessaging
}

// Address implements Channel.
func (c *MessagingChannel) Address(recipient masterdata.Recipient) (string, bool) {
	if !recipient.HasMessagingID() {
		return "", false
	}
	return strings.TrimSpace(recipient.MessagingID), true
}

// Send implements Channel.
func (c *MessagingChannel) Send(ctx context.Context, address string, artifact reports.Artifact, msg Message) error {
	return c.transport.Push(ctx, address, msg.Body, msg.Link)
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	ToUser  string      `json:"touser"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookTransport posts text messages to a chat webhook.
type WebhookTransport struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook transport.
type WebhookOption func(*WebhookTransport)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(t *WebhookTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// NewWebhookTransport constructs a webhook transport.
func NewWebhookTransport(url string, opts ...WebhookOption) (*WebhookTransport, error) {
	if url == "" {
		return nil, errors.New("webhook transport: empty url")
	}
	transport := &WebhookTransport{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport, nil
}

// Push implements MessagingTransport. Each segment is one webhook post.
func (w *WebhookTransport) Push(ctx context.Context, recipientID, text, second string) error {
	if err := w.post(ctx, recipientID, text); err != nil {
		return err
	}
	if second == "" {
		return nil
	}
	return w.post(ctx, recipientID, second)
}

func (w *WebhookTransport) post(ctx context.Context, recipientID, content string) error {
	payload := webhookPayload{
		MsgType: "text",
		ToUser:  recipientID,
		Text:    webhookText{Content: content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook transport: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSTransport publishes messages through Amazon SNS. With a topic the
// recipient id travels as a message attribute; without one it is the target
// endpoint ARN.
type SNSTransport struct {
	client   snsPublisher
	topicArn string
}

// NewSNSTransport loads the default AWS configuration for region.
func NewSNSTransport(ctx context.Context, region, topicArn string) (*SNSTransport, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("sns transport: load aws config: %w", err)
	}
	return newSNSTransport(sns.NewFromConfig(cfg), topicArn)
}

func newSNSTransport(client snsPublisher, topicArn string) (*SNSTransport, error) {
	if client == nil {
		return nil, errors.New("sns transport: nil client")
	}
	return &SNSTransport{client: client, topicArn: topicArn}, nil
}

// Push implements MessagingTransport.
func (t *SNSTransport) Push(ctx context.Context, recipientID, text, second string) error {
	if err := t.publish(ctx, recipientID, text); err != nil {
		return err
	}
	if second == "" {
		return nil
	}
	return t.publish(ctx, recipientID, second)
}

func (t *SNSTransport) publish(ctx context.Context, recipientID, message string) error {
	input := &sns.PublishInput{Message: aws.String(message)}
	if t.topicArn != "" {
		input.TopicArn = aws.String(t.topicArn)
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"recipient_id": {DataType: aws.String("String"), StringValue: aws.String(recipientID)},
		}
	} else {
		input.TargetArn = aws.String(recipientID)
	}
	if _, err := t.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns transport: publish: %w", err)
	}
	return nil
}
