package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
)

const (
	receiveIDTypeEmail = "email"
	msgTypePost        = "post"
)

// messageCreator is the slice of the IM message API the notifier needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Notifier delivers workflow notifications as Lark post messages addressed by email
type Notifier struct {
	messages messageCreator
	locale   string
	logger   *zap.Logger
}

// NewNotifier creates a notifier on top of a Lark client
func NewNotifier(client *Client, logger *zap.Logger) *Notifier {
	return &Notifier{
		messages: client.client.Im.Message,
		locale:   client.config.Locale,
		logger:   logger,
	}
}

// SendEmail sends subject and body to the Lark user registered under email
func (n *Notifier) SendEmail(ctx context.Context, email, subject, body string) error {
	if email == "" {
		return fmt.Errorf("recipient email cannot be empty")
	}

	content, err := postContent(n.locale, subject, body)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeEmail).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(email).
			MsgType(msgTypePost).
			Content(content).
			Build()).
		Build()

	resp, err := n.messages.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("email", email),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Message sent successfully", zap.String("message_id", messageID), zap.String("email", email))
	return nil
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text,omitempty"`
	Href string `json:"href,omitempty"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent renders a rich-text post, one paragraph per body line.
// Lines that are bare URLs become links.
func postContent(locale, title, body string) (string, error) {
	var paragraphs [][]postElement
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		paragraphs = append(paragraphs, paragraph(line))
	}

	raw, err := json.Marshal(map[string]postBody{
		locale: {Title: title, Content: paragraphs},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post content: %w", err)
	}
	return string(raw), nil
}

func paragraph(line string) []postElement {
	idx := strings.Index(line, "https://")
	if idx < 0 {
		idx = strings.Index(line, "http://")
	}
	if idx < 0 {
		return []postElement{{Tag: "text", Text: line}}
	}

	url, rest := line[idx:], ""
	if end := strings.IndexAny(url, " \t"); end >= 0 {
		url, rest = url[:end], url[end:]
	}
	elements := make([]postElement, 0, 3)
	if prefix := line[:idx]; prefix != "" {
		elements = append(elements, postElement{Tag: "text", Text: prefix})
	}
	elements = append(elements, postElement{Tag: "a", Text: url, Href: url})
	if rest != "" {
		elements = append(elements, postElement{Tag: "text", Text: rest})
	}
	return elements
}

var _ port.MessageSender = (*Notifier)(nil)
