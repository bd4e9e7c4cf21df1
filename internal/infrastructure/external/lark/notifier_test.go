package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessages struct {
	requests []*larkim.CreateMessageReq
	resp     *larkim.CreateMessageResp
	err      error
}

func (f *fakeMessages) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestNotifier(fake *fakeMessages) *Notifier {
	return &Notifier{messages: fake, locale: "en_us", logger: zap.NewNop()}
}

func TestNotifier_SendEmail(t *testing.T) {
	messageID := "om_123"
	fake := &fakeMessages{resp: &larkim.CreateMessageResp{
		Data: &larkim.CreateMessageRespData{MessageId: &messageID},
	}}
	n := newTestNotifier(fake)

	err := n.SendEmail(context.Background(), "ana@example.com", "[F07] F07-2026-01-0001 awaits your approval",
		"Hello Ana,\n\nChange request \"CRM\" needs your decision.\nAct on it here: https://f07.example.com/api/approvals/abc")
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)

	body := fake.requests[0].Body
	require.NotNil(t, body)
	assert.Equal(t, "ana@example.com", *body.ReceiveId)
	assert.Equal(t, "post", *body.MsgType)

	var content map[string]postBody
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	post := content["en_us"]
	assert.Equal(t, "[F07] F07-2026-01-0001 awaits your approval", post.Title)
	require.Len(t, post.Content, 3)
	assert.Equal(t, []postElement{{Tag: "text", Text: "Change request \"CRM\" needs your decision."}}, post.Content[1])
	assert.Equal(t, []postElement{
		{Tag: "text", Text: "Act on it here: "},
		{Tag: "a", Text: "https://f07.example.com/api/approvals/abc", Href: "https://f07.example.com/api/approvals/abc"},
	}, post.Content[2])
}

func TestNotifier_SendEmail_Failures(t *testing.T) {
	t.Run("empty recipient", func(t *testing.T) {
		fake := &fakeMessages{}
		err := newTestNotifier(fake).SendEmail(context.Background(), "", "s", "b")
		assert.Error(t, err)
		assert.Empty(t, fake.requests)
	})

	t.Run("transport error", func(t *testing.T) {
		fake := &fakeMessages{err: errors.New("connection reset")}
		err := newTestNotifier(fake).SendEmail(context.Background(), "ana@example.com", "s", "b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("api error", func(t *testing.T) {
		fake := &fakeMessages{resp: &larkim.CreateMessageResp{
			CodeError: larkcore.CodeError{Code: 230013, Msg: "bot has no availability to this user"},
		}}
		err := newTestNotifier(fake).SendEmail(context.Background(), "ana@example.com", "s", "b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "code=230013")
	})
}

func TestParagraph(t *testing.T) {
	assert.Equal(t, []postElement{{Tag: "text", Text: "plain"}}, paragraph("plain"))
	assert.Equal(t, []postElement{
		{Tag: "a", Text: "http://x.test/a", Href: "http://x.test/a"},
		{Tag: "text", Text: " now"},
	}, paragraph("http://x.test/a now"))
}
