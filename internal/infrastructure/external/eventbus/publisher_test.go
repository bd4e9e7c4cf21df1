package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/event"
)

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func TestPublisher_Subject(t *testing.T) {
	p := NewPublisher(&fakeConn{}, "", zap.NewNop())
	req := &entity.Request{ID: 3, DocumentNo: "F07-2026-01-0003", Status: "PENDING"}

	notification := event.NewNotificationEvent(entity.NotificationInstruction{
		Template: entity.TemplateApprovalRequired, RecipientUserID: 7, RequestID: 3,
	}, req, "c-1")
	assert.Equal(t, "f07.notifications.approval_required", p.Subject(notification))

	transitioned := event.NewEvent(event.TypeRequestTransitioned, 3, req.DocumentNo, nil)
	assert.Equal(t, "f07.request.transitioned", p.Subject(transitioned))

	custom := NewPublisher(&fakeConn{}, "acme.f07.", zap.NewNop())
	assert.Equal(t, "acme.f07.request.transitioned", custom.Subject(transitioned))
}

func TestPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "f07", zap.NewNop())
	evt := event.NewEventWithCorrelation(event.TypeRequestSubmitted, 9, "F07-2026-02-0001",
		map[string]interface{}{event.KeyStatus: "PENDING"}, "corr-9")

	require.NoError(t, p.Publish(context.Background(), evt))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "f07.request.submitted", msg.Subject)
	assert.Equal(t, evt.ID, msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, "corr-9", msg.Header.Get("Correlation-Id"))

	var decoded event.Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, int64(9), decoded.RequestID)
	assert.Equal(t, "PENDING", decoded.GetPayloadString(event.KeyStatus))
}

func TestPublisher_Publish_Errors(t *testing.T) {
	evt := event.NewEvent(event.TypeRequestSubmitted, 1, "", nil)

	failing := NewPublisher(&fakeConn{err: nats.ErrConnectionClosed}, "f07", zap.NewNop())
	err := failing.Publish(context.Background(), evt)
	assert.True(t, errors.Is(err, nats.ErrConnectionClosed))

	conn := &fakeConn{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewPublisher(conn, "f07", zap.NewNop()).Publish(ctx, evt))
	assert.Empty(t, conn.msgs)
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(Config{}, zap.NewNop())
	assert.Error(t, err)
}
