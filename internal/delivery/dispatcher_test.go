package delivery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	masterdata "metering-dashboard/internal/masterdata/domain"
	"metering-dashboard/internal/masterdata/infrastructure/memory"
	reports "metering-dashboard/internal/reports/domain"
)

type recordingEmail struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
}

func (r *recordingEmail) SendMail(ctx context.Context, to, subject, body string, attachment *Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	if err := r.failFor[to]; err != nil {
		return err
	}
	return nil
}

func groupDirectory() *memory.Directory {
	dir := memory.NewDirectory()
	dir.PutRecipient(masterdata.Recipient{ID: "u1", Email: "a@example.com", MessagingID: "wx-a"})
	dir.PutRecipient(masterdata.Recipient{ID: "u2", Email: "b@example.com"})
	dir.PutRecipient(masterdata.Recipient{ID: "u3", Email: "c@example.com"})
	dir.PutRecipient(masterdata.Recipient{ID: "u4", Email: ""})
	dir.PutRecipient(masterdata.Recipient{ID: "u5", Email: "not-an-address"})
	dir.SetGroup("ops", "u1", "u2", "u3", "u4", "u5")
	return dir
}

func TestDispatchFiltersRecipientsWithoutAddress(t *testing.T) {
	transport := &recordingEmail{}
	channel, err := NewEmailChannel(transport)
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(groupDirectory(), WithConcurrency(2))
	require.NoError(t, err)

	result, err := dispatcher.Dispatch(context.Background(), channel, masterdata.RecipientSet{GroupID: "ops"}, reports.Artifact{Data: []byte("x"), Filename: "r.csv"}, Message{Subject: "s"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, []string{"u4", "u5"}, result.Skipped)

	sort.Strings(transport.sent)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, transport.sent)
}

func TestDispatchPartialFailure(t *testing.T) {
	transport := &recordingEmail{failFor: map[string]error{"b@example.com": errors.New("mailbox full")}}
	channel, err := NewEmailChannel(transport)
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(groupDirectory())
	require.NoError(t, err)

	result, err := dispatcher.Dispatch(context.Background(), channel, masterdata.RecipientSet{IDs: []string{"u1", "u2", "ghost"}, GroupID: "ops"}, reports.Artifact{}, Message{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "u2", result.Failures[0].RecipientID)
	assert.EqualError(t, errors.Unwrap(result.Failures[0]), "mailbox full")
	require.Len(t, result.Unresolved, 1)
	assert.Equal(t, "ghost", result.Unresolved[0].Ref)
}

func TestDispatchNoValidRecipients(t *testing.T) {
	transport := &fakeMessaging{}
	channel, err := NewMessagingChannel(transport)
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(groupDirectory())
	require.NoError(t, err)

	result, err := dispatcher.Dispatch(context.Background(), channel, masterdata.RecipientSet{IDs: []string{"u2", "u3"}}, reports.Artifact{}, Message{Body: "hi"})
	require.True(t, errors.Is(err, ErrNoValidRecipients))
	assert.Zero(t, result.Attempted)
	assert.Empty(t, transport.pushes)

	result, err = dispatcher.Dispatch(context.Background(), channel, masterdata.RecipientSet{GroupID: "ops"}, reports.Artifact{}, Message{Body: "hi", Link: "https://x/r.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, []string{"wx-a|hi|https://x/r.pdf"}, transport.pushes)
}

func TestNewDispatcherRejectsNil(t *testing.T) {
	_, err := NewDispatcher(nil)
	require.Error(t, err)

	dispatcher, err := NewDispatcher(groupDirectory())
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(context.Background(), nil, masterdata.RecipientSet{}, reports.Artifact{}, Message{})
	require.True(t, errors.Is(err, ErrNilChannel))
}

type fakeMessaging struct {
	mu     sync.Mutex
	pushes []string
}

func (f *fakeMessaging) Push(ctx context.Context, recipientID, text, second string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, recipientID+"|"+text+"|"+second)
	return nil
}
