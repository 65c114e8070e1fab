package sms

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smschat/server/internal/cache"
	"github.com/smschat/server/internal/model"
	"github.com/smschat/server/internal/repo"
)

// fakeMessageRepo is an in-memory MessageRepo.
type fakeMessageRepo struct {
	messages map[uuid.UUID]model.Message
}

var _ repo.MessageRepo = (*fakeMessageRepo)(nil)

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[uuid.UUID]model.Message{}}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m model.Message) (model.Message, error) {
	m.ID = uuid.New()
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeMessageRepo) GetByTwilioSID(ctx context.Context, sid string) (model.Message, error) {
	for _, m := range f.messages {
		if m.TwilioSID != nil && *m.TwilioSID == sid {
			return m, nil
		}
	}
	return model.Message{}, repo.ErrNotFound
}

func (f *fakeMessageRepo) ListByOwner(ctx context.Context, owner string) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.Owner == owner {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMessageRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	m, ok := f.messages[id]
	if !ok {
		return repo.ErrNotFound
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	f.messages[id] = m
	return nil
}

func (f *fakeMessageRepo) MarkAccepted(ctx context.Context, id uuid.UUID, sid string, status model.Status) error {
	m, ok := f.messages[id]
	if !ok {
		return repo.ErrNotFound
	}
	m.TwilioSID = &sid
	m.Status = status
	m.UpdatedAt = time.Now()
	f.messages[id] = m
	return nil
}

func (f *fakeMessageRepo) ListRefreshable(ctx context.Context, owner string, createdAfter time.Time) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.Owner != owner || m.Direction != model.DirectionOutbound {
			continue
		}
		if m.Status != model.StatusSending && m.Status != model.StatusSent {
			continue
		}
		if m.TwilioSID == nil || !m.CreatedAt.After(createdAfter) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// put inserts a message directly, bypassing the lifecycle.
func (f *fakeMessageRepo) put(owner string, status model.Status, sid string, age time.Duration) model.Message {
	m := model.Message{
		ID:          uuid.New(),
		Owner:       owner,
		PhoneNumber: "+18777804236",
		MessageBody: "hello",
		Direction:   model.DirectionOutbound,
		Status:      status,
		CreatedAt:   time.Now().Add(-age),
		UpdatedAt:   time.Now().Add(-age),
	}
	if sid != "" {
		m.TwilioSID = &sid
	}
	f.messages[m.ID] = m
	return m
}

// fakeGateway scripts provider responses per call.
type fakeGateway struct {
	sendSID     string
	sendStatus  string
	sendErr     error
	sendCalls   int
	statusBySID map[string]string
	statusErrs  map[string]error
	fetchCalls  int
}

var _ Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) Send(ctx context.Context, to, body string) (string, string, error) {
	g.sendCalls++
	if g.sendErr != nil {
		return "", "", g.sendErr
	}
	return g.sendSID, g.sendStatus, nil
}

func (g *fakeGateway) FetchStatus(ctx context.Context, sid string) (string, error) {
	g.fetchCalls++
	if err, ok := g.statusErrs[sid]; ok {
		return "", err
	}
	if status, ok := g.statusBySID[sid]; ok {
		return status, nil
	}
	return "", errors.New("unknown sid")
}

func newTestService(gw *fakeGateway, configured bool) (*Service, *fakeMessageRepo) {
	messages := newFakeMessageRepo()
	return NewService(messages, gw, cache.NewNoop(), configured), messages
}

func TestCreate_ProviderAccepts(t *testing.T) {
	gw := &fakeGateway{sendSID: "SM1", sendStatus: "queued"}
	svc, messages := newTestService(gw, true)

	message, err := svc.Create(context.Background(), "alice", "+18777804236", "hello")
	require.NoError(t, err)

	assert.Equal(t, model.StatusSending, message.Status)
	require.NotNil(t, message.TwilioSID)
	assert.Equal(t, "SM1", *message.TwilioSID)
	assert.Equal(t, "alice", message.Owner)
	assert.Equal(t, model.DirectionOutbound, message.Direction)

	stored := messages.messages[message.ID]
	assert.Equal(t, model.StatusSending, stored.Status)
	require.NotNil(t, stored.TwilioSID)
	assert.Equal(t, "SM1", *stored.TwilioSID)
}

func TestCreate_ValidationFailureWritesNothing(t *testing.T) {
	gw := &fakeGateway{}
	svc, messages := newTestService(gw, true)

	_, err := svc.Create(context.Background(), "alice", "abc", "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Errors, 2)
	assert.Empty(t, messages.messages, "no store write on validation failure")
	assert.Zero(t, gw.sendCalls, "no provider call on validation failure")
}

func TestCreate_ProviderNotConfigured(t *testing.T) {
	gw := &fakeGateway{}
	svc, messages := newTestService(gw, false)

	message, err := svc.Create(context.Background(), "alice", "+18777804236", "hello")
	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)

	assert.Equal(t, model.StatusFailed, message.Status)
	assert.Nil(t, message.TwilioSID)
	assert.Zero(t, gw.sendCalls, "no network I/O when unconfigured")

	stored := messages.messages[message.ID]
	assert.Equal(t, model.StatusFailed, stored.Status, "failed record is retained")
}

func TestCreate_GatewayFailure(t *testing.T) {
	gw := &fakeGateway{sendErr: errors.New("rate limit exceeded")}
	svc, messages := newTestService(gw, true)

	message, err := svc.Create(context.Background(), "alice", "+18777804236", "hello")
	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.ErrorContains(t, dErr, "rate limit")

	assert.Equal(t, model.StatusFailed, message.Status)
	assert.Nil(t, message.TwilioSID)
	stored := messages.messages[message.ID]
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Nil(t, stored.TwilioSID)
}

func TestApplyWebhook_UpdatesAndIsIdempotent(t *testing.T) {
	svc, messages := newTestService(&fakeGateway{}, true)
	m := messages.put("alice", model.StatusSending, "SM1", time.Minute)

	updated, err := svc.ApplyWebhook(context.Background(), "SM1", "delivered")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, model.StatusDelivered, messages.messages[m.ID].Status)

	// Same callback again: no-op, still success.
	updated, err = svc.ApplyWebhook(context.Background(), "SM1", "delivered")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, model.StatusDelivered, messages.messages[m.ID].Status)
}

func TestApplyWebhook_UnknownSID(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{}, true)

	_, err := svc.ApplyWebhook(context.Background(), "SM404", "delivered")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestApplyWebhook_UnknownStatusDegradesToSent(t *testing.T) {
	svc, messages := newTestService(&fakeGateway{}, true)
	m := messages.put("alice", model.StatusSending, "SM1", time.Minute)

	updated, err := svc.ApplyWebhook(context.Background(), "SM1", "some-future-status")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, model.StatusSent, messages.messages[m.ID].Status)
}

func TestRefreshStatuses_AppliesChanges(t *testing.T) {
	gw := &fakeGateway{statusBySID: map[string]string{
		"SM1": "delivered",
		"SM2": "sent", // unchanged
	}}
	svc, messages := newTestService(gw, true)

	m1 := messages.put("alice", model.StatusSent, "SM1", time.Hour)
	m2 := messages.put("alice", model.StatusSent, "SM2", time.Hour)

	list, updated, err := svc.RefreshStatuses(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Len(t, list, 2)
	assert.Equal(t, model.StatusDelivered, messages.messages[m1.ID].Status)
	assert.Equal(t, model.StatusSent, messages.messages[m2.ID].Status)
}

func TestRefreshStatuses_SkipsIneligibleMessages(t *testing.T) {
	gw := &fakeGateway{statusBySID: map[string]string{}}
	svc, messages := newTestService(gw, true)

	messages.put("alice", model.StatusDelivered, "SM1", time.Hour)  // terminal
	messages.put("alice", model.StatusFailed, "SM2", time.Hour)     // terminal
	messages.put("alice", model.StatusSending, "", time.Hour)       // no sid
	messages.put("alice", model.StatusSent, "SM3", 25*time.Hour)    // outside window
	messages.put("bob", model.StatusSent, "SM4", time.Hour)         // other owner

	list, updated, err := svc.RefreshStatuses(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, gw.fetchCalls, "no provider queries for ineligible messages")
	assert.Len(t, list, 4, "full list still returned")
}

func TestRefreshStatuses_IsolatesPerMessageFailures(t *testing.T) {
	gw := &fakeGateway{
		statusBySID: map[string]string{"SM2": "delivered"},
		statusErrs:  map[string]error{"SM1": errors.New("provider timeout")},
	}
	svc, messages := newTestService(gw, true)

	m1 := messages.put("alice", model.StatusSent, "SM1", time.Hour)
	m2 := messages.put("alice", model.StatusSent, "SM2", time.Hour)

	list, updated, err := svc.RefreshStatuses(context.Background(), "alice")
	require.NoError(t, err, "one failed fetch must not abort the batch")
	assert.Equal(t, 1, updated)
	assert.Len(t, list, 2)
	assert.Equal(t, model.StatusSent, messages.messages[m1.ID].Status)
	assert.Equal(t, model.StatusDelivered, messages.messages[m2.ID].Status)
}

func TestRefreshStatuses_NotConfigured(t *testing.T) {
	gw := &fakeGateway{}
	svc, messages := newTestService(gw, false)
	messages.put("alice", model.StatusSent, "SM1", time.Hour)

	list, updated, err := svc.RefreshStatuses(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, gw.fetchCalls)
	assert.Len(t, list, 1)
}

func TestListMessages_NewestFirst(t *testing.T) {
	svc, messages := newTestService(&fakeGateway{}, true)
	older := messages.put("alice", model.StatusSent, "SM1", 2*time.Hour)
	newer := messages.put("alice", model.StatusSent, "SM2", time.Hour)

	list, err := svc.ListMessages(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}
