package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"akita-notify-go/internal/models"
	"akita-notify-go/internal/notify"
	"akita-notify-go/internal/push"
	"akita-notify-go/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testWebhookSecret = "hook-secret"
	testJWTSecret     = "jwt-secret"
)

// memStore stands in for Postgres.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	subs      map[int64]models.PushSubscription
	prefs     map[string]models.NotificationPreference
	members   map[string]models.Member
	operators map[int]models.Operator
	lookups   int
	deleted   []int64
	// failLookups makes the next n subscription reads fail.
	failLookups int
}

func newMemStore() *memStore {
	return &memStore{
		subs:      map[int64]models.PushSubscription{},
		prefs:     map[string]models.NotificationPreference{},
		members:   map[string]models.Member{},
		operators: map[int]models.Operator{},
	}
}

func (m *memStore) SavePushSubscription(_ context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.subs {
		if existing.UserID == sub.UserID && existing.Endpoint == sub.Endpoint {
			sub.ID = id
			m.subs[id] = sub
			return sub, nil
		}
	}
	m.nextID++
	sub.ID = m.nextID
	sub.CreatedAt = time.Now()
	m.subs[sub.ID] = sub
	return sub, nil
}

func (m *memStore) GetPushSubscriptions(_ context.Context, userID string) ([]models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.failLookups > 0 {
		m.failLookups--
		return nil, errors.New("db: connection reset")
	}
	var out []models.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) DeletePushSubscription(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	delete(m.subs, id)
	return nil
}

func (m *memStore) DeletePushSubscriptionByEndpoint(_ context.Context, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.subs {
		if s.UserID == userID && s.Endpoint == endpoint {
			delete(m.subs, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) GetNotificationPreference(_ context.Context, userID string) (models.NotificationPreference, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return models.DefaultNotificationPreference(userID), false, nil
	}
	return p, true, nil
}

func (m *memStore) SaveNotificationPreference(_ context.Context, p models.NotificationPreference) (models.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now()
	m.prefs[p.UserID] = p
	return p, nil
}

func (m *memStore) GetMember(_ context.Context, id string) (models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return models.Member{}, store.ErrNotFound
	}
	return mem, nil
}

func (m *memStore) UpsertMember(_ context.Context, mem models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[mem.ID] = mem
	return nil
}

func (m *memStore) DeleteMember(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, id)
	return nil
}

func (m *memStore) CreateOperator(_ context.Context, username, password, role string) (models.Operator, error) {
	hash, err := models.HashPassword(password)
	if err != nil {
		return models.Operator{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	op := models.Operator{ID: len(m.operators) + 1, Username: username, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	m.operators[op.ID] = op
	return op, nil
}

func (m *memStore) GetOperator(_ context.Context, id int) (models.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operators[id]
	if !ok {
		return models.Operator{}, store.ErrNotFound
	}
	return op, nil
}

func (m *memStore) GetOperatorByUsername(_ context.Context, username string) (models.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.operators {
		if op.Username == username {
			return op, nil
		}
	}
	return models.Operator{}, store.ErrNotFound
}

func (m *memStore) CountOperators(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.operators), nil
}

func (m *memStore) UpdateOperatorTOTP(_ context.Context, id int, secret string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operators[id]
	if !ok {
		return store.ErrNotFound
	}
	op.TOTPSecret = secret
	op.TOTPEnabled = enabled
	m.operators[id] = op
	return nil
}

func (m *memStore) addSub(userID, endpoint string) models.PushSubscription {
	sub, _ := m.SavePushSubscription(context.Background(), models.PushSubscription{
		UserID: userID, Endpoint: endpoint, P256dh: "key", Auth: "auth",
	})
	return sub
}

// stubPush answers per endpoint with a status code; unknown endpoints get 201.
type stubPush struct {
	mu     sync.Mutex
	status map[string]int
	calls  int
}

func (p *stubPush) Send(_ context.Context, sub models.PushSubscription, _ models.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if code, ok := p.status[sub.Endpoint]; ok && code/100 != 2 {
		return &push.StatusError{Code: code}
	}
	return nil
}

type stubMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *stubMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

type testEnv struct {
	h      *Handler
	mux    *http.ServeMux
	db     *memStore
	redis  *store.RedisStore
	mr     *miniredis.Miniredis
	push   *stubPush
	mailer *stubMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rs := store.NewRedisStore(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rs.Close() })

	db := newMemStore()
	p := &stubPush{status: map[string]int{}}
	m := &stubMailer{}
	h := &Handler{
		Dispatcher: &notify.Dispatcher{
			Subscriptions: db,
			Preferences:   db,
			Members:       db,
			Push:          p,
			Email:         m,
			Recorder:      rs,
			BaseURL:       "https://akitaconnect.com",
		},
		Subscriptions: db,
		Preferences:   db,
		Members:       db,
		Operators:     db,
		Deliveries:    rs,
		Dedup:         rs,
		Sessions:      NewSessionStore([]byte("0123456789abcdef0123456789abcdef"), false),
		Opts: Options{
			WebhookSecret:  testWebhookSecret,
			DedupTTL:       time.Minute,
			VAPIDPublicKey: "BPublicKey",
			JWTSecret:      testJWTSecret,
		},
	}
	mux := http.NewServeMux()
	h.Register(mux)
	return &testEnv{h: h, mux: mux, db: db, redis: rs, mr: mr, push: p, mailer: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func memberToken(t *testing.T, userID string) http.Header {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + tok}}
}
