package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/elearning/internal/cache"
	"github.com/Skotchmaster/elearning/internal/db/dbtest"
	"github.com/Skotchmaster/elearning/internal/hash"
	"github.com/Skotchmaster/elearning/internal/mailer"
	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/payment"
	"github.com/Skotchmaster/elearning/internal/repo"
	"github.com/Skotchmaster/elearning/internal/search"
	"github.com/Skotchmaster/elearning/internal/tokens"
)

const testSessionTTL = 7 * 24 * time.Hour

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Dispatch(_ context.Context, m mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMailer) last(t *testing.T) mailer.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no mail dispatched")
	return f.sent[len(f.sent)-1]
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type publishedEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, _ := event.(map[string]any)
	f.events = append(f.events, publishedEvent{Topic: topic, Key: key, Event: m})
	return nil
}

func (f *fakePublisher) types(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.Topic == topic {
			out = append(out, e.Event["type"].(string))
		}
	}
	return out
}

type fakePayments struct {
	status  string
	err     error
	created []int64
}

func (f *fakePayments) RetrieveIntent(_ context.Context, id string) (*payment.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Intent{ID: id, Status: f.status}, nil
}

func (f *fakePayments) CreateIntent(_ context.Context, amount int64, currency string) (*payment.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, amount)
	return &payment.Intent{ID: "pi_new", Amount: amount, Currency: currency, ClientSecret: "pi_new_secret"}, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]search.Document
	deleted []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: map[string]search.Document{}}
}

func (f *fakeIndex) IndexCourse(_ context.Context, c *models.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[c.ID] = search.DocumentFrom(c)
	return nil
}

func (f *fakeIndex) DeleteCourse(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _, _ int) (int64, []search.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]search.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return int64(len(out)), out, nil
}

type harness struct {
	repo     *repo.GormRepo
	mr       *miniredis.Miniredis
	sessions *cache.SessionStore
	codes    *cache.CodeStore
	grants   *cache.CodeStore
	attempts *cache.AttemptCounter
	courses  *cache.CourseCache
	tokens   *tokens.Service
	mail     *fakeMailer
	events   *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.Wrap(rdb)

	return &harness{
		repo:     repo.New(dbtest.Open(t)),
		mr:       mr,
		sessions: cache.NewSessionStore(c),
		codes:    cache.NewResetCodeStore(c, 5, 15*time.Minute),
		grants:   cache.NewResetGrantStore(c),
		attempts: cache.NewActivationAttempts(c, 5*time.Minute),
		courses:  cache.NewCourseCache(c),
		tokens: &tokens.Service{
			AccessSecret:     []byte("access-secret"),
			RefreshSecret:    []byte("refresh-secret"),
			ActivationSecret: []byte("activation-secret"),
			AccessTTL:        5 * time.Minute,
			RefreshTTL:       3 * 24 * time.Hour,
			ActivationTTL:    5 * time.Minute,
		},
		mail:   &fakeMailer{},
		events: &fakePublisher{},
	}
}

func (h *harness) auth() *AuthService {
	return &AuthService{
		Repo:          h.repo,
		Tokens:        h.tokens,
		Sessions:      h.sessions,
		ResetCodes:    h.codes,
		ResetGrants:   h.grants,
		Mail:          h.mail,
		Events:        h.events,
		SessionTTL:    testSessionTTL,
		ResetCodeTTL:  5 * time.Minute,
		ResetGrantTTL: 10 * time.Minute,

		ActivationAttempts:    h.attempts,
		MaxActivationAttempts: 5,
	}
}

func (h *harness) users() *UserService {
	return &UserService{Repo: h.repo, Sessions: h.sessions, Events: h.events}
}

func (h *harness) coursesSvc(idx CourseIndex) *CourseService {
	return &CourseService{
		Repo:     h.repo,
		Cache:    h.courses,
		Index:    idx,
		Mail:     h.mail,
		Events:   h.events,
		CacheTTL: 7 * 24 * time.Hour,
	}
}

func (h *harness) orders(p PaymentGateway) *OrderService {
	return &OrderService{
		Repo:           h.repo,
		Sessions:       h.sessions,
		Courses:        h.courses,
		Payments:       p,
		Mail:           h.mail,
		Events:         h.events,
		PublishableKey: "pk_test",
	}
}

func (h *harness) createUser(t *testing.T, username, email, password, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: email, Role: role}
	if password != "" {
		hashed, err := hash.HashPassword(password)
		require.NoError(t, err)
		u.Password = hashed
	}
	require.NoError(t, h.repo.CreateUser(context.Background(), u))
	return u
}

// login starts a session for u the way a successful login would.
func (h *harness) login(t *testing.T, u *models.User) {
	t.Helper()
	fresh, err := h.repo.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NoError(t, h.sessions.Save(context.Background(), fresh, testSessionTTL))
}

var errBoom = errors.New("boom")
