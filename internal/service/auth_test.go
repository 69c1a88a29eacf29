package service

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/elearning/internal/apperr"
	"github.com/Skotchmaster/elearning/internal/hash"
	"github.com/Skotchmaster/elearning/internal/mailer"
	"github.com/Skotchmaster/elearning/internal/models"
)

func activationCode(t *testing.T, m mailer.Message) string {
	t.Helper()
	code, ok := m.Data["activationCode"].(string)
	require.True(t, ok, "mail carries no activation code")
	return code
}

func TestAuth_RegisterAndActivate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()

	ticket, err := svc.Register(ctx, "alice", "Alice@Example.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, ticket)

	m := h.mail.last(t)
	assert.Equal(t, mailer.TemplateActivation, m.Template)
	assert.Equal(t, "alice@example.com", m.To)
	code := activationCode(t, m)

	exists, err := h.repo.EmailExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, exists, "register must not persist the user")

	_, err = svc.Activate(ctx, ticket, "0000")
	assert.ErrorIs(t, err, ErrCodeMismatch)
	exists, err = h.repo.EmailExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, exists, "a wrong code creates no user")

	u, err := svc.Activate(ctx, ticket, code)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.False(t, u.IsVerified)
	assert.NotEqual(t, "secret1", u.Password)

	stored, err := h.repo.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, hash.CheckPassword(stored.Password, "secret1"))
	assert.False(t, hash.CheckPassword(stored.Password, "secret2"))
	assert.Contains(t, h.events.types(TopicUserEvents), "user_registered")

	_, err = svc.Activate(ctx, ticket, code)
	assert.ErrorIs(t, err, ErrEmailExists)

	sent := h.mail.count()
	_, err = svc.Register(ctx, "alice2", "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Equal(t, sent, h.mail.count(), "no mail for duplicate email")
}

func TestAuth_ActivateCapsWrongCodes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()

	ticket, err := svc.Register(ctx, "mallory", "victim@example.com", "secret1")
	require.NoError(t, err)
	code := activationCode(t, h.mail.last(t))

	wrong := "1000"
	if code == wrong {
		wrong = "1001"
	}
	for i := 0; i < 5; i++ {
		_, err = svc.Activate(ctx, ticket, wrong)
		assert.ErrorIs(t, err, ErrCodeMismatch)
	}

	_, err = svc.Activate(ctx, ticket, code)
	assert.ErrorIs(t, err, ErrTicketInvalid, "the ticket is spent after five misses")
	exists, err := h.repo.EmailExists(ctx, "victim@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAuth_OverlongPasswordIsValidation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()
	long := strings.Repeat("a", 73)

	_, err := svc.Register(ctx, "long", "long@example.com", long)
	assert.ErrorIs(t, err, hash.ErrPasswordTooLong)
	assert.Equal(t, 400, apperr.StatusOf(err))
	assert.Zero(t, h.mail.count())

	u := h.createUser(t, "short", "short@example.com", "secret1", models.RoleUser)
	_, err = h.users().UpdatePassword(ctx, u, "secret1", long)
	assert.Equal(t, 400, apperr.StatusOf(err))
	assert.Equal(t, 400, apperr.StatusOf(svc.ResetPassword(ctx, u, "", long)))
}

func TestAuth_RegisterMailFailureIsUpstream(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.mail.err = errBoom

	_, err := h.auth().Register(context.Background(), "bob", "bob@example.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, apperr.Upstream, apperr.KindOf(err))
}

func TestAuth_ActivateTicketErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()

	h.tokens.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := svc.Register(ctx, "carol", "carol@example.com", "secret1")
	require.NoError(t, err)
	h.tokens.Now = nil

	_, err = svc.Activate(ctx, expired, activationCode(t, h.mail.last(t)))
	assert.ErrorIs(t, err, ErrTicketExpired)

	_, err = svc.Activate(ctx, "not-a-token", "1234")
	assert.ErrorIs(t, err, ErrTicketInvalid)
	assert.Equal(t, 400, apperr.StatusOf(err))
}

func TestAuth_LoginStartsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()
	u := h.createUser(t, "dave", "dave@example.com", "secret1", models.RoleUser)

	_, err := svc.Login(ctx, "dave@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, h.mr.Exists("session:"+u.ID))

	g, err := svc.Login(ctx, "DAVE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, g.User.ID)
	assert.True(t, h.mr.Exists("session:"+u.ID))
	assert.Equal(t, testSessionTTL, h.mr.TTL("session:"+u.ID))

	claims, err := h.tokens.VerifyAccessToken(g.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	cached, err := h.sessions.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.Password, "session never carries the hash")
}

func TestAuth_RefreshRotatesAndSlides(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()
	u := h.createUser(t, "erin", "erin@example.com", "secret1", models.RoleUser)

	g, err := svc.Login(ctx, "erin@example.com", "secret1")
	require.NoError(t, err)

	h.mr.FastForward(2 * 24 * time.Hour)
	require.Less(t, h.mr.TTL("session:"+u.ID), testSessionTTL)

	rotated, err := svc.Refresh(ctx, g.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, g.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, testSessionTTL, h.mr.TTL("session:"+u.ID))

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrRefreshFailed)

	require.NoError(t, svc.Logout(ctx, u))
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestAuth_SocialAuth(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()
	h.createUser(t, "frank", "other@example.com", "secret1", models.RoleUser)

	g, err := svc.SocialAuth(ctx, "frank@example.com", "frank", "https://img/1.png")
	require.NoError(t, err)
	assert.NotEqual(t, "frank", g.User.Username, "taken username gets a suffix")
	assert.True(t, g.User.IsVerified)
	assert.Equal(t, "https://img/1.png", g.User.Avatar.URL)

	again, err := svc.SocialAuth(ctx, "frank@example.com", "frank", "")
	require.NoError(t, err)
	assert.Equal(t, g.User.ID, again.User.ID)

	_, err = h.users().UpdatePassword(ctx, again.User, "x", "newsecret")
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestAuth_PasswordResetWithoutSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()
	u := h.createUser(t, "gina", "gina@example.com", "secret1", models.RoleUser)

	_, err := svc.RequestReset(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	token, err := svc.RequestReset(ctx, "gina@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	m := h.mail.last(t)
	assert.Equal(t, mailer.TemplateResetCode, m.Template)
	code := activationCode(t, m)
	assert.True(t, h.mr.Exists("reset_code:"+u.ID))

	assert.ErrorIs(t, svc.ResetPassword(ctx, nil, "gina@example.com", "newsecret"), ErrCodeInvalid,
		"no grant before the code is verified")

	wrong := "0000"
	if code == wrong {
		wrong = "0001"
	}
	assert.ErrorIs(t, svc.VerifyCode(ctx, "gina@example.com", wrong), ErrCodeInvalid)
	require.NoError(t, svc.VerifyCode(ctx, "gina@example.com", code))
	assert.ErrorIs(t, svc.VerifyCode(ctx, "gina@example.com", code), ErrCodeInvalid, "codes are single use")

	require.NoError(t, svc.ResetPassword(ctx, nil, "gina@example.com", "newsecret"))
	assert.False(t, h.mr.Exists("session:"+u.ID), "reset never creates a session")
	assert.ErrorIs(t, svc.ResetPassword(ctx, nil, "gina@example.com", "another"), ErrCodeInvalid,
		"grants are single use")

	_, err = svc.Login(ctx, "gina@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "gina@example.com", "newsecret")
	require.NoError(t, err)
}

func TestAuth_PasswordResetWithSessionKeepsTTL(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()
	u := h.createUser(t, "hank", "hank@example.com", "secret1", models.RoleUser)
	h.login(t, u)
	h.mr.FastForward(time.Hour)
	ttl := h.mr.TTL("session:" + u.ID)

	_, err := svc.RequestReset(ctx, "hank@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.ResetPassword(ctx, u, "", "newsecret"))

	assert.False(t, h.mr.Exists("reset_code:"+u.ID), "residual code is removed")
	assert.Equal(t, ttl, h.mr.TTL("session:"+u.ID))
	_, err = svc.Login(ctx, "hank@example.com", "newsecret")
	require.NoError(t, err)
}

func TestAuth_VerifyCodeLocksAfterMisses(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.auth()
	ctx := context.Background()
	u := h.createUser(t, "ivan", "ivan@example.com", "secret1", models.RoleUser)

	_, err := svc.RequestReset(ctx, "ivan@example.com")
	require.NoError(t, err)
	code := activationCode(t, h.mail.last(t))

	misses := 0
	for guess := 1000; misses < 5; guess++ {
		g := strconv.Itoa(guess)
		if g == code {
			continue
		}
		err := svc.VerifyCode(ctx, "ivan@example.com", g)
		misses++
		if misses < 5 {
			assert.ErrorIs(t, err, ErrCodeInvalid)
		} else {
			assert.ErrorIs(t, err, ErrResetLocked)
		}
	}

	assert.ErrorIs(t, svc.VerifyCode(ctx, "ivan@example.com", code), ErrResetLocked,
		"the right code is refused once the limit is reached")
	assert.ErrorIs(t, svc.ResetPassword(ctx, nil, "ivan@example.com", "attacker-pw"), ErrCodeInvalid)

	sent := h.mail.count()
	_, err = svc.RequestReset(ctx, "ivan@example.com")
	assert.ErrorIs(t, err, ErrResetLocked)
	assert.Equal(t, sent, h.mail.count(), "no new code while locked")

	h.mr.FastForward(16 * time.Minute)
	_, err = svc.RequestReset(ctx, "ivan@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyCode(ctx, "ivan@example.com", activationCode(t, h.mail.last(t))))
	require.NoError(t, svc.ResetPassword(ctx, nil, "ivan@example.com", "newsecret"))

	g, err := svc.Login(ctx, "ivan@example.com", "newsecret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, g.User.ID)
}
