package tokens

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

type AccessClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// PendingUser is the registration payload carried inside an activation
// ticket. Password holds a bcrypt hash, never the plaintext, and the whole
// payload travels encrypted.
type PendingUser struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// ActivationClaims is the decoded ticket. On the wire only Sealed and the
// registered claims are visible; User and ActivationCode live inside Sealed.
type ActivationClaims struct {
	User           PendingUser `json:"-"`
	ActivationCode string      `json:"-"`
	Sealed         string      `json:"data"`
	jwt.RegisteredClaims
}

type activationPayload struct {
	User           PendingUser `json:"user"`
	ActivationCode string      `json:"activationCode"`
}

type Ticket struct {
	Token string
	Code  string
}

type Service struct {
	AccessSecret     []byte
	RefreshSecret    []byte
	ActivationSecret []byte

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ActivationTTL time.Duration

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) IssueAccessToken(userID string) (string, time.Time, error) {
	exp := s.now().Add(s.AccessTTL)
	claims := AccessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := sign(claims, s.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Service) IssueRefreshToken(userID string) (string, time.Time, error) {
	exp := s.now().Add(s.RefreshTTL)
	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := sign(claims, s.RefreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Service) VerifyAccessToken(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parse(token, &claims, s.AccessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

func (s *Service) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parse(token, &claims, s.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

func (s *Service) IssueActivation(user PendingUser) (Ticket, error) {
	code, err := NewActivationCode()
	if err != nil {
		return Ticket{}, err
	}
	sealed, err := seal(activationPayload{User: user, ActivationCode: code}, s.ActivationSecret)
	if err != nil {
		return Ticket{}, fmt.Errorf("seal activation: %w", err)
	}
	claims := ActivationClaims{
		Sealed: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.ActivationTTL)),
		},
	}
	token, err := sign(claims, s.ActivationSecret)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{Token: token, Code: code}, nil
}

func (s *Service) VerifyActivation(token string) (*ActivationClaims, error) {
	var claims ActivationClaims
	if err := parse(token, &claims, s.ActivationSecret); err != nil {
		return nil, err
	}
	var payload activationPayload
	if err := unseal(claims.Sealed, s.ActivationSecret, &payload); err != nil {
		return nil, ErrTokenInvalid
	}
	claims.User = payload.User
	claims.ActivationCode = payload.ActivationCode
	return &claims, nil
}

// NewActivationCode returns a uniformly random code in [1000, 9999].
func NewActivationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("activation code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parse checks the signature before expiry, so a tampered token is always
// ErrTokenInvalid even when it is also expired.
func parse(token string, claims jwt.Claims, secret []byte) error {
	if token == "" {
		return ErrTokenInvalid
	}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !tkn.Valid {
		return ErrTokenInvalid
	}
	return nil
}
