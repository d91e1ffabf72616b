package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"authgate/internal/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const activationTokenType = "activation"

var errInvalidActivationToken = errors.New("invalid activation token")

// ActivationTokens signs account activation links. A token is bound to the
// user's current state, so it stops verifying once the account is activated.
type ActivationTokens struct {
	Secret []byte
	TTL    time.Duration
	Clock  Clock
}

type activationClaims struct {
	Type        string `json:"typ"`
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

func (a ActivationTokens) MakeToken(user *entity.User) (string, error) {
	now := a.now()
	claims := activationClaims{
		Type:        activationTokenType,
		Fingerprint: a.fingerprint(user),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl())),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

func (a ActivationTokens) CheckToken(user *entity.User, token string) bool {
	if user == nil || strings.TrimSpace(token) == "" {
		return false
	}
	claims, err := a.parse(token)
	if err != nil {
		return false
	}
	if claims.Type != activationTokenType || claims.Subject != user.ID.String() {
		return false
	}
	return hmac.Equal([]byte(claims.Fingerprint), []byte(a.fingerprint(user)))
}

func (a ActivationTokens) parse(token string) (*activationClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &activationClaims{}, func(token *jwt.Token) (any, error) {
		return a.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errInvalidActivationToken
	}
	claims, ok := parsed.Claims.(*activationClaims)
	if !ok || !parsed.Valid {
		return nil, errInvalidActivationToken
	}
	return claims, nil
}

// fingerprint covers the fields that activation or a password change
// modifies.
func (a ActivationTokens) fingerprint(user *entity.User) string {
	mac := hmac.New(sha256.New, a.Secret)
	mac.Write([]byte(user.ID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatBool(user.IsActive)))
	mac.Write([]byte{0})
	mac.Write([]byte(user.PasswordHash))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(user.DateJoined.Unix(), 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (a ActivationTokens) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

func (a ActivationTokens) ttl() time.Duration {
	if a.TTL > 0 {
		return a.TTL
	}
	return 72 * time.Hour
}

// EncodeUserID renders a user id for use in an activation URL.
func EncodeUserID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUserID reverses EncodeUserID. Malformed input yields ErrInvalidUserRef.
func DecodeUserID(encoded string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return uuid.Nil, ErrInvalidUserRef
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, ErrInvalidUserRef
	}
	return id, nil
}
