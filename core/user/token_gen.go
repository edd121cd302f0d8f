package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

const resetTokenAudience = "password_reset"

var (
	salt    = []byte("swanstudios.core.user.token_gen")
	NowFunc = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// TokenGenerator makes & verifies password reset tokens.
// Tokens are HS256 JWTs carrying a fingerprint of the user's password hash & last login,
// so a token stops working once the password is changed or the user logs in.
type TokenGenerator struct {
	key     []byte
	timeout time.Duration
	parser  *jwt.Parser
}

type resetClaims struct {
	Fingerprint string `json:"fpt"`
	jwt.StandardClaims
}

func NewTokenGenerator(secretKey string, timeout time.Duration) *TokenGenerator {
	key := sha256.Sum256(append(append([]byte{}, salt...), secretKey...))
	return &TokenGenerator{
		key:     key[:],
		timeout: timeout,
		// expiry is checked against NowFunc instead
		parser: &jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true},
	}
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakeToken generates a password reset token for a given User.
func (gen *TokenGenerator) MakeToken(usr User) (string, error) {
	now := NowFunc().UTC()
	claims := resetClaims{
		Fingerprint: gen.fingerprint(usr),
		StandardClaims: jwt.StandardClaims{
			Subject:   usr.ID,
			Audience:  resetTokenAudience,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(gen.timeout).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(gen.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return token, nil
}

// verifyToken checks that a password reset token for a given User is valid.
func (gen *TokenGenerator) verifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	var claims resetClaims
	_, err := gen.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return gen.key, nil
	})
	if err != nil {
		return errInvalidToken
	}
	if claims.Subject != usr.ID || claims.Audience != resetTokenAudience {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(claims.Fingerprint), []byte(gen.fingerprint(usr))) {
		return errInvalidToken
	}

	if NowFunc().Unix() > claims.ExpiresAt {
		return errTokenExpired
	}
	return nil
}

func (gen *TokenGenerator) fingerprint(usr User) string {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.UTC().Truncate(time.Second).Format(time.RFC3339))
	}

	h := hmac.New(sha256.New, gen.key)
	h.Write(val.Bytes())
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
