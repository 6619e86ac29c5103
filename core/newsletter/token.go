package newsletter

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	salt = []byte("clubhouse.core.newsletter.unsubscribe")

	// errors
	errInvalidToken = errors.New("invalid unsubscribe token")
)

// UnsubscribeToken returns the token of an unsubscribe link: the encoded address and its signature.
// Unsubscribe links do not expire.
func UnsubscribeToken(secretKey, email string) string {
	uid := base64.RawURLEncoding.EncodeToString([]byte(normalizeEmail(email)))
	return fmt.Sprintf("%s.%s", uid, sign(secretKey, uid))
}

// parseToken checks the signature of token and returns the address it was issued for.
func parseToken(secretKey, token string) (string, error) {
	idx := strings.IndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return "", errInvalidToken
	}
	uid, sig := token[:idx], token[idx+1:]

	if subtle.ConstantTimeCompare([]byte(sign(secretKey, uid)), []byte(sig)) == 0 {
		return "", errInvalidToken
	}
	email, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", errInvalidToken
	}
	return string(email), nil
}

func sign(secretKey, val string) string {
	key := sha256.Sum256(append(salt, secretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(val))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
