package queue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	signatureIssuer = "postflow-queue"
	signatureTTL    = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("queue: invalid delivery signature")

type deliveryClaims struct {
	BodyHash string `json:"body"`
	jwt.RegisteredClaims
}

// Signer signs deliveries so the callback can prove they came from the queue
// and that the body was not altered.
type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key), now: time.Now}
}

func (s *Signer) Sign(destination, messageID string, body []byte) (string, error) {
	now := s.now()
	claims := deliveryClaims{
		BodyHash: bodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    signatureIssuer,
			Subject:   destination,
			ID:        messageID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(signatureTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("queue: sign delivery: %w", err)
	}
	return signed, nil
}

func (s *Signer) Verify(signature string, body []byte) error {
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	var claims deliveryClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signatureIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !hmac.Equal([]byte(claims.BodyHash), []byte(bodyHash(body))) {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidSignature)
	}
	return nil
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
