package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose values carried inside capability tokens.
const (
	PurposeDownload = "download"
	PurposeUpload   = "upload"
)

var signingSecret = []byte("studio-signing-secret-change-in-production")

// SetSigningSecret sets the secret used to sign pre-signed URL tokens.
func SetSigningSecret(secret string) {
	if secret != "" {
		signingSecret = []byte(secret)
	}
}

// ObjectClaims are the claims embedded in a pre-signed URL token. The token
// is the capability: whoever holds it may access the object until expiry,
// without further authentication.
type ObjectClaims struct {
	ObjectID string `json:"object_id"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// GenerateObjectToken creates a signed, expiring token granting access to a
// storage object.
func GenerateObjectToken(objectID, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ObjectClaims{
		ObjectID: objectID,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingSecret)
}

// ParseObjectToken validates a pre-signed URL token and returns its claims.
// Expired or tampered tokens return an error.
func ParseObjectToken(tokenString string) (*ObjectClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ObjectClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return signingSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ObjectClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
