package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenMalformed = errors.New("invalid download token")
	ErrTokenSignature = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
)

// DownloadGrant is the payload carried by a signed download token.
type DownloadGrant struct {
	OwnerID   string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues and verifies HMAC-signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token granting access to path on behalf of ownerID.
func (s *SignedURLSigner) Sign(ownerID, path string) (string, time.Time, error) {
	if ownerID == "" || path == "" {
		return "", time.Time{}, fmt.Errorf("owner and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	owner := base64.RawURLEncoding.EncodeToString([]byte(ownerID))
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(path))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{owner, exp, encodedPath, s.mac(owner, exp, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Verify checks the token signature and expiry and returns its grant.
func (s *SignedURLSigner) Verify(token string) (DownloadGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return DownloadGrant{}, ErrTokenMalformed
	}
	owner, exp, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(owner, exp, encodedPath)), []byte(signature)) {
		return DownloadGrant{}, ErrTokenSignature
	}

	ownerID, err := base64.RawURLEncoding.DecodeString(owner)
	if err != nil {
		return DownloadGrant{}, ErrTokenMalformed
	}
	path, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return DownloadGrant{}, ErrTokenMalformed
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return DownloadGrant{}, ErrTokenMalformed
	}

	grant := DownloadGrant{OwnerID: string(ownerID), Path: string(path), ExpiresAt: time.Unix(expUnix, 0).UTC()}
	if s.now().After(grant.ExpiresAt) {
		return DownloadGrant{}, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) mac(parts ...string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}
