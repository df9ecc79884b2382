package qstash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidSignature = errors.New("invalid qstash signature")

type signatureClaims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
	NotBefore int64  `json:"nbf"`
	Body      string `json:"body"`
}

// Verify checks the Upstash-Signature JWT of a delivery against the current
// signing key, then the next one. destination is the URL QStash delivered to;
// empty skips the subject check.
func (c *Client) Verify(signature string, body []byte, destination string) error {
	var errs []error
	for _, key := range []string{c.currentSigningKey, c.nextSigningKey} {
		if key == "" {
			continue
		}
		err := verifyWithKey(signature, key, body, destination, c.now())
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func verifyWithKey(token, key string, body []byte, destination string, now time.Time) error {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: malformed token", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(parts[0] + "." + parts[1]))
	want := mac.Sum(nil)
	got, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(got, want) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}

	rawClaims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: decode claims: %v", ErrInvalidSignature, err)
	}
	var claims signatureClaims
	if err := json.Unmarshal(rawClaims, &claims); err != nil {
		return fmt.Errorf("%w: decode claims: %v", ErrInvalidSignature, err)
	}

	if claims.Issuer != "Upstash" {
		return fmt.Errorf("%w: issuer=%q", ErrInvalidSignature, claims.Issuer)
	}
	if destination != "" && claims.Subject != destination {
		return fmt.Errorf("%w: subject=%q", ErrInvalidSignature, claims.Subject)
	}
	if claims.ExpiresAt != 0 && now.Unix() > claims.ExpiresAt {
		return fmt.Errorf("%w: token expired", ErrInvalidSignature)
	}
	if claims.NotBefore != 0 && now.Unix() < claims.NotBefore {
		return fmt.Errorf("%w: token not yet valid", ErrInvalidSignature)
	}

	sum := sha256.Sum256(body)
	if strings.TrimRight(claims.Body, "=") != base64.RawURLEncoding.EncodeToString(sum[:]) {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidSignature)
	}
	return nil
}
