package cryptoutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// KalshiSigner signs requests with RSA-PSS(SHA-256, MGF1(SHA-256), salt
// length = digest length), matching the Kalshi-like venue's auth scheme.
// There is no third-party RSA-PSS helper anywhere in the retrieved pack
// (see DESIGN.md); this is built directly on crypto/rsa.
type KalshiSigner struct {
	keyID      string
	privateKey *rsa.PrivateKey
}

// NewKalshiSigner parses a PEM-encoded PKCS#1 or PKCS#8 RSA private key.
func NewKalshiSigner(keyID string, pemBytes []byte) (*KalshiSigner, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("cryptoutil: no PEM block found in private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &KalshiSigner{keyID: keyID, privateKey: key}, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("cryptoutil: private key is not RSA")
	}
	return &KalshiSigner{keyID: keyID, privateKey: key}, nil
}

// Headers produces the KALSHI-ACCESS-* header set for a signed request.
// message = timestamp_ms || method || path_without_query.
func (s *KalshiSigner) Headers(method, pathWithoutQuery string) (map[string]string, error) {
	timestampMs := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig, err := s.sign(timestampMs + method + pathWithoutQuery)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.keyID,
		"KALSHI-ACCESS-TIMESTAMP": timestampMs,
		"KALSHI-ACCESS-SIGNATURE": sig,
	}, nil
}

func (s *KalshiSigner) sign(message string) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPSS(rand.Reader, s.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
