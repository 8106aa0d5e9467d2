// Package cryptoutil implements the two venue signing schemes spec.md §4.2
// requires: ECDSA-derived HMAC for the Polymarket-like venue and RSA-PSS for
// the Kalshi-like venue. The Polymarket half is grounded on
// 0xtitan6-polymarket-mm's internal/exchange/auth.go (same go-ethereum
// crypto subpackage, same HMAC message layout); the Kalshi half has no
// analog anywhere in the retrieved pack and is built directly on
// crypto/rsa, justified in DESIGN.md.
package cryptoutil

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureType selects which on-chain balance is considered available.
type SignatureType int

const (
	SigEOA    SignatureType = 0
	SigProxy  SignatureType = 1
	SigGnosis SignatureType = 2
)

// L2Credentials is the derived API key tuple used for HMAC-signed trading
// requests.
type L2Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// PolymarketSigner derives an address from an EOA private key and signs
// requests with the L2 HMAC scheme.
type PolymarketSigner struct {
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	chainID       int64
	sigType       SignatureType
	creds         L2Credentials
}

// NewPolymarketSigner parses a hex-encoded private key (with or without a
// 0x prefix) and derives the signer's address.
func NewPolymarketSigner(privateKeyHex, funderAddress string, chainID int64, sigType SignatureType, creds L2Credentials) (*PolymarketSigner, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	funder := address
	if funderAddress != "" {
		funder = common.HexToAddress(funderAddress)
	}

	return &PolymarketSigner{
		privateKey:    privateKey,
		address:       address,
		funderAddress: funder,
		chainID:       chainID,
		sigType:       sigType,
		creds:         creds,
	}, nil
}

// Address returns the signer's Ethereum address.
func (s *PolymarketSigner) Address() string { return s.address.Hex() }

// FunderAddress returns the funder/proxy wallet address considered for
// available balance under the configured SignatureType.
func (s *PolymarketSigner) FunderAddress() string { return s.funderAddress.Hex() }

// Headers produces the POLY-* header set for a signed request: message =
// timestamp || method || path || body, HMAC-SHA256 under the derived
// secret, base64-URL encoded.
func (s *PolymarketSigner) Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := s.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}
	return map[string]string{
		"POLY-ADDRESS":    s.address.Hex(),
		"POLY-API-KEY":    s.creds.APIKey,
		"POLY-PASSPHRASE": s.creds.Passphrase,
		"POLY-TIMESTAMP":  timestamp,
		"POLY-SIGNATURE":  sig,
	}, nil
}

func (s *PolymarketSigner) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(s.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
