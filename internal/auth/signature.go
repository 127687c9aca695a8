package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Request headers carrying the caller's signature.
const (
	HeaderAddress   = "X-Address"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

// MaxNonceLength bounds the X-Nonce header.
const MaxNonceLength = 64

// ErrInvalidSignature is returned when a signature does not recover.
var ErrInvalidSignature = errors.New("invalid signature")

// Payload is the text a caller signs for a request. The nonce lets a caller
// send the same write twice within one second.
func Payload(method, path string, timestamp int64, nonce string, body []byte) string {
	return method + "\n" + path + "\n" + strconv.FormatInt(timestamp, 10) + "\n" + nonce + "\n" + crypto.Keccak256Hash(body).Hex()
}

// ValidNonce reports whether nonce can be signed unambiguously.
func ValidNonce(nonce string) bool {
	if nonce == "" || len(nonce) > MaxNonceLength {
		return false
	}
	for i := 0; i < len(nonce); i++ {
		if nonce[i] <= ' ' || nonce[i] > '~' {
			return false
		}
	}
	return true
}

// Sign produces a personal_sign signature over the request payload.
func Sign(key *ecdsa.PrivateKey, method, path string, timestamp int64, nonce string, body []byte) (string, error) {
	hash := accounts.TextHash([]byte(Payload(method, path, timestamp, nonce, body)))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Recover returns the address that produced sig over the request payload.
func Recover(method, path string, timestamp int64, nonce string, body []byte, sig string) (common.Address, error) {
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(raw))
	}
	if raw[crypto.RecoveryIDOffset] >= 27 {
		raw[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(Payload(method, path, timestamp, nonce, body)))
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
