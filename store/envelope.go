package store

import (
	"crypto/rand"
	"encoding/json"
	"strings"

	"github.com/stellar/go/support/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	keySize         = chacha20poly1305.KeySize
	sealedPrefix    = "HWENC1:"
)

var (
	// ErrAuthFailed is returned when the passphrase does not open the envelope
	ErrAuthFailed = errors.New("credential store authentication failed")
	// ErrInvalidEnvelope is returned for malformed sealed values
	ErrInvalidEnvelope = errors.New("credential store envelope is invalid")
	// ErrPassphraseRequired is returned when a sealed value is read without a passphrase
	ErrPassphraseRequired = errors.New("stored private key is encrypted; passphrase required")
)

type envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func seal(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	env := envelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     2,
		KDFMemoryKB: 64 * 1024,
		KDFThreads:  1,
		Salt:        salt,
	}
	key := deriveKey(passphrase, env)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	env.Nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, err
	}
	env.Ciphertext = aead.Seal(nil, env.Nonce, plaintext, nil)

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(sealedPrefix), raw...), nil
}

func isSealed(data []byte) bool {
	return strings.HasPrefix(string(data), sealedPrefix)
}

func unseal(passphrase string, data []byte) ([]byte, error) {
	if !isSealed(data) {
		return nil, ErrInvalidEnvelope
	}
	var env envelope
	if err := json.Unmarshal(data[len(sealedPrefix):], &env); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if env.Version != envelopeVersion || env.KDF != "argon2id" || len(env.Salt) != saltSize || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalidEnvelope
	}
	key := deriveKey(passphrase, env)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase string, env envelope) []byte {
	return argon2.IDKey([]byte(passphrase), env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, keySize)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
