package auth

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"storefront-bff/internal/storage"
)

// VaultKey is where the sealed token lives in the store.
const VaultKey = "auth_token"

const vaultFormatVersion = 1

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted token")

// sealed is the stored JSON envelope.
type sealed struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// Vault keeps a saved auth token encrypted under a passphrase.
type Vault struct {
	kv      storage.KV
	n, r, p int
}

func NewVault(kv storage.KV) *Vault {
	return &Vault{kv: kv, n: 1 << 15, r: 8, p: 1}
}

func (v *Vault) Save(ctx context.Context, passphrase, token string) error {
	if passphrase == "" {
		return errors.New("passphrase required")
	}
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return err
	}
	aead, err := v.aead(passphrase, salt[:], v.n, v.r, v.p)
	if err != nil {
		return err
	}
	// Zero nonce is fine: every seal derives a fresh key from a fresh salt.
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], []byte(token), salt[:])

	b, err := json.Marshal(sealed{V: vaultFormatVersion, Salt: salt[:], N: v.n, R: v.r, P: v.p, Cipher: ct})
	if err != nil {
		return err
	}
	return v.kv.Set(ctx, VaultKey, b, 0)
}

// Load returns the saved token. storage.ErrNotFound means nothing is saved.
func (v *Vault) Load(ctx context.Context, passphrase string) (string, error) {
	b, err := v.kv.Get(ctx, VaultKey)
	if err != nil {
		return "", err
	}
	var s sealed
	if err := json.Unmarshal(b, &s); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
	}
	if s.V > vaultFormatVersion {
		return "", fmt.Errorf("unsupported token format version %d", s.V)
	}
	aead, err := v.aead(passphrase, s.Salt, s.N, s.R, s.P)
	if err != nil {
		return "", err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], s.Cipher, s.Salt)
	if err != nil {
		return "", ErrWrongPassphrase
	}
	return string(pt), nil
}

func (v *Vault) Forget(ctx context.Context) error {
	return v.kv.Delete(ctx, VaultKey)
}

func (v *Vault) aead(passphrase string, salt []byte, n, r, p int) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, n, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.New(key)
}
