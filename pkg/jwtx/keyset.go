package jwtx

import (
	"context"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds public verification keys in memory. It is safe for
// concurrent use.
type KeySet struct {
	mu  sync.RWMutex
	jks JWKS
	pub map[string]any // kid: *rsa.PublicKey | ed25519.PublicKey | etc.
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		pub: make(map[string]any),
	}
}

// AddJWK adds a JWK to the KeySet and parses it into a usable crypto key.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := j.PublicKey()
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[j.Kid] = key
	k.jks.Keys = append(k.jks.Keys, j)
	return nil
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// Key implements KeySource. An empty kid resolves only when the set holds
// exactly one key.
func (k *KeySet) Key(_ context.Context, kid string) (any, error) {
	if kid != "" {
		return k.Get(kid)
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.pub) == 1 {
		for _, pk := range k.pub {
			return pk, nil
		}
	}
	return nil, ErrNoKey
}

// JWKS returns a snapshot of the keys as loaded.
func (k *KeySet) JWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.jks
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// ResetFromJWKS replaces all keys from a JWKS. Encryption keys are skipped.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	newMap := make(map[string]any, len(jwks.Keys))
	kept := JWKS{Keys: make([]JWK, 0, len(jwks.Keys))}
	for _, j := range jwks.Keys {
		if j.Use == "enc" {
			continue
		}
		key, err := j.PublicKey()
		if err != nil {
			return err
		}
		newMap[j.Kid] = key
		kept.Keys = append(kept.Keys, j)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.pub = newMap
	k.jks = kept

	return nil
}
