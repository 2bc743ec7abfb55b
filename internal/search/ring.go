package search

import (
	"sync"

	"newsmatch/internal/config"
)

// CredentialRing hands out the active credential. Rotation is process-wide:
// once rotated, every later call by any worker uses the new credential.
type CredentialRing struct {
	mu    sync.Mutex
	creds []config.Credential
	index int
	turns int
}

// NewCredentialRing keeps credentials in their configured order.
func NewCredentialRing(creds []config.Credential) *CredentialRing {
	return &CredentialRing{creds: append([]config.Credential(nil), creds...)}
}

// Len reports how many credentials the ring holds.
func (r *CredentialRing) Len() int {
	return len(r.creds)
}

// Current returns the active credential and a token identifying this
// rotation, to be passed back to Rotate.
func (r *CredentialRing) Current() (config.Credential, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.creds) == 0 {
		return config.Credential{}, r.turns
	}
	return r.creds[r.index], r.turns
}

// Rotate advances to the next credential unless another caller already
// rotated away from the one identified by seen.
func (r *CredentialRing) Rotate(seen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.creds) < 2 || seen != r.turns {
		return
	}
	r.index = (r.index + 1) % len(r.creds)
	r.turns++
}
