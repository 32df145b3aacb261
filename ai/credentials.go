// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"context"
	"fmt"
	"sync"
)

// Credential identifies one API key for the generation service.
type Credential struct {
	// Name is safe to log; Token is not.
	Name  string
	Token string
}

// CredentialProvider supplies credentials to the generation client and decides
// what to use next when the current one runs out of quota.
type CredentialProvider interface {
	// Current returns the credential to use now.
	Current(ctx context.Context) (Credential, error)

	// Rotate marks exhausted as spent and returns the next credential to try.
	// Returns ErrCredentialsExhausted when nothing is left.
	Rotate(ctx context.Context, exhausted Credential) (Credential, error)
}

// KeyRing rotates through a fixed list of credentials in order, never
// returning one that has been marked exhausted.
type KeyRing struct {
	mu        sync.Mutex
	keys      []Credential
	current   int
	exhausted map[string]bool
}

var _ CredentialProvider = (*KeyRing)(nil)

// NewKeyRing creates a key ring from raw tokens. Tokens are named key-1, key-2, ...
func NewKeyRing(tokens ...string) *KeyRing {
	keys := make([]Credential, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		keys = append(keys, Credential{Name: fmt.Sprintf("key-%d", len(keys)+1), Token: token})
	}
	return &KeyRing{
		keys:      keys,
		exhausted: make(map[string]bool),
	}
}

// Len returns the number of credentials in the ring.
func (k *KeyRing) Len() int {
	return len(k.keys)
}

// Current returns the active credential.
func (k *KeyRing) Current(ctx context.Context) (Credential, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.keys) == 0 || len(k.exhausted) == len(k.keys) {
		return Credential{}, ErrCredentialsExhausted
	}
	return k.keys[k.current], nil
}

// Rotate marks exhausted as spent and advances to the next unspent credential.
func (k *KeyRing) Rotate(ctx context.Context, exhausted Credential) (Credential, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.exhausted[exhausted.Name] = true
	for i := 1; i <= len(k.keys); i++ {
		next := (k.current + i) % len(k.keys)
		if !k.exhausted[k.keys[next].Name] {
			k.current = next
			return k.keys[next], nil
		}
	}
	return Credential{}, ErrCredentialsExhausted
}
