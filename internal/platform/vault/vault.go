// Package vault encrypts raw handover segments at rest with a per
// session AES-256-GCM key. Deleting the key is the deletion mechanism:
// after a crypto-shred or TTL expiry the ciphertext is permanently
// unrecoverable. Every operation fails closed; storage and crypto
// errors surface as false/nil, never as a panic or a plaintext write.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/handover/handover/internal/domain/normalize"
)

const (
	keySize = 32
	ivSize  = 12
)

// Record is one ciphertext record at rest. Opaque without the session's
// live key.
type Record struct {
	SessionID  string `json:"sessionId"`
	CreatedAt  int64  `json:"createdAt"`
	ExpiresAt  int64  `json:"expiresAt"`
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}

type rawPayload struct {
	Segments []normalize.RawSegment `json:"segments"`
}

// Vault holds per-session keys in memory and mirrors them into an
// optional secure keystore. One logical writer per session is assumed;
// concurrent saves for the same session are not ordered here and the
// caller must serialize them.
type Vault struct {
	root     string
	scope    string
	storage  Storage
	keystore SecureKeyStore
	now      func() time.Time
	logger   zerolog.Logger

	mu   sync.Mutex
	keys map[string][]byte
}

// Option configures a Vault.
type Option func(*Vault)

// WithKeyStore attaches a secure keystore so session keys survive a
// process restart.
func WithKeyStore(ks SecureKeyStore) Option {
	return func(v *Vault) { v.keystore = ks }
}

// WithClock overrides the time source. Used by TTL tests.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// New creates a Vault writing under "<root>:<scope>:".
func New(root, scope string, storage Storage, logger zerolog.Logger, opts ...Option) *Vault {
	v := &Vault{
		root:    root,
		scope:   scope,
		storage: storage,
		now:     time.Now,
		logger:  logger.With().Str("component", "vault").Logger(),
		keys:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vault) rawKey(sessionID string) string {
	return v.root + ":" + v.scope + ":raw:" + sessionID
}

func (v *Vault) resultKey(sessionID string) string {
	return v.root + ":" + v.scope + ":result:" + sessionID
}

func (v *Vault) indexKey() string {
	return v.root + ":" + v.scope + ":raw:index"
}

func (v *Vault) keyName(sessionID string) string {
	return v.root + ":" + v.scope + ":key:" + sessionID
}

// SaveRawSegments encrypts the segments under the session's key with a
// fresh random IV and stores the record with the given TTL. Returns
// false on any storage or crypto failure; nothing is ever stored in
// plaintext.
func (v *Vault) SaveRawSegments(ctx context.Context, sessionID string, segments []normalize.RawSegment, ttl time.Duration) bool {
	plaintext, err := json.Marshal(rawPayload{Segments: segments})
	if err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("marshal segments")
		return false
	}
	return v.saveRecord(ctx, v.rawKey(sessionID), sessionID, plaintext, ttl, true)
}

// LoadRawSegments decrypts and returns the session's raw segments, or
// nil when the record is missing, expired, corrupted, or the key is
// gone. It never returns partial plaintext.
func (v *Vault) LoadRawSegments(ctx context.Context, sessionID string) []normalize.RawSegment {
	plaintext := v.loadRecord(ctx, v.rawKey(sessionID), sessionID)
	if plaintext == nil {
		return nil
	}
	var payload rawPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("unmarshal segments")
		return nil
	}
	return payload.Segments
}

// SaveStructuredResult encrypts an already-sanitized structured payload
// under the same session key with its own TTL. Callers must check the
// payload's persistAllowed gate before calling.
func (v *Vault) SaveStructuredResult(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) bool {
	return v.saveRecord(ctx, v.resultKey(sessionID), sessionID, payload, ttl, false)
}

// LoadStructuredResult decrypts the stored structured payload, nil on
// any failure.
func (v *Vault) LoadStructuredResult(ctx context.Context, sessionID string) []byte {
	return v.loadRecord(ctx, v.resultKey(sessionID), sessionID)
}

// CryptoShredSession deletes the session's ciphertext records and
// destroys the key in memory and in the keystore. After this, even full
// storage access cannot recover the plaintext. Errors are logged and
// swallowed; shredding never fails outward.
func (v *Vault) CryptoShredSession(ctx context.Context, sessionID string) {
	if err := v.storage.Delete(ctx, v.rawKey(sessionID)); err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("delete raw record")
	}
	if err := v.storage.Delete(ctx, v.resultKey(sessionID)); err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("delete result record")
	}
	v.removeFromIndex(ctx, sessionID)
	v.forgetKey(ctx, sessionID)
}

// PurgeExpired removes every record whose TTL has passed, together with
// its key, and returns how many sessions were purged. Safe to call
// repeatedly: a second call right after the first returns 0.
func (v *Vault) PurgeExpired(ctx context.Context) int {
	ids := v.readIndex(ctx)
	if len(ids) == 0 {
		return 0
	}
	now := v.now().UnixMilli()
	purged := 0
	var kept []string
	for _, id := range ids {
		rec, ok := v.readRecord(ctx, v.rawKey(id))
		if ok && rec.ExpiresAt > now {
			kept = append(kept, id)
			continue
		}
		if err := v.storage.Delete(ctx, v.rawKey(id)); err != nil {
			v.logger.Error().Err(err).Str("session_id", id).Msg("purge raw record")
		}
		if err := v.storage.Delete(ctx, v.resultKey(id)); err != nil {
			v.logger.Error().Err(err).Str("session_id", id).Msg("purge result record")
		}
		v.forgetKey(ctx, id)
		if ok {
			purged++
		}
	}
	v.writeIndex(ctx, kept)
	return purged
}

// -- record plumbing --

func (v *Vault) saveRecord(ctx context.Context, storageKey, sessionID string, plaintext []byte, ttl time.Duration, indexed bool) bool {
	aead, ok := v.sessionAEAD(ctx, sessionID, true)
	if !ok {
		return false
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("generate iv")
		return false
	}

	now := v.now()
	rec := Record{
		SessionID:  sessionID,
		CreatedAt:  now.UnixMilli(),
		ExpiresAt:  now.Add(ttl).UnixMilli(),
		IV:         iv,
		Ciphertext: aead.Seal(nil, iv, plaintext, nil),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("marshal record")
		return false
	}
	if err := v.storage.Set(ctx, storageKey, data); err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("store record")
		return false
	}
	if indexed {
		v.addToIndex(ctx, sessionID)
	}
	return true
}

func (v *Vault) loadRecord(ctx context.Context, storageKey, sessionID string) []byte {
	rec, ok := v.readRecord(ctx, storageKey)
	if !ok {
		return nil
	}
	if rec.ExpiresAt <= v.now().UnixMilli() {
		return nil
	}
	aead, ok := v.sessionAEAD(ctx, sessionID, false)
	if !ok {
		return nil
	}
	if len(rec.IV) != ivSize {
		return nil
	}
	plaintext, err := aead.Open(nil, rec.IV, rec.Ciphertext, nil)
	if err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("decrypt record")
		return nil
	}
	return plaintext
}

func (v *Vault) readRecord(ctx context.Context, storageKey string) (Record, bool) {
	data, found, err := v.storage.Get(ctx, storageKey)
	if err != nil || !found {
		if err != nil {
			v.logger.Error().Err(err).Msg("read record")
		}
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		v.logger.Error().Err(err).Msg("corrupt record")
		return Record{}, false
	}
	return rec, true
}

// -- key lifecycle --

// sessionAEAD returns the AEAD for the session key, generating and
// exporting a new key when create is set, or re-importing from the
// keystore after a restart.
func (v *Vault) sessionAEAD(ctx context.Context, sessionID string, create bool) (cipher.AEAD, bool) {
	v.mu.Lock()
	key, ok := v.keys[sessionID]
	v.mu.Unlock()

	if !ok && v.keystore != nil {
		stored, found, err := v.keystore.GetKey(ctx, v.keyName(sessionID))
		if err != nil {
			v.logger.Error().Err(err).Str("session_id", sessionID).Msg("keystore read")
		} else if found && len(stored) == keySize {
			key = stored
			ok = true
			v.mu.Lock()
			v.keys[sessionID] = stored
			v.mu.Unlock()
		}
	}

	if !ok {
		if !create {
			return nil, false
		}
		fresh := make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, fresh); err != nil {
			v.logger.Error().Err(err).Str("session_id", sessionID).Msg("generate key")
			return nil, false
		}
		key = fresh
		v.mu.Lock()
		v.keys[sessionID] = fresh
		v.mu.Unlock()
		if v.keystore != nil {
			// Best effort: without a keystore the key lives only for
			// the process lifetime, which is equivalent to shredding.
			if err := v.keystore.SetKey(ctx, v.keyName(sessionID), fresh); err != nil {
				v.logger.Warn().Err(err).Str("session_id", sessionID).Msg("keystore export failed, key is process-local")
			}
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("create cipher")
		return nil, false
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		v.logger.Error().Err(err).Str("session_id", sessionID).Msg("create gcm")
		return nil, false
	}
	return aead, true
}

func (v *Vault) forgetKey(ctx context.Context, sessionID string) {
	v.mu.Lock()
	delete(v.keys, sessionID)
	v.mu.Unlock()
	if v.keystore != nil {
		if err := v.keystore.DeleteKey(ctx, v.keyName(sessionID)); err != nil {
			v.logger.Error().Err(err).Str("session_id", sessionID).Msg("keystore delete")
		}
	}
}

// -- session index --
//
// The index is a read-modify-write JSON list without a transaction.
// Under truly concurrent writers from separate processes an entry could
// be lost; that is a known, accepted limitation of this local store.

func (v *Vault) readIndex(ctx context.Context) []string {
	data, found, err := v.storage.Get(ctx, v.indexKey())
	if err != nil || !found {
		if err != nil {
			v.logger.Error().Err(err).Msg("read index")
		}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		v.logger.Error().Err(err).Msg("corrupt index")
		return nil
	}
	return ids
}

func (v *Vault) writeIndex(ctx context.Context, ids []string) {
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := v.storage.Set(ctx, v.indexKey(), data); err != nil {
		v.logger.Error().Err(err).Msg("write index")
	}
}

func (v *Vault) addToIndex(ctx context.Context, sessionID string) {
	ids := v.readIndex(ctx)
	for _, id := range ids {
		if id == sessionID {
			return
		}
	}
	v.writeIndex(ctx, append(ids, sessionID))
}

func (v *Vault) removeFromIndex(ctx context.Context, sessionID string) {
	ids := v.readIndex(ctx)
	kept := ids[:0]
	for _, id := range ids {
		if id != sessionID {
			kept = append(kept, id)
		}
	}
	v.writeIndex(ctx, kept)
}
