package main

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== session store =====

const (
	// Idle sessions older than this are evicted by the sweeper. Fixed by
	// observed behavior; deliberately not configurable.
	sessionTTL    = 7 * 24 * time.Hour
	sweepInterval = 5 * time.Minute

	// Every backend call, probe included, carries this timeout.
	backendTimeout = 30 * time.Second
)

// sessionKey is the structured cache key derived from a tenant credential.
// Using a struct (not string concatenation) keeps tokens and URLs containing
// arbitrary separators collision-free.
type sessionKey struct {
	token    string
	endpoint string
}

// sessionRecord is a probe-validated GitLab client cached for one credential.
// Owned exclusively by the sessionStore; lastUsed is refreshed on every use.
type sessionRecord struct {
	key       sessionKey
	client    *gitlab.Client
	username  string
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanos, monotonically non-decreasing
}

func (r *sessionRecord) touch(now time.Time) {
	n := now.UnixNano()
	for {
		cur := r.lastUsed.Load()
		if cur >= n {
			return
		}
		if r.lastUsed.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (r *sessionRecord) lastUsedAt() time.Time {
	return time.Unix(0, r.lastUsed.Load())
}

// sessionStore caches one validated GitLab client per distinct credential.
// It is the only cross-request shared mutable state in the process: created
// at startup, owned by the server, cleared at shutdown.
type sessionStore struct {
	mu      sync.RWMutex
	entries map[sessionKey]*sessionRecord

	// now is swapped out by tests that exercise TTL behavior.
	now func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		entries: make(map[sessionKey]*sessionRecord),
		now:     time.Now,
	}
}

// getOrCreate returns the cached session for the credential, probing the
// backend once on first use. The endpoint must already be normalized. Two
// racing calls for a brand-new credential may both probe; the probes are
// idempotent and both inserts use the same key, so the map converges to a
// single record.
func (s *sessionStore) getOrCreate(ctx context.Context, cred tenantCredential) (*sessionRecord, error) {
	key := sessionKey{token: cred.Token, endpoint: cred.Endpoint}

	s.mu.RLock()
	record, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		record.touch(s.now())
		return record, nil
	}

	client, err := gitlab.NewClient(cred.Token,
		gitlab.WithBaseURL(cred.Endpoint),
		gitlab.WithHTTPClient(&http.Client{Timeout: backendTimeout}),
		gitlab.WithoutRetries(),
	)
	if err != nil {
		return nil, apiErrorf(kindMalformedEndpoint, "cannot build GitLab client for %q: %v", cred.Endpoint, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	user, resp, err := client.Users.CurrentUser(gitlab.WithContext(probeCtx))
	if err != nil {
		return nil, classifyBackendError(resp, err)
	}

	now := s.now()
	record = &sessionRecord{
		key:       key,
		client:    client,
		username:  user.Username,
		createdAt: now,
	}
	record.lastUsed.Store(now.UnixNano())

	s.mu.Lock()
	if existing, ok := s.entries[key]; ok {
		// Lost the race to a concurrent probe for the same credential.
		s.mu.Unlock()
		existing.touch(s.now())
		return existing, nil
	}
	s.entries[key] = record
	s.mu.Unlock()

	log.Printf("<sessions> created session for %s@%s", user.Username, cred.Endpoint)
	return record, nil
}

func (s *sessionStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *sessionStore) snapshotKeys() []sessionKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]sessionKey, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// clear drops every cached session. Called once at shutdown.
func (s *sessionStore) clear() {
	s.mu.Lock()
	s.entries = make(map[sessionKey]*sessionRecord)
	s.mu.Unlock()
}

// ===== session sweeper =====

// sweepOnce evicts entries idle past the TTL. It snapshots the keys first and
// re-checks idleness under the write lock before deleting, so a record
// reactivated after the snapshot survives.
func (s *sessionStore) sweepOnce() int {
	evicted := 0
	for _, key := range s.snapshotKeys() {
		s.mu.RLock()
		record, ok := s.entries[key]
		s.mu.RUnlock()
		if !ok || s.now().Sub(record.lastUsedAt()) <= sessionTTL {
			continue
		}

		s.mu.Lock()
		record, ok = s.entries[key]
		if ok && s.now().Sub(record.lastUsedAt()) > sessionTTL {
			delete(s.entries, key)
			evicted++
			log.Printf("<sessions> evicted idle session for %s@%s", record.username, key.endpoint)
		}
		s.mu.Unlock()
	}
	return evicted
}

// runSweeper evicts idle sessions on a fixed interval until ctx is canceled.
// It runs beside request handling and never blocks it.
func (s *sessionStore) runSweeper(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}
