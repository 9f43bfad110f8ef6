package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeGitLab is a minimal GitLab REST stand-in. Tokens registered via
// addToken are valid; everything else gets a 401. Probe calls are counted
// per token.
type fakeGitLab struct {
	t *testing.T

	mu         sync.Mutex
	users      map[string]string // token -> username
	probeCount map[string]int
	revoked    map[string]bool // valid at probe time, 401 afterwards on non-probe calls

	server *httptest.Server
}

func newFakeGitLab(t *testing.T) *fakeGitLab {
	f := &fakeGitLab{
		t:          t,
		users:      make(map[string]string),
		probeCount: make(map[string]int),
		revoked:    make(map[string]bool),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitLab) addToken(token, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[token] = username
}

func (f *fakeGitLab) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = true
}

func (f *fakeGitLab) probes(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCount[token]
}

func (f *fakeGitLab) handle(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("PRIVATE-TOKEN")

	f.mu.Lock()
	username, valid := f.users[token]
	revoked := f.revoked[token]
	if r.URL.Path == "/api/v4/user" {
		f.probeCount[token]++
	}
	f.mu.Unlock()

	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"401 Unauthorized"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/v4/user":
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "username": username, "name": username})
	case "/api/v4/projects/1":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 1, "name": "demo", "path_with_namespace": username + "/demo",
			"default_branch": "main",
		})
	case "/api/v4/projects/1/repository/files/README.md":
		ref := r.URL.Query().Get("ref")
		if ref == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"ref is missing"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"file_name": "README.md", "file_path": "README.md",
			"ref": ref, "size": 7,
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("# demo\n")),
		})
	case "/api/v4/projects":
		if revoked {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"401 Unauthorized"}`)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "demo", "path_with_namespace": username + "/demo", "web_url": f.server.URL + "/" + username + "/demo"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"404 Not Found"}`)
	}
}

func (f *fakeGitLab) credential(t *testing.T, token string) tenantCredential {
	endpoint, err := normalizeEndpoint(f.server.URL)
	if err != nil {
		t.Fatalf("normalize fake endpoint: %v", err)
	}
	return tenantCredential{Token: token, Endpoint: endpoint}
}

func TestGetOrCreateProbesOnce(t *testing.T) {
	backend := newFakeGitLab(t)
	backend.addToken("tok-a", "alice")
	store := newSessionStore()

	cred := backend.credential(t, "tok-a")
	first, err := store.getOrCreate(context.Background(), cred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.username != "alice" {
		t.Fatalf("username = %q, want alice", first.username)
	}

	lastUsed := first.lastUsedAt()
	for i := 0; i < 3; i++ {
		again, err := store.getOrCreate(context.Background(), cred)
		if err != nil {
			t.Fatalf("repeat call %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("repeat call %d returned a different record", i)
		}
		if again.lastUsedAt().Before(lastUsed) {
			t.Fatalf("lastUsed went backwards: %v -> %v", lastUsed, again.lastUsedAt())
		}
		lastUsed = again.lastUsedAt()
	}

	if got := backend.probes("tok-a"); got != 1 {
		t.Fatalf("probe count = %d, want 1", got)
	}
	if store.size() != 1 {
		t.Fatalf("store size = %d, want 1", store.size())
	}
}

func TestGetOrCreateFailedProbeLeavesStoreUntouched(t *testing.T) {
	backend := newFakeGitLab(t)
	store := newSessionStore()

	_, err := store.getOrCreate(context.Background(), backend.credential(t, "bogus"))
	if err == nil {
		t.Fatalf("expected error for invalid token")
	}
	if kind := errorKind(err); kind != kindAuthenticationInvalid {
		t.Fatalf("error kind = %q, want %q", kind, kindAuthenticationInvalid)
	}
	if store.size() != 0 {
		t.Fatalf("store size = %d, want 0 after failed probe", store.size())
	}
}

func TestGetOrCreateUnreachableBackend(t *testing.T) {
	store := newSessionStore()
	// Port is valid but nothing listens there.
	cred := tenantCredential{Token: "tok", Endpoint: "http://127.0.0.1:1/api/v4"}

	_, err := store.getOrCreate(context.Background(), cred)
	if err == nil {
		t.Fatalf("expected error for unreachable backend")
	}
	if kind := errorKind(err); kind != kindConnectionFailed {
		t.Fatalf("error kind = %q, want %q", kind, kindConnectionFailed)
	}
	if store.size() != 0 {
		t.Fatalf("store size = %d, want 0", store.size())
	}
}

func TestGetOrCreateConcurrentCallsConverge(t *testing.T) {
	backend := newFakeGitLab(t)
	backend.addToken("tok-a", "alice")
	store := newSessionStore()
	cred := backend.credential(t, "tok-a")

	const callers = 16
	records := make([]*sessionRecord, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := store.getOrCreate(context.Background(), cred)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			records[i] = record
		}(i)
	}
	wg.Wait()

	if store.size() != 1 {
		t.Fatalf("store size = %d, want 1 after racing creates", store.size())
	}
	store.mu.RLock()
	canonical := store.entries[sessionKey{token: cred.Token, endpoint: cred.Endpoint}]
	store.mu.RUnlock()
	for i, record := range records {
		if record == nil {
			continue
		}
		if record != canonical {
			t.Fatalf("caller %d holds a record not in the store", i)
		}
	}
}

func TestSweeperEvictsOnlyIdleRecords(t *testing.T) {
	backend := newFakeGitLab(t)
	backend.addToken("tok-a", "alice")
	backend.addToken("tok-b", "bob")
	store := newSessionStore()

	var clockMu sync.Mutex
	current := time.Now()
	store.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		clockMu.Lock()
		current = current.Add(d)
		clockMu.Unlock()
	}

	ctx := context.Background()
	idle, err := store.getOrCreate(ctx, backend.credential(t, "tok-a"))
	if err != nil {
		t.Fatalf("create idle session: %v", err)
	}
	if _, err := store.getOrCreate(ctx, backend.credential(t, "tok-b")); err != nil {
		t.Fatalf("create active session: %v", err)
	}

	advance(sessionTTL + time.Hour)
	// tok-b is reactivated after going idle; tok-a stays idle.
	if _, err := store.getOrCreate(ctx, backend.credential(t, "tok-b")); err != nil {
		t.Fatalf("reactivate session: %v", err)
	}

	if evicted := store.sweepOnce(); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if store.size() != 1 {
		t.Fatalf("store size = %d, want 1 after sweep", store.size())
	}
	store.mu.RLock()
	_, idleKept := store.entries[idle.key]
	store.mu.RUnlock()
	if idleKept {
		t.Fatalf("idle record survived the sweep")
	}

	// Reuse after eviction starts a fresh probe and a new record.
	fresh, err := store.getOrCreate(ctx, backend.credential(t, "tok-a"))
	if err != nil {
		t.Fatalf("recreate after sweep: %v", err)
	}
	if fresh == idle || fresh.createdAt.Equal(idle.createdAt) {
		t.Fatalf("expected a fresh record after eviction")
	}
	if got := backend.probes("tok-a"); got != 2 {
		t.Fatalf("probe count after recreation = %d, want 2", got)
	}
}

func TestSweeperKeepsRecentlyTouchedRecord(t *testing.T) {
	backend := newFakeGitLab(t)
	backend.addToken("tok-a", "alice")
	store := newSessionStore()

	var clockMu sync.Mutex
	current := time.Now()
	store.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return current
	}

	record, err := store.getOrCreate(context.Background(), backend.credential(t, "tok-a"))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	clockMu.Lock()
	current = current.Add(sessionTTL + time.Hour)
	clockMu.Unlock()
	// Reactivation between snapshot and delete must keep the record.
	record.touch(store.now())

	if evicted := store.sweepOnce(); evicted != 0 {
		t.Fatalf("evicted = %d, want 0 for a reactivated record", evicted)
	}
	if store.size() != 1 {
		t.Fatalf("store size = %d, want 1", store.size())
	}
}
