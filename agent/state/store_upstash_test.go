package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "claims:conversation:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "claims:conversation:abc")
	}
}

func TestUpstashRedisStoreRedisKeyEmptyConversation(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidConversation", err)
	}
}

func TestUpstashRedisStoreSaveSendsVersionedEval(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":1}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(90*time.Second),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	st := NewConversationState("conv-1", testTicket(), time.Now().UTC())
	st.Version = 1
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(gotCommand) != 7 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "EVAL" || gotCommand[2] != float64(1) || gotCommand[3] != "claims:conversation:conv-1" {
		t.Fatalf("unexpected command head: %#v", gotCommand[:4])
	}
	if gotCommand[5] != float64(1) || gotCommand[6] != float64(90) {
		t.Fatalf("unexpected version and ttl args: %#v", gotCommand[5:])
	}
}

func TestUpstashRedisStoreSaveVersionConflict(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":0}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	st := NewConversationState("conv-1", testTicket(), time.Now().UTC())
	st.Version = 3
	err = store.Save(context.Background(), st)
	if !errors.Is(err, ErrVersionConflict) || !errors.Is(err, ErrConversationBusy) {
		t.Fatalf("Save() error = %v, want ErrVersionConflict", err)
	}
}

func TestUpstashRedisStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := NewConversationState("conv-2", testTicket(), time.Now().UTC())
	seed.Customer = &Customer{CustomerID: "C1"}
	seed.Contracts = []Contract{}
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	st, err := store.Load(context.Background(), "conv-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.ConversationID != "conv-2" {
		t.Fatalf("Load().ConversationID = %q", st.ConversationID)
	}
	if !st.HasContracts() {
		t.Fatal("empty contracts list lost in round trip")
	}
	if st.Payments != nil {
		t.Fatalf("unfetched payments became %#v", st.Payments)
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "claims:conversation:conv-2" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadMissing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	_, err = store.Load(context.Background(), "missing")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}
