package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlegem/elasticidentity/internal/entity"
)

// fakeElastic emulates the slice of the Elasticsearch HTTP API the store
// uses: index existence/create/delete, _doc get/put/delete, and term,
// bool and match_all searches.
type fakeElastic struct {
	mu               sync.Mutex
	exists           bool
	docs             map[string]userDocument
	createIndexCalls int
	deleteIndexCalls int
}

func newFakeElastic(t *testing.T) (*fakeElastic, *elasticsearch.Client) {
	t.Helper()
	f := &fakeElastic{docs: map[string]userDocument{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return f, client
}

func newTestStore(t *testing.T, opts ...Option) (*fakeElastic, *UserStore) {
	t.Helper()
	f, client := newFakeElastic(t)
	store, err := NewUserStore(client, nil, opts...)
	require.NoError(t, err)
	return f, store
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if f.exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.createIndexCalls++
		f.exists = true
		io.WriteString(w, `{"acknowledged":true}`)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		f.deleteIndexCalls++
		f.exists = false
		f.docs = map[string]userDocument{}
		io.WriteString(w, `{"acknowledged":true}`)
	case len(parts) == 2 && parts[1] == "_search":
		f.handleSearch(w, r)
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		f.handlePut(w, r, parts[2])
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodGet:
		f.handleGet(w, parts[2])
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodDelete:
		f.handleDelete(w, parts[2])
	default:
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"unexpected request"}`)
	}
}

func (f *fakeElastic) handlePut(w http.ResponseWriter, r *http.Request, id string) {
	if r.URL.Query().Get("op_type") == "create" {
		if _, ok := f.docs[id]; ok {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"error":{"type":"version_conflict_engine_exception"}}`)
			return
		}
	}
	var doc userDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.docs[id] = doc
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, `{"result":"created"}`)
}

func (f *fakeElastic) handleGet(w http.ResponseWriter, id string) {
	doc, ok := f.docs[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"found":false}`)
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"found": true, "_id": id, "_source": doc})
	w.Write(payload)
}

func (f *fakeElastic) handleDelete(w http.ResponseWriter, id string) {
	if _, ok := f.docs[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"result":"not_found"}`)
		return
	}
	delete(f.docs, id)
	io.WriteString(w, `{"result":"deleted"}`)
}

func (f *fakeElastic) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query struct {
			Term     map[string]string `json:"term"`
			MatchAll *struct{}         `json:"match_all"`
			Bool     *struct {
				Must []struct {
					Term map[string]string `json:"term"`
				} `json:"must"`
			} `json:"bool"`
		} `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	matches := func(doc userDocument) bool {
		switch {
		case body.Query.MatchAll != nil:
			return true
		case body.Query.Term != nil:
			for field, value := range body.Query.Term {
				return docMatches(doc, field, value)
			}
			return false
		case body.Query.Bool != nil:
			for _, clause := range body.Query.Bool.Must {
				for field, value := range clause.Term {
					if !docMatches(doc, field, value) {
						return false
					}
				}
			}
			return true
		}
		return false
	}

	hits := []map[string]interface{}{}
	for id, doc := range f.docs {
		if matches(doc) {
			hits = append(hits, map[string]interface{}{"_id": id, "_source": doc})
		}
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": len(hits)},
			"hits":  hits,
		},
	})
	w.Write(payload)
}

func docMatches(doc userDocument, field, value string) bool {
	switch field {
	case "userName":
		return doc.UserName == value
	case "email.address":
		return doc.Email != nil && doc.Email.Address == value
	case "logins.loginProvider":
		for _, l := range doc.Logins {
			if l.LoginProvider == value {
				return true
			}
		}
	case "logins.providerKey":
		for _, l := range doc.Logins {
			if l.ProviderKey == value {
				return true
			}
		}
	}
	return false
}

func TestEnsureIndexIsIdempotent(t *testing.T) {
	f, store := newTestStore(t)
	ctx := context.Background()

	assert.False(t, f.exists)
	require.NoError(t, store.EnsureIndex(ctx))
	assert.True(t, f.exists)
	assert.Equal(t, 1, f.createIndexCalls)

	require.NoError(t, store.EnsureIndex(ctx))
	assert.Equal(t, 1, f.createIndexCalls)
}

func TestEnsureIndexSingleFlight(t *testing.T) {
	f, store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.EnsureIndex(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.createIndexCalls)
}

func TestEnsureIndexSkipsExisting(t *testing.T) {
	f, store := newTestStore(t)
	f.exists = true

	require.NoError(t, store.EnsureIndex(context.Background()))
	assert.Equal(t, 0, f.createIndexCalls)
}

func TestForceRecreateDeletesIndex(t *testing.T) {
	f, store := newTestStore(t, WithForceRecreate(true))
	f.exists = true

	require.NoError(t, store.EnsureIndex(context.Background()))
	assert.Equal(t, 1, f.deleteIndexCalls)
	assert.Equal(t, 1, f.createIndexCalls)
}

func TestCustomIndexNameProvisioned(t *testing.T) {
	f, store := newTestStore(t, WithIndexName("hello"))

	assert.False(t, f.exists)
	require.NoError(t, store.EnsureIndex(context.Background()))
	assert.True(t, f.exists)
}

func TestInvalidNamesRejected(t *testing.T) {
	_, client := newFakeElastic(t)

	for _, name := range []string{"Hello", "users!", "a b", ""} {
		_, err := NewUserStore(client, nil, WithIndexName(name))
		assert.ErrorIs(t, err, ErrInvalidName, "index name %q", name)
	}
	_, err := NewUserStore(client, nil, WithEntityName("User"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCreateAndFindByIDRoundTrip(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	user := entity.NewUser("Alice")
	user.PasswordHash = "h1"
	user.SecurityStamp = "s1"
	user.TwoFactorEnabled = true
	user.SetEmail("alice@example.com")
	require.NoError(t, user.ConfirmEmail())
	user.SetPhone("+4670000000")
	user.AddClaim(entity.Claim{Type: "color", Value: "blue"})
	user.AddRole("admin")
	user.AddLogin(entity.Login{Provider: "google", ProviderKey: "g-1"})

	require.NoError(t, store.Create(ctx, user))

	got, err := store.FindByID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.ID())
	assert.Equal(t, "h1", got.PasswordHash)
	assert.Equal(t, "s1", got.SecurityStamp)
	assert.True(t, got.TwoFactorEnabled)
	require.NotNil(t, got.Email)
	assert.Equal(t, "alice@example.com", got.Email.Address)
	assert.True(t, got.Email.Confirmed)
	require.NotNil(t, got.Phone)
	assert.False(t, got.Phone.Confirmed)
	assert.Equal(t, []entity.Claim{{Type: "color", Value: "blue"}}, got.Claims())
	assert.Equal(t, []string{"admin"}, got.Roles())
	assert.Equal(t, []entity.Login{{Provider: "google", ProviderKey: "g-1"}}, got.Logins())
}

func TestCreateConflict(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, entity.NewUser("alice")))

	err := store.Create(ctx, entity.NewUser("alice"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateOverwrites(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	user := entity.NewUser("alice")
	user.PasswordHash = "h1"
	require.NoError(t, store.Create(ctx, user))

	user.PasswordHash = "h2"
	require.NoError(t, store.Update(ctx, user))

	got, err := store.FindByID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h2", got.PasswordHash)
}

func TestDeleteThenFindReturnsAbsent(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	user := entity.NewUser("alice")
	require.NoError(t, store.Create(ctx, user))
	require.NoError(t, store.Delete(ctx, user))

	got, err := store.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is not an error.
	require.NoError(t, store.Delete(ctx, user))
}

func TestFindByIDAbsentIsNotAnError(t *testing.T) {
	_, store := newTestStore(t)

	got, err := store.FindByID(context.Background(), "never-created")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByNameIsCaseInsensitive(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	user := entity.NewUser("alice")
	user.PasswordHash = "h1"
	require.NoError(t, store.Create(ctx, user))

	got, err := store.FindByName(ctx, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.ID())
	assert.Equal(t, "h1", got.PasswordHash)
}

func TestFindByEmail(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	user := entity.NewUser("alice")
	user.SetEmail("alice@example.com")
	require.NoError(t, store.Create(ctx, user))

	got, err := store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.ID())

	got, err = store.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByLoginRequiresBothFields(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	alice := entity.NewUser("alice")
	alice.AddLogin(entity.Login{Provider: "google", ProviderKey: "g-1"})
	require.NoError(t, store.Create(ctx, alice))

	bob := entity.NewUser("bob")
	bob.AddLogin(entity.Login{Provider: "github", ProviderKey: "h-1"})
	require.NoError(t, store.Create(ctx, bob))

	got, err := store.FindByLogin(ctx, entity.Login{Provider: "google", ProviderKey: "g-1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.ID())

	got, err = store.FindByLogin(ctx, entity.Login{Provider: "google", ProviderKey: "h-1"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAll(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, entity.NewUser("alice")))
	require.NoError(t, store.Create(ctx, entity.NewUser("bob")))

	users, err := store.All(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.ID())
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)
}

func TestNilArgumentGuards(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Create(ctx, nil), ErrInvalidArgument)
	assert.ErrorIs(t, store.Update(ctx, nil), ErrInvalidArgument)
	assert.ErrorIs(t, store.Delete(ctx, nil), ErrInvalidArgument)
	_, err := store.FindByID(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.ErrorIs(t, store.AddClaim(nil, entity.Claim{}), ErrInvalidArgument)
	assert.ErrorIs(t, store.AddToRole(nil, "admin"), ErrInvalidArgument)
	assert.ErrorIs(t, store.AddLogin(nil, entity.Login{}), ErrInvalidArgument)
	assert.ErrorIs(t, store.ConfirmEmail(nil), ErrInvalidArgument)
}

func TestMutatorsAreInMemoryOnly(t *testing.T) {
	f, store := newTestStore(t)

	user := entity.NewUser("alice")
	require.NoError(t, store.AddClaim(user, entity.Claim{Type: "color", Value: "blue"}))
	require.NoError(t, store.AddToRole(user, "admin"))
	require.NoError(t, store.SetEmail(user, "alice@example.com"))
	require.NoError(t, store.ConfirmEmail(user))

	// Nothing was persisted, and no index was even provisioned.
	assert.Empty(t, f.docs)
	assert.Equal(t, 0, f.createIndexCalls)

	assert.ErrorIs(t, store.ConfirmPhone(user), entity.ErrPhoneNotSet)
}

func TestTraceHook(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []TraceEvent
	store.SetTrace(func(ev TraceEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	require.NoError(t, store.Create(ctx, entity.NewUser("alice")))

	mu.Lock()
	ops := make([]string, 0, len(events))
	for _, ev := range events {
		ops = append(ops, ev.Operation)
	}
	var createEvent *TraceEvent
	for i := range events {
		if events[i].Operation == "create" {
			createEvent = &events[i]
		}
	}
	mu.Unlock()

	// Lazy provisioning fires through the hook too.
	assert.Contains(t, ops, "indexExists")
	assert.Contains(t, ops, "createIndex")
	require.NotNil(t, createEvent)
	assert.Equal(t, "/users/_doc/alice", createEvent.URL)
	assert.Contains(t, createEvent.Request, `"userName":"alice"`)
	assert.NotEmpty(t, createEvent.Response)

	// Detach; no further events.
	store.SetTrace(nil)
	before := len(events)
	require.NoError(t, store.Update(ctx, entity.NewUser("alice")))
	mu.Lock()
	assert.Len(t, events, before)
	mu.Unlock()
}

func TestTraceHookPanicDoesNotReachCaller(t *testing.T) {
	_, store := newTestStore(t)
	store.SetTrace(func(TraceEvent) { panic("observer bug") })

	assert.NoError(t, store.Create(context.Background(), entity.NewUser("alice")))
}
