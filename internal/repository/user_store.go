package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/castlegem/elasticidentity/internal/entity"
)

// allUsersCeiling caps the match_all result size. All is meant for small
// and test datasets; there is no real pagination.
const allUsersCeiling = 1000 * 1000

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// UserStore persists users into an Elasticsearch index. Every write uses
// refresh=true so a read issued after a completed write observes it; the
// price is write throughput, which callers of an identity store rarely
// care about. The store holds no per-user state between calls.
type UserStore struct {
	es            *elasticsearch.Client
	index         string
	entity        string
	forceRecreate bool
	log           *zap.Logger

	initOnce sync.Once
	initErr  error

	trace atomic.Pointer[TraceFunc]
}

type Option func(*UserStore)

// WithIndexName overrides the index name (default "users").
func WithIndexName(name string) Option {
	return func(s *UserStore) { s.index = name }
}

// WithEntityName overrides the entity name recorded in the index mapping
// (default "user").
func WithEntityName(name string) Option {
	return func(s *UserStore) { s.entity = name }
}

// WithForceRecreate deletes and rebuilds the index on first use. Meant
// for tests and seed scenarios only.
func WithForceRecreate(force bool) Option {
	return func(s *UserStore) { s.forceRecreate = force }
}

func NewUserStore(es *elasticsearch.Client, logger *zap.Logger, opts ...Option) (*UserStore, error) {
	if es == nil {
		return nil, fmt.Errorf("%w: elasticsearch client is nil", ErrInvalidArgument)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &UserStore{
		es:     es,
		index:  "users",
		entity: "user",
		log:    logger.Named("UserStore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !namePattern.MatchString(s.index) {
		return nil, fmt.Errorf("%w: index %q", ErrInvalidName, s.index)
	}
	if !namePattern.MatchString(s.entity) {
		return nil, fmt.Errorf("%w: entity %q", ErrInvalidName, s.entity)
	}
	return s, nil
}

// Create writes a new user document. It fails with ErrConflict if a
// document with the same id already exists.
func (s *UserStore) Create(ctx context.Context, user *entity.User) error {
	return s.save(ctx, user, true)
}

// Update writes a user document with upsert semantics.
func (s *UserStore) Update(ctx context.Context, user *entity.User) error {
	return s.save(ctx, user, false)
}

func (s *UserStore) save(ctx context.Context, user *entity.User, create bool) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", ErrInvalidArgument)
	}
	if err := s.init(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(fromEntity(user))
	if err != nil {
		return fmt.Errorf("encode user %q: %w", user.ID(), err)
	}

	opts := []func(*esapi.IndexRequest){
		s.es.Index.WithDocumentID(user.ID()),
		s.es.Index.WithRefresh("true"),
		s.es.Index.WithContext(ctx),
	}
	operation := "update"
	if create {
		operation = "create"
		opts = append(opts, s.es.Index.WithOpType("create"))
	}

	res, err := s.es.Index(s.index, bytes.NewReader(body), opts...)
	if err != nil {
		s.log.Error("database error saving user", zap.String("userID", user.ID()), zap.Error(err))
		return fmt.Errorf("index user %q: %w", user.ID(), err)
	}
	raw, err := s.consume(operation, s.docURL(user.ID()), body, res)
	if err != nil {
		return err
	}
	if create && res.StatusCode == http.StatusConflict {
		s.log.Warn("user already exists", zap.String("userID", user.ID()))
		return fmt.Errorf("%w: %q", ErrConflict, user.ID())
	}
	if res.IsError() {
		s.log.Error("database error saving user",
			zap.String("userID", user.ID()), zap.String("status", res.Status()))
		return fmt.Errorf("index user %q: %s: %s", user.ID(), res.Status(), raw)
	}
	s.log.Info("user saved", zap.String("userID", user.ID()), zap.String("op", operation))
	return nil
}

// Delete removes the user's document. Deleting a user that has no
// document is not an error.
func (s *UserStore) Delete(ctx context.Context, user *entity.User) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", ErrInvalidArgument)
	}
	if err := s.init(ctx); err != nil {
		return err
	}

	res, err := s.es.Delete(s.index, user.ID(),
		s.es.Delete.WithRefresh("true"),
		s.es.Delete.WithContext(ctx))
	if err != nil {
		s.log.Error("database error deleting user", zap.String("userID", user.ID()), zap.Error(err))
		return fmt.Errorf("delete user %q: %w", user.ID(), err)
	}
	raw, err := s.consume("delete", s.docURL(user.ID()), nil, res)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusNotFound {
		s.log.Debug("user already absent on delete", zap.String("userID", user.ID()))
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("delete user %q: %s: %s", user.ID(), res.Status(), raw)
	}
	s.log.Info("user deleted", zap.String("userID", user.ID()))
	return nil
}

// FindByID fetches a user by document key. Absence is (nil, nil), never
// an error.
func (s *UserStore) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is empty", ErrInvalidArgument)
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}

	id = entity.NormalizeUserName(id)
	res, err := s.es.Get(s.index, id, s.es.Get.WithContext(ctx))
	if err != nil {
		s.log.Error("database error fetching user", zap.String("userID", id), zap.Error(err))
		return nil, fmt.Errorf("get user %q: %w", id, err)
	}
	raw, err := s.consume("findByID", s.docURL(id), nil, res)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		s.log.Debug("user not found", zap.String("userID", id))
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get user %q: %s: %s", id, res.Status(), raw)
	}

	var got struct {
		Found  bool         `json:"found"`
		Source userDocument `json:"_source"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		return nil, fmt.Errorf("decode user %q: %w", id, err)
	}
	if !got.Found {
		return nil, nil
	}
	return got.Source.toEntity(), nil
}

// FindByName looks a user up by name. The name is normalized before the
// exact-match query, so lookups never miss on case.
func (s *UserStore) FindByName(ctx context.Context, name string) (*entity.User, error) {
	query := map[string]interface{}{
		"term": map[string]interface{}{
			"userName": entity.NormalizeUserName(name),
		},
	}
	return s.searchOne(ctx, "findByName", query)
}

// FindByEmail looks a user up by exact email address.
func (s *UserStore) FindByEmail(ctx context.Context, address string) (*entity.User, error) {
	query := map[string]interface{}{
		"term": map[string]interface{}{
			"email.address": address,
		},
	}
	return s.searchOne(ctx, "findByEmail", query)
}

// FindByLogin looks a user up by external login. Both the provider and
// the provider key must match.
func (s *UserStore) FindByLogin(ctx context.Context, login entity.Login) (*entity.User, error) {
	query := map[string]interface{}{
		"bool": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"logins.loginProvider": login.Provider}},
				map[string]interface{}{"term": map[string]interface{}{"logins.providerKey": login.ProviderKey}},
			},
		},
	}
	return s.searchOne(ctx, "findByLogin", query)
}

// All returns every user in the index, capped at allUsersCeiling. Meant
// for small and test datasets.
func (s *UserStore) All(ctx context.Context) ([]*entity.User, error) {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	return s.search(ctx, "all", query, allUsersCeiling)
}

func (s *UserStore) searchOne(ctx context.Context, operation string, query map[string]interface{}) (*entity.User, error) {
	users, err := s.search(ctx, operation, query, 1)
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return users[0], nil
}

func (s *UserStore) search(ctx context.Context, operation string, query map[string]interface{}, size int) ([]*entity.User, error) {
	if err := s.init(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{"query": query})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithSize(size),
	)
	if err != nil {
		s.log.Error("database error searching users", zap.Error(err))
		return nil, fmt.Errorf("search users: %w", err)
	}
	raw, err := s.consume(operation, "/"+s.index+"/_search", body, res)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("search users: %s: %s", res.Status(), raw)
	}

	var got struct {
		Hits struct {
			Hits []struct {
				Source userDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	users := make([]*entity.User, 0, len(got.Hits.Hits))
	for _, hit := range got.Hits.Hits {
		users = append(users, hit.Source.toEntity())
	}
	return users, nil
}

// consume reads and closes a response body, firing the trace hook with
// the raw payloads.
func (s *UserStore) consume(operation, url string, request []byte, res *esapi.Response) ([]byte, error) {
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	s.emitTrace(operation, url, request, raw)
	return raw, nil
}

func (s *UserStore) docURL(id string) string {
	return "/" + s.index + "/_doc/" + id
}
