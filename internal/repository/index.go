package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// indexMappingTemplate is the schema the store expects. The user name gets
// a custom keyword analyzer that lowercases the whole field as one token,
// so term queries on it are effectively case insensitive. Everything else
// is exact-match (keyword) or boolean. The entity name is recorded under
// _meta since index mappings no longer carry type names.
const indexMappingTemplate = `{
  "settings": {
    "analysis": {
      "analyzer": {
        "lowercase_keyword": {
          "type": "custom",
          "tokenizer": "keyword",
          "filter": ["lowercase"]
        }
      }
    }
  },
  "mappings": {
    "_meta": {"entity": %q},
    "properties": {
      "userName": {"type": "text", "analyzer": "lowercase_keyword"},
      "passwordHash": {"type": "keyword"},
      "securityStamp": {"type": "keyword"},
      "twoFactorAuthenticationEnabled": {"type": "boolean"},
      "roles": {"type": "keyword"},
      "claims": {
        "properties": {
          "type": {"type": "keyword"},
          "value": {"type": "keyword"}
        }
      },
      "logins": {
        "properties": {
          "loginProvider": {"type": "keyword"},
          "providerKey": {"type": "keyword"}
        }
      },
      "email": {
        "properties": {
          "address": {"type": "keyword"},
          "isConfirmed": {"type": "boolean"}
        }
      },
      "phone": {
        "properties": {
          "number": {"type": "keyword"},
          "isConfirmed": {"type": "boolean"}
        }
      }
    }
  }
}`

// EnsureIndex provisions the backing index. It is safe to call from
// concurrent goroutines and runs at most once per store instance; every
// account operation also calls it lazily, so calling it explicitly is
// only needed to fail fast at startup.
func (s *UserStore) EnsureIndex(ctx context.Context) error {
	return s.init(ctx)
}

func (s *UserStore) init(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.ensureIndex(ctx)
	})
	return s.initErr
}

func (s *UserStore) ensureIndex(ctx context.Context) error {
	if s.forceRecreate {
		res, err := s.es.Indices.Delete([]string{s.index},
			s.es.Indices.Delete.WithIgnoreUnavailable(true),
			s.es.Indices.Delete.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("delete index %q: %w", s.index, err)
		}
		raw, err := s.consume("deleteIndex", "/"+s.index, nil, res)
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("delete index %q: %s: %s", s.index, res.Status(), raw)
		}
		s.log.Info("index deleted for recreation", zap.String("index", s.index))
	}

	res, err := s.es.Indices.Exists([]string{s.index},
		s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %q: %w", s.index, err)
	}
	raw, err := s.consume("indexExists", "/"+s.index, nil, res)
	if err != nil {
		return err
	}
	switch {
	case res.StatusCode == http.StatusOK:
		s.log.Debug("index already exists", zap.String("index", s.index))
		return nil
	case res.StatusCode != http.StatusNotFound:
		return fmt.Errorf("check index %q: %s: %s", s.index, res.Status(), raw)
	}

	body := fmt.Sprintf(indexMappingTemplate, s.entity)
	res, err = s.es.Indices.Create(s.index,
		s.es.Indices.Create.WithBody(strings.NewReader(body)),
		s.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index %q: %w", s.index, err)
	}
	raw, err = s.consume("createIndex", "/"+s.index, []byte(body), res)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("create index %q: %s: %s", s.index, res.Status(), raw)
	}
	s.log.Info("index created", zap.String("index", s.index), zap.String("entity", s.entity))
	return nil
}
