package tables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

// ErrTableNotFound is returned for lookups of unknown table ids.
var ErrTableNotFound = errors.New("table not found")

// Store keeps parsed tables between upload and processing.
type Store interface {
	Save(ctx context.Context, table models.TableData) (string, error)
	Get(ctx context.Context, id string) (models.TableData, error)
	List(ctx context.Context) ([]models.TableData, error)
	Update(ctx context.Context, id string, table models.TableData) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]models.TableData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]models.TableData)}
}

func (s *MemoryStore) Save(_ context.Context, table models.TableData) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table.ID = uuid.NewString()
	table.CreatedAt = time.Now().UTC()
	s.tables[table.ID] = table
	return table.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.TableData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[id]
	if !ok {
		return models.TableData{}, ErrTableNotFound
	}
	return table, nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.TableData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TableData, 0, len(s.tables))
	for _, table := range s.tables {
		out = append(out, table)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, table models.TableData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tables[id]
	if !ok {
		return ErrTableNotFound
	}
	table.ID = id
	table.CreatedAt = existing.CreatedAt
	s.tables[id] = table
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[id]; !ok {
		return ErrTableNotFound
	}
	delete(s.tables, id)
	return nil
}

const redisKeyPrefix = "labtest:table:"

// RedisStore keeps tables in Redis as JSON blobs with a TTL, for running
// several service replicas against one shared upload cache.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, table models.TableData) (string, error) {
	table.ID = uuid.NewString()
	table.CreatedAt = time.Now().UTC()
	if err := s.write(ctx, table); err != nil {
		return "", err
	}
	return table.ID, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.TableData, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.TableData{}, ErrTableNotFound
	}
	if err != nil {
		return models.TableData{}, fmt.Errorf("redis get: %w", err)
	}

	var table models.TableData
	if err := json.Unmarshal(payload, &table); err != nil {
		return models.TableData{}, fmt.Errorf("decode table %s: %w", id, err)
	}
	return table, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.TableData, error) {
	keys, err := s.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("redis keys: %w", err)
	}

	out := make([]models.TableData, 0, len(keys))
	for _, key := range keys {
		payload, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}
		var table models.TableData
		if err := json.Unmarshal(payload, &table); err != nil {
			continue
		}
		out = append(out, table)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, table models.TableData) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	table.ID = id
	table.CreatedAt = existing.CreatedAt
	return s.write(ctx, table)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if removed == 0 {
		return ErrTableNotFound
	}
	return nil
}

func (s *RedisStore) write(ctx context.Context, table models.TableData) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", table.ID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+table.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
