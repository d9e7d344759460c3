package store

import (
	"context"
	"sort"
	"sync"

	"github.com/premsagar/subscription-service/pkg/logger"
)

// MemoryStore реализация RecordStore в памяти. Используется в тестах и как
// резервный режим без внешней базы. Условные операции атомарны под мьютексом.
type MemoryStore struct {
	buckets map[string]map[string]Record
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewMemoryStore создает новое хранилище в памяти
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]Record),
		log:     log,
	}
}

// copyRecord делает неглубокую копию записи (атрибуты плоские)
func copyRecord(rec Record) Record {
	cp := make(Record, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}

// Get возвращает запись по ключу
func (s *MemoryStore) Get(ctx context.Context, bucket, key string, mode ReadMode) (Record, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	// В памяти каждое чтение консистентно, mode не различается
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, false, nil
	}
	rec, ok := b[key]
	if !ok {
		return nil, false, nil
	}

	return copyRecord(rec), true, nil
}

// PutIfAbsent вставляет запись, если ключ свободен
func (s *MemoryStore) PutIfAbsent(ctx context.Context, bucket, key string, rec Record) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string]Record)
		s.buckets[bucket] = b
	}

	if _, exists := b[key]; exists {
		return false, nil
	}

	b[key] = copyRecord(rec)
	return true, nil
}

// Update применяет условное обновление
func (s *MemoryStore) Update(ctx context.Context, bucket, key string, cond Cond, updates Updates) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return false, nil
	}
	rec, ok := b[key]
	if !ok {
		return false, nil
	}

	for field, expected := range cond {
		if rec[field] != expected {
			return false, nil
		}
	}

	updated := copyRecord(rec)
	for field, value := range updates {
		updated[field] = value
	}
	b[key] = updated

	return true, nil
}

// Query возвращает записи с совпадающим значением индексного поля,
// упорядоченные по created_at
func (s *MemoryStore) Query(ctx context.Context, bucket, index string, value any, desc bool, limit int) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []Record
	for _, rec := range s.buckets[bucket] {
		if rec[index] == value {
			result = append(result, copyRecord(rec))
		}
	}

	// created_at хранится строкой RFC3339, лексикографический порядок
	// совпадает с хронологическим
	sort.Slice(result, func(i, j int) bool {
		ci, _ := result[i]["created_at"].(string)
		cj, _ := result[j]["created_at"].(string)
		if desc {
			return ci > cj
		}
		return ci < cj
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}
