package store

import "context"

// ReadMode режим консистентности чтения
type ReadMode int

const (
	// ReadEventual обычное чтение, может отставать от последней записи
	ReadEventual ReadMode = iota
	// ReadStrong чтение, гарантированно отражающее последнюю зафиксированную запись
	ReadStrong
)

// Record документ с плоским набором атрибутов
type Record map[string]any

// Cond ожидаемые текущие значения полей для условного обновления.
// Обновление применяется только если все перечисленные поля совпадают.
type Cond map[string]any

// Updates новые значения полей
type Updates map[string]any

// RecordStore абстракция хранилища записей: get по ключу, условная вставка,
// условное обновление и запрос по вторичному индексу.
type RecordStore interface {
	// Get возвращает запись по ключу; второй результат false, если записи нет
	Get(ctx context.Context, bucket, key string, mode ReadMode) (Record, bool, error)

	// PutIfAbsent вставляет запись, если ключ свободен; false — ключ занят
	PutIfAbsent(ctx context.Context, bucket, key string, rec Record) (bool, error)

	// Update применяет обновление одной записи при выполнении условия.
	// Проверка условия и запись выполняются атомарно; false — условие не
	// выполнено либо записи нет.
	Update(ctx context.Context, bucket, key string, cond Cond, updates Updates) (bool, error)

	// Query возвращает записи, у которых поле index равно value,
	// упорядоченные по created_at (desc — новые первыми)
	Query(ctx context.Context, bucket, index string, value any, desc bool, limit int) ([]Record, error)
}
