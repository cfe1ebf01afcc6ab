package cart

import (
	"context"
	"sync"

	"shop-assistant/internal/models"
)

// KeyPrefix namespaces session carts in the repository.
const KeyPrefix = "ai-shopping-cart:"

// SessionKey returns the repository key of a session cart.
func SessionKey(sessionID string) string {
	return KeyPrefix + sessionID
}

// Repository persists cart lines under a key. Load returns an empty slice
// when nothing was stored for the key yet.
type Repository interface {
	Load(ctx context.Context, key string) ([]models.CartLine, error)
	Save(ctx context.Context, key string, lines []models.CartLine) error
}

// MemoryRepository keeps carts in process memory.
type MemoryRepository struct {
	mu    sync.Mutex
	carts map[string][]models.CartLine
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string][]models.CartLine)}
}

// Load returns a copy of the stored lines.
func (r *MemoryRepository) Load(_ context.Context, key string) ([]models.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyLines(r.carts[key]), nil
}

// Save replaces the stored lines with a copy of lines.
func (r *MemoryRepository) Save(_ context.Context, key string, lines []models.CartLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[key] = copyLines(lines)
	return nil
}

func copyLines(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, len(lines))
	copy(out, lines)
	return out
}
