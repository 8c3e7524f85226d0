package reliability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// DefaultCacheTTL is how long cached derivations stay live.
const DefaultCacheTTL = 24 * time.Hour

// Cache memoises the results of pure, side-effect-free stages. It must never be
// used for stages with externally observable effects such as remote submission.
type Cache struct {
	store *gocache.Cache
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{store: gocache.New(ttl, ttl)}
}

// Key derives a deterministic cache key from an operation name and its
// serialized arguments. Identical arguments always map to the same key and
// differing arguments to different keys (up to hash collision).
func Key(op string, args ...interface{}) (string, error) {
	serialized, err := json.Marshal(args)
	if err != nil {
		return "", errors.Wrapf(err, "cannot serialize arguments of %s for cache keying", op)
	}
	sum := sha256.Sum256(serialized)
	return op + "_" + hex.EncodeToString(sum[:16]), nil
}

// Cached returns the live cached value for (op, args) if present, otherwise runs
// fn, stores its result under the derived key and returns it. Errors are never
// cached. An argument that cannot be serialized disables caching for that call
// rather than failing it.
func Cached[T any](c *Cache, op string, args []interface{}, fn func() (T, error)) (T, error) {
	key, err := Key(op, args...)
	if err != nil {
		return fn()
	}
	if hit, ok := c.store.Get(key); ok {
		if value, ok := hit.(T); ok {
			return value, nil
		}
	}
	value, err := fn()
	if err != nil {
		return value, err
	}
	c.store.SetDefault(key, value)
	return value, nil
}
