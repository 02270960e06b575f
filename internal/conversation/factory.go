package conversation

import (
	"database/sql"
	"fmt"
	"strings"

	rdb "ragchat/internal/redis"
)

// Backends bundles the shared connections a store may be built on.
type Backends struct {
	Redis *rdb.Client
	DB    *sql.DB
}

// New builds the store named by backend, namespaced for one chat variant.
func New(backend, namespace string, deps Backends) (Store, error) {
	switch strings.ToLower(backend) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis conversation store requires a redis client")
		}
		return NewRedisStore(deps.Redis, namespace), nil
	case "sqlite", "sqlite3", "mysql":
		if deps.DB == nil {
			return nil, fmt.Errorf("%s conversation store requires a database", backend)
		}
		return NewSQLStore(deps.DB, namespace), nil
	default:
		return nil, fmt.Errorf("unsupported conversation backend: %s", backend)
	}
}
