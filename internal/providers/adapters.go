package providers

import (
	"time"

	"github.com/redis/go-redis/v9"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/ensemble"
)

// Build creates one adapter per provider in order. Each is wrapped in a
// reply cache when rdb is set and the provider's cache_ttl is positive.
func Build(cfg *config.Config, order []ensemble.ProviderID, rdb redis.Cmdable, log logger.Logger) ([]ensemble.ModelAdapter, error) {
	adapters := make([]ensemble.ModelAdapter, 0, len(order))
	for _, p := range order {
		pc := cfg.Provider(p)
		client, err := New(p, pc, log)
		if err != nil {
			return nil, err
		}

		var adapter ensemble.ModelAdapter = client
		if rdb != nil && pc.CacheTTL > 0 {
			adapter = NewCachedAdapter(client, rdb, time.Duration(pc.CacheTTL)*time.Second, log)
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}
