package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Service is a bounded-TTL cache. Instances are injected into the
// components that need them; there is no package-level singleton.
type Service struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

type Config struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

func New(cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &Service{
		store:      gocache.New(cfg.DefaultTTL, cfg.CleanupInterval),
		defaultTTL: cfg.DefaultTTL,
	}
}

func (s *Service) Get(key string) (interface{}, bool) {
	return s.store.Get(key)
}

func (s *Service) Set(key string, value interface{}) {
	s.store.Set(key, value, s.defaultTTL)
}

func (s *Service) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	s.store.Set(key, value, ttl)
}

func (s *Service) Invalidate(key string) {
	s.store.Delete(key)
}

func (s *Service) Clear() {
	s.store.Flush()
}
