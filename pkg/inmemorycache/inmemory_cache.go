package inmemorycache

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// InMemoryCache is the byte-oriented cache contract shared by all versions.
type InMemoryCache interface {
	Get(key []byte) ([]byte, error)
	SetEx(key, value []byte, expiryInSec int) error
	Delete(key []byte) bool
}

var (
	instance InMemoryCache
	once     sync.Once
)

// Init builds the process-wide V1 cache, to be called from main.go
func Init(cacheName string, sizeInMb int) {
	once.Do(func() {
		v1, err := NewV1(cacheName, sizeInMb)
		if err != nil {
			log.Panic().Err(err).Msg("error building v1 in memory cache")
		}
		go v1.publishMetric()
		instance = v1
	})
}

// Instance returns the in-memory-cache instance. Ensure that Init
// is called before calling this function
func Instance() InMemoryCache {
	if instance == nil {
		log.Panic().Msg("in-memory-cache not initialized, call Init first")
	}
	return instance
}

// SetMockInstance sets the mock instance of in-memory-cache
func SetMockInstance(mock InMemoryCache) {
	instance = mock
}
