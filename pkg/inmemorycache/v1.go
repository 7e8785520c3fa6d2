package inmemorycache

import (
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/pkg/metric"
	"github.com/coocood/freecache"
	"github.com/rs/zerolog/log"
)

const metricUpdateInterval = 1 * time.Minute

type V1 struct {
	cacheName  string
	sizeInMb   int
	inMemCache *freecache.Cache
}

type V1Builder struct {
	v1 *V1
}

func newV1Builder(cacheName string) *V1Builder {
	if cacheName == "" {
		log.Panic().Msg("cache name cannot be empty")
	}
	return &V1Builder{
		v1: &V1{
			cacheName: cacheName,
		},
	}
}

func (b *V1Builder) withSizeInMB(sizeMB int) *V1Builder {
	b.v1.sizeInMb = sizeMB
	return b
}

func (b *V1Builder) build() (*V1, error) {
	if b.v1.sizeInMb <= 0 {
		return nil, fmt.Errorf("invalid cache size: %d MB", b.v1.sizeInMb)
	}
	b.v1.inMemCache = freecache.NewCache(b.v1.sizeInMb * 1024 * 1024)
	return b.v1, nil
}

// NewV1 builds a standalone V1 cache without touching the package instance.
func NewV1(cacheName string, sizeInMb int) (*V1, error) {
	return newV1Builder(cacheName).withSizeInMB(sizeInMb).build()
}

func (v *V1) Get(key []byte) ([]byte, error) {
	return v.inMemCache.Get(key)
}

func (v *V1) SetEx(key, value []byte, expiryInSec int) error {
	return v.inMemCache.Set(key, value, expiryInSec)
}

func (v *V1) Delete(key []byte) bool {
	return v.inMemCache.Del(key)
}

// publishMetric publishes the in-memory-cache metrics every metricUpdateInterval
func (v *V1) publishMetric() {
	ticker := time.NewTicker(metricUpdateInterval)
	defer ticker.Stop()
	tags := metric.BuildTag(metric.NewTag(metric.TagCacheName, v.cacheName))
	for range ticker.C {
		metric.Gauge(metric.CacheHitRate, v.inMemCache.HitRate(), tags)
		metric.Gauge(metric.CacheItemCount, float64(v.inMemCache.EntryCount()), tags)
		metric.Gauge(metric.CacheEvacuateCount, float64(v.inMemCache.EvacuateCount()), tags)
		metric.Gauge(metric.CacheExpiryCount, float64(v.inMemCache.ExpiredCount()), tags)
	}
}
