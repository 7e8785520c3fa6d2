package predictor

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/pkg/inmemorycache"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/metric"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

// Cached serves repeated inputs from an in-memory cache. The key covers the input
// bytes and the identity of the model and description files, so replacing the
// model invalidates earlier entries.
type Cached struct {
	next   Predictor
	cache  inmemorycache.InMemoryCache
	ttlSec int
}

func NewCached(next Predictor, cache inmemorycache.InMemoryCache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttlSec: int(ttl / time.Second)}
}

type cachedResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (c *Cached) Predict(ctx context.Context, req Request) (*Result, error) {
	key, err := cacheKey(req)
	if err != nil {
		// artifacts or input unreadable, let the predictor report it
		log.Debug().Ctx(ctx).Err(err).Msg("prediction cache key unavailable")
		return c.next.Predict(ctx, req)
	}

	if raw, err := c.cache.Get(key); err == nil {
		if res, derr := decodeResult(raw); derr == nil {
			metric.Incr(metric.PredictionCacheHitCount, nil)
			return res, nil
		}
		c.cache.Delete(key)
	}
	metric.Incr(metric.PredictionCacheMissCount, nil)

	res, err := c.next.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	if raw, merr := json.Marshal(cachedResult{Columns: res.Columns, Rows: res.Rows}); merr == nil {
		if serr := c.cache.SetEx(key, raw, c.ttlSec); serr != nil {
			log.Debug().Ctx(ctx).Err(serr).Msg("prediction not cached")
		}
	}
	return res, nil
}

func decodeResult(raw []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var cr cachedResult
	if err := dec.Decode(&cr); err != nil {
		return nil, err
	}
	return &Result{Columns: cr.Columns, Rows: cr.Rows}, nil
}

func cacheKey(req Request) ([]byte, error) {
	h := xxhash.New()
	for _, p := range []string{req.Bundle.ModelPath, req.Bundle.DescriptionPath} {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(h, "%s|%d|%d|", p, info.Size(), info.ModTime().UnixNano())
	}
	f, err := os.Open(req.DataPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(nil, h.Sum64()), nil
}
