package offlinecache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/always-cache/offline-cache/cache"
	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"
	"github.com/always-cache/offline-cache/rfc9111"

	"golang.org/x/sync/errgroup"
)

// Install opens (or creates) the unit's store, fetches every seed and
// stores the responses. Either all seeds are stored or none are:
// the entries are written only after every fetch succeeded.
// Existing entries for the same requests are overwritten.
func (o *OfflineCache) Install(ctx context.Context) error {
	store, err := o.openStore()
	if err != nil {
		return fmt.Errorf("open store %s: %w", o.storeName, err)
	}

	entries := make([]cache.CacheEntry, len(o.seeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, seed := range o.seeds {
		i, seed := i, seed
		g.Go(func() error {
			ce, err := o.fetchSeed(gctx, seed)
			if err != nil {
				return err
			}
			entries[i] = ce
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.log.Error().Err(err).Msg("Could not fetch seeds")
		return err
	}

	if err := store.PutAll(entries); err != nil {
		o.log.Error().Err(err).Msg("Could not write seeds")
		return fmt.Errorf("write seeds: %w", err)
	}
	o.log.Info().Int("seeds", len(entries)).Msg("Seeds stored")
	return nil
}

func (o *OfflineCache) fetchSeed(ctx context.Context, seed *url.URL) (cache.CacheEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seed.String(), nil)
	if err != nil {
		return cache.CacheEntry{}, err
	}
	if o.originHost != "" {
		req.Host = o.originHost
	}
	o.log.Debug().
		Str("url", seed.String()).
		Msg("Requesting seed from origin")

	requestedAt := time.Now()
	// the client follows redirects, but the response is stored for the seed request
	res, err := o.client.Do(req)
	if err != nil {
		return cache.CacheEntry{}, fmt.Errorf("%w: %s: %w", ErrSeedFailed, seed, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return cache.CacheEntry{}, fmt.Errorf("%w: %s: status %d", ErrSeedFailed, seed, res.StatusCode)
	}
	if rfc9111.VaryWildcard(res.Header) {
		return cache.CacheEntry{}, fmt.Errorf("%w: %s: response has Vary: *", ErrSeedFailed, seed)
	}
	res.Request = req

	key, err := o.keyer.GetKey(req, res)
	if err != nil {
		return cache.CacheEntry{}, err
	}
	bytes, err := serializer.ResponseToBytes(res)
	if err != nil {
		return cache.CacheEntry{}, fmt.Errorf("%w: %s: %w", ErrSeedFailed, seed, err)
	}
	o.log.Trace().Str("key", key).Msgf("Fetched seed (%d bytes)", len(bytes))
	return cache.CacheEntry{
		Key:         key,
		RequestedAt: requestedAt,
		ReceivedAt:  time.Now(),
		Bytes:       bytes,
	}, nil
}
