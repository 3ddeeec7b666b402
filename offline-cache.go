package offlinecache

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/always-cache/offline-cache/cache"
	"github.com/always-cache/offline-cache/host"
	cachekey "github.com/always-cache/offline-cache/pkg/cache-key"

	"github.com/rs/zerolog"
)

const (
	// DefaultStoreName names the store the unit populates and reads.
	// Bump the version whenever the seeds or their meaning change.
	DefaultStoreName = "habit-cache-v1"
)

// DefaultSeeds are cached at install time: the application root.
var DefaultSeeds = []string{"/"}

var (
	ErrNoMatch        = errors.New("no stored response matches the request")
	ErrSeedFailed     = errors.New("seed request failed")
	ErrCrossOrigin    = errors.New("seed is not in the unit's origin")
	ErrDuplicateSeed  = errors.New("duplicate seed")
	ErrNetworkTimeout = errors.New("network attempt timed out")
)

type Config struct {
	// Storage for stores. Required.
	Storage cache.Storage
	// Name of the store to use. DefaultStoreName if empty.
	StoreName string
	// Paths or same-origin URLs to cache at install time. DefaultSeeds if nil.
	Seeds []string
	// URL of the origin the unit intercepts requests for.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname sent in the Host header of seed requests.
	// Use if e.g. the origin URL is just an IP address. The URL's host if empty.
	OriginHost string
	// Transport used for network requests. http.DefaultTransport if nil.
	Transport http.RoundTripper
	// Optional upper bound for waiting on the network before falling back
	// to stored responses. Zero means wait as long as the network does.
	NetworkTimeout time.Duration
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

// OfflineCache is the interception unit: Install populates the store with
// the seeds, Fetch serves requests network-first with the store as fallback.
type OfflineCache struct {
	storage        cache.Storage
	storeName      string
	origin         string
	originHost     string
	seeds          []*url.URL
	keyer          cachekey.CacheKeyer
	transport      http.RoundTripper
	client         *http.Client
	networkTimeout time.Duration
	log            zerolog.Logger

	storeMutex sync.RWMutex
	store      cache.Store
}

// CreateCache initializes the unit. It does not touch the storage;
// that happens on install.
func CreateCache(config Config) (*OfflineCache, error) {
	if config.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if config.OriginURL.Scheme == "" || config.OriginURL.Host == "" {
		return nil, fmt.Errorf("origin URL %q must have scheme and host", config.OriginURL.String())
	}

	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	origin := originOf(&config.OriginURL)
	storeName := config.StoreName
	if storeName == "" {
		storeName = DefaultStoreName
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("origin", origin).
		Str("store", storeName).
		Logger()

	seedList := config.Seeds
	if seedList == nil {
		seedList = DefaultSeeds
	}
	seeds, err := resolveSeeds(&config.OriginURL, seedList)
	if err != nil {
		return nil, err
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &OfflineCache{
		storage:        config.Storage,
		storeName:      storeName,
		origin:         origin,
		originHost:     config.OriginHost,
		seeds:          seeds,
		keyer:          cachekey.NewCacheKeyer(origin),
		transport:      transport,
		client:         &http.Client{Transport: transport},
		networkTimeout: config.NetworkTimeout,
		log:            logger,
	}, nil
}

// Register adds the unit's install and fetch handlers to the host.
func (o *OfflineCache) Register(h *host.Host) {
	h.OnInstall(func(e *host.InstallEvent) {
		e.WaitUntil(o.Install)
	})
	h.OnFetch(func(e *host.FetchEvent) {
		e.RespondWith(o.Fetch)
	})
}

// StoreName returns the identifier of the store the unit uses.
func (o *OfflineCache) StoreName() string {
	return o.storeName
}

// openedStore returns the unit's store without creating it.
// It is nil until the store exists.
func (o *OfflineCache) openedStore() (cache.Store, error) {
	o.storeMutex.RLock()
	store := o.store
	o.storeMutex.RUnlock()
	if store != nil {
		return store, nil
	}
	if has, err := o.storage.Has(o.storeName); err != nil || !has {
		return nil, err
	}
	return o.openStore()
}

func (o *OfflineCache) openStore() (cache.Store, error) {
	o.storeMutex.Lock()
	defer o.storeMutex.Unlock()
	if o.store != nil {
		return o.store, nil
	}
	store, err := o.storage.Open(o.storeName)
	if err != nil {
		return nil, err
	}
	o.store = store
	return store, nil
}

func resolveSeeds(origin *url.URL, seeds []string) ([]*url.URL, error) {
	resolved := make([]*url.URL, 0, len(seeds))
	seen := make(map[string]bool)
	for _, seed := range seeds {
		ref, err := url.Parse(seed)
		if err != nil {
			return nil, fmt.Errorf("parse seed %q: %w", seed, err)
		}
		u := origin.ResolveReference(ref)
		u.Fragment = ""
		if originOf(u) != originOf(origin) {
			return nil, fmt.Errorf("%w: %s", ErrCrossOrigin, seed)
		}
		if seen[u.String()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSeed, seed)
		}
		seen[u.String()] = true
		resolved = append(resolved, u)
	}
	return resolved, nil
}

func originOf(u *url.URL) string {
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// inScope reports whether the request is for the unit's origin.
func (o *OfflineCache) inScope(req *http.Request) bool {
	return originOf(req.URL) == o.origin
}
