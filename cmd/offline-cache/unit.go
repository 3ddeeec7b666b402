package main

import (
	"fmt"
	"net/url"

	offlinecache "github.com/always-cache/offline-cache"
	"github.com/always-cache/offline-cache/cache"
	"github.com/always-cache/offline-cache/host"

	"github.com/rs/zerolog/log"
)

type unit struct {
	storage cache.SQLiteStorage
	cache   *offlinecache.OfflineCache
	host    *host.Host
	origin  url.URL
}

func openStorage(config Config) (cache.SQLiteStorage, error) {
	return cache.NewSQLiteStorage(config.dbFilename())
}

// newUnit wires the interception unit to its storage and host.
func newUnit(config Config) (*unit, error) {
	if config.Origin == "" {
		return nil, fmt.Errorf("please specify origin")
	}
	originURL, err := url.Parse(config.Origin)
	if err != nil {
		return nil, fmt.Errorf("could not parse origin url: %w", err)
	}
	storage, err := openStorage(config)
	if err != nil {
		return nil, err
	}

	network := offlinecache.NetworkTransport(config.Host)
	ocache, err := offlinecache.CreateCache(offlinecache.Config{
		Storage:        storage,
		StoreName:      config.Store,
		Seeds:          config.Seeds,
		OriginURL:      *originURL,
		OriginHost:     config.Host,
		Transport:      network,
		NetworkTimeout: config.NetworkTimeout,
		Logger:         &log.Logger,
	})
	if err != nil {
		storage.Close()
		return nil, err
	}
	h := host.New(network, &log.Logger)
	ocache.Register(h)

	return &unit{
		storage: storage,
		cache:   ocache,
		host:    h,
		origin:  *originURL,
	}, nil
}

func (u *unit) Close() error {
	return u.storage.Close()
}
