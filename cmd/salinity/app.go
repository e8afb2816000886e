package main

import (
	"errors"
	"log/slog"

	"github.com/aouyang1/go-salinity/config"
	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/notify"
	"github.com/aouyang1/go-salinity/store"
)

// app holds the process wide collaborators built from the config
type app struct {
	assembler *dataset.Assembler
	publisher notify.Publisher
	closers   []func() error
}

func newApp(cfg *config.Config, withEvents bool) (*app, error) {
	a := &app{publisher: notify.Nop{}}

	var fallback dataset.SalinitySource
	if cfg.DatabaseURL != "" {
		st, err := store.Open(cfg.DatabaseURL, &store.Options{Location: cfg.Location()})
		if err != nil {
			return nil, err
		}
		fallback = st
		a.closers = append(a.closers, st.Close)
	}

	var err error
	a.assembler, err = dataset.NewAssembler(&dataset.Options{GapLimit: cfg.GapLimit}, fallback)
	if err != nil {
		a.Close()
		return nil, err
	}

	if withEvents {
		a.publisher = a.buildPublisher(cfg)
	}
	return a, nil
}

func (a *app) buildPublisher(cfg *config.Config) notify.Publisher {
	var pubs []notify.Publisher
	if cfg.RedisAddr != "" {
		r := notify.NewRedisPublisher(cfg.RedisAddr, "")
		pubs = append(pubs, r)
		a.closers = append(a.closers, r.Close)
	}
	if len(cfg.KafkaBrokers) > 0 {
		k := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		pubs = append(pubs, k)
		a.closers = append(a.closers, k.Close)
	}
	if len(pubs) == 0 {
		slog.Info("no event bus configured, events are dropped")
		return notify.Nop{}
	}
	// each bus retries on its own so a flaky one never redelivers to the others
	return notify.RetryEach(pubs, nil)
}

func (a *app) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
