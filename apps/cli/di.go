package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/guard"
	"github.com/trezcool/practicehub/core/session"
	"github.com/trezcool/practicehub/services/api"
	logsvc "github.com/trezcool/practicehub/services/logger"
	"github.com/trezcool/practicehub/storage/authstore"
	filestore "github.com/trezcool/practicehub/storage/authstore/file"
	inmemstore "github.com/trezcool/practicehub/storage/authstore/inmem"
	redisstore "github.com/trezcool/practicehub/storage/authstore/redis"
)

// closer releases the credential backend.
type closer func() error

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stderr, "CLI : ", log.LstdFlags)
	if conf.RollbarToken != "" && !conf.Debug {
		return logsvc.NewRollbarLogger(stdLogger, conf)
	}
	lvl := logsvc.LevelWarn
	if conf.Debug {
		lvl = logsvc.LevelDebug
	}
	return logsvc.NewConsoleLogger(stdLogger, lvl)
}

func newBackend(conf *core.Config, logger core.Logger) (authstore.Backend, closer, error) {
	noop := func() error { return nil }

	switch conf.Store.Backend {
	case core.StoreMemory:
		return inmemstore.New(), noop, nil
	case core.StoreRedis:
		store, closeFn, err := redisstore.Open(context.Background(), conf.Store.RedisAddr, conf.Store.RedisPassword, conf.Store.RedisDB)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "connecting to redis at %s", conf.Store.RedisAddr)
		}
		logger.Debug(fmt.Sprintf("credentials stored in redis at %s", conf.Store.RedisAddr))
		return store, closer(closeFn), nil
	case core.StoreFile, "":
		logger.Debug(fmt.Sprintf("credentials stored in %s", conf.Store.Dir))
		return filestore.New(conf.Store.Dir), noop, nil
	}
	return nil, nil, errors.Errorf("unknown credential store %q", conf.Store.Backend)
}

func newCredentialStore(conf *core.Config, backend authstore.Backend) *authstore.Store {
	return authstore.New(backend, conf.Store.Key)
}

func newClient(conf *core.Config, store *authstore.Store, router *guard.Router, logger core.Logger) *api.Client {
	return api.NewClient(conf, store, router, logger)
}

func newSession(client *api.Client, store *authstore.Store, valid *core.Validator, logger core.Logger) *session.Service {
	return session.NewService(context.Background(), client, store, valid, logger)
}

func newGuard(sess *session.Service, router *guard.Router, logger core.Logger) *guard.Guard {
	g := guard.New(sess, logger)
	router.SetGuard(g)
	return g
}

// newContainer returns the dependency container of the program.
func newContainer(conf *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(func() *core.Config { return conf }))
	must(c.Provide(newLogger))
	must(c.Provide(newBackend))
	must(c.Provide(newCredentialStore))
	must(c.Provide(core.NewValidator))
	must(c.Provide(guard.NewRouter))
	must(c.Provide(newClient))
	must(c.Provide(newSession))
	must(c.Provide(newGuard))
	must(c.Provide(newApp))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
