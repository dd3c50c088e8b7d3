package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
	logsvc "github.com/trezcool/practicehub/services/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	conf := core.NewConfig()
	c := newContainer(conf)

	var runErr error
	err := c.Invoke(func(a *app, logger core.Logger, closeBackend closer) {
		defer func() {
			if err := closeBackend(); err != nil {
				logger.Error("closing credential store", err)
			}
			if rl, ok := logger.(*logsvc.RollbarLogger); ok {
				rl.Close()
			}
		}()
		runErr = a.run(ctx, os.Args)
	})
	stop()

	if err != nil {
		log.Fatal(errors.Wrap(err, "starting practicehub"))
	}
	if runErr != nil {
		if runErr != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", runErr)
		}
		os.Exit(1)
	}
}
