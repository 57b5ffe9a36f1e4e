package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/minodes/hmm-filter/internal/filter"
	"github.com/minodes/hmm-filter/internal/rpc"
	"github.com/minodes/hmm-filter/internal/store"
)

// #region main
func main() {
	dbPath := envOr("FILTER_DB", "hmm_filter.db")
	addr := envOr("FILTER_ADDR", "localhost:50051")

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	st, err := store.NewStore(dbPath)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.Close()

	srv := rpc.NewServer(st, filter.DefaultConfig(), log)
	if err := srv.LoadActive(); err != nil {
		log.WithError(err).Fatal("restore active model")
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).WithField("addr", addr).Fatal("listen")
	}

	g := grpc.NewServer()
	srv.Register(g)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- g.Serve(lis) }()

	log.WithFields(logrus.Fields{
		"addr": addr,
		"db":   dbPath,
	}).Info("filter service listening")

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		g.GracefulStop()
	case err := <-errCh:
		log.WithError(err).Fatal("serve")
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
