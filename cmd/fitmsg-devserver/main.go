package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/fitmsg/internal/devserver"
	"github.com/matheus3301/fitmsg/internal/logging"
	"github.com/matheus3301/fitmsg/internal/profile"
	"github.com/matheus3301/fitmsg/internal/store"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "listen address")
	dbPath := flag.String("db", "", "database path (default $XDG_DATA_HOME/fitmsg/devserver.db)")
	seed := flag.Bool("seed", false, "populate an empty database with a demo studio and print tokens")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	if *dbPath == "" {
		*dbPath = profile.DefaultPaths().DevServerDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0700); err != nil {
		fatal(err)
	}

	logger, err := logging.New(logging.Options{Profile: "devserver", Level: *level})
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(*dbPath)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = db.Close() }()
	result, err := db.Migrate()
	if err != nil {
		fatal(err)
	}
	logger.Info("database ready", zap.String("path", *dbPath), zap.Uint("version", result.Version), zap.Bool("migrated", result.Changed))

	if *seed {
		users, err := db.Seed()
		if err != nil {
			fatal(err)
		}
		printSeeded(users)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           devserver.New(db, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}

func printSeeded(users []store.SeededUser) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tROLE\tEMAIL\tACCESS TOKEN\tREFRESH TOKEN")
	for _, su := range users {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			su.User.ID, su.User.Name, su.User.Role, su.User.Email, su.Tokens.AccessToken, su.Tokens.RefreshToken)
	}
	_ = w.Flush()
	fmt.Println()
	fmt.Println("sign a daemon in with FITMSG_ACCESS_TOKEN, FITMSG_REFRESH_TOKEN and FITMSG_ROLE")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
