// Command mascd runs the masc-mcp daemon: one HTTP process exposing the
// MCP tool surface described in §6 over whichever durable Store backend
// the configuration selects.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/masc-mcp/masc/internal/config"
	"github.com/masc-mcp/masc/internal/mcp"
	"github.com/masc-mcp/masc/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mascd",
	Short: "masc-mcp room coordination daemon",
	Long:  "mascd serves the MCP tool surface backing one or more masc-mcp rooms over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to masc.yaml (default: ./masc.yaml or $HOME/.masc/masc.yaml)")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opener, closeOpener, err := newStoreOpener(cfg)
	if err != nil {
		return fmt.Errorf("configure store backend %q: %w", cfg.Store, err)
	}
	defer closeOpener()

	mgr := mcp.NewManager(cfg, opener)
	defer mgr.Close()

	handler := mcp.NewHTTPHandler(cfg, mgr)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("mascd listening on %s (store=%s, rooms_dir=%s)", cfg.Addr, cfg.Store, cfg.RoomsDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Print("mascd shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		reapCheckpoints(groupCtx, mgr, cfg)
		return nil
	})

	return group.Wait()
}

// reapCheckpoints periodically calls Room.ReapTimedOut against every room
// Manager has opened so far, transitioning stale InProgress checkpoints to
// Interrupted. It returns when ctx is cancelled.
func reapCheckpoints(ctx context.Context, mgr *mcp.Manager, cfg config.Config) {
	ticker := time.NewTicker(cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range mgr.Names() {
				r, err := mgr.Room(name)
				if err != nil {
					continue
				}
				reaped, err := r.ReapTimedOut(ctx, cfg.CheckpointTimeout)
				if err != nil {
					log.Printf("room %s: checkpoint reap failed: %v", name, err)
					continue
				}
				if len(reaped) > 0 {
					log.Printf("room %s: reaped %d timed-out checkpoint(s)", name, len(reaped))
				}
			}
		}
	}
}

// newStoreOpener builds the mcp.StoreOpener for cfg's configured backend
// and a cleanup func releasing any shared resource (the embedded NATS
// connection backing the SQL hybrid notify channel).
func newStoreOpener(cfg config.Config) (mcp.StoreOpener, func(), error) {
	noop := func() {}

	switch cfg.Store {
	case config.StoreMemory:
		return func(string) (store.Store, error) {
			return store.NewMemory(), nil
		}, noop, nil

	case config.StoreFilesystem:
		return func(name string) (store.Store, error) {
			return store.NewFilesystem(filepath.Join(cfg.RoomsDir, name, ".masc"))
		}, noop, nil

	case config.StoreSQL:
		var opts []store.SQLOption
		closer := noop
		if cfg.NATSURL != "" {
			nc, err := nats.Connect(cfg.NATSURL)
			if err != nil {
				return nil, noop, fmt.Errorf("connect nats at %q: %w", cfg.NATSURL, err)
			}
			opts = append(opts, store.WithNATSConn(nc))
			closer = nc.Close
		}
		return func(name string) (store.Store, error) {
			dir := filepath.Join(cfg.RoomsDir, name)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create room dir %q: %w", dir, err)
			}
			return store.NewSQL(filepath.Join(dir, "masc.db"), opts...)
		}, closer, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}
