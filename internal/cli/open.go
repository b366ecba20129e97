package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/refchain/refchain/internal/codec"
	"github.com/refchain/refchain/internal/config"
	"github.com/refchain/refchain/internal/store"
	badgerstore "github.com/refchain/refchain/internal/store/badger"
	"github.com/refchain/refchain/internal/store/memory"
	"github.com/refchain/refchain/internal/store/sqlite"
)

// openStore resolves the configuration and opens the selected backend.
// The CLI deals in raw JSON payloads, so the registry accepts any event
// type verbatim.
func openStore(opts *RootOptions) (store.Store, *slog.Logger, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	reg := codec.NewRegistry()
	reg.SetFallback(codec.RawFallback)

	var s store.Store
	switch cfg.Backend {
	case config.BackendMemory:
		s = memory.New(reg, memory.WithLogger(logger))
	case config.BackendSQLite:
		s, err = sqlite.Open(cfg.Path, reg, sqlite.WithLogger(logger))
	case config.BackendBadger:
		s, err = badgerstore.Open(cfg.Path, reg, badgerstore.WithLogger(logger))
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return s, logger, nil
}
