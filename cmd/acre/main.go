// Command acre bridges a 9P2000 editor (in the acme tradition) to one or
// more LSP language servers: it opens a command window named "acre" in the
// editor, spawns the configured servers, and keeps diagnostics, navigation,
// completion, and the rest flowing between the two.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mkmik/acre/internal/config"
	"github.com/mkmik/acre/internal/coordinator"
	"github.com/mkmik/acre/internal/lsp"
	"github.com/mkmik/acre/internal/ninep"
	"github.com/mkmik/acre/internal/plumb"
	"github.com/mkmik/acre/internal/win"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "acre:", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if errors.Is(err, config.ErrNoServers) {
		return 1
	}
	return 1
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to acre.toml (default: XDG config dir)")
		editorAddr = flag.String("addr", "", "unix socket address of the editor's 9P file server")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	path := *configPath
	if path == "" {
		path, err = config.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	addr := *editorAddr
	if addr == "" {
		addr = os.Getenv("acre")
	}
	if addr == "" {
		return fmt.Errorf("no editor address given (pass -addr or set $acre)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := ninep.Dial("unix", addr, sugar)
	if err != nil {
		return fmt.Errorf("dial editor at %s: %w", addr, err)
	}
	defer conn.Close()

	fsys, err := ninep.Attach(conn, os.Getenv("USER"), "")
	if err != nil {
		return fmt.Errorf("attach to editor filesystem: %w", err)
	}

	cmdWin, err := win.New(fsys)
	if err != nil {
		return fmt.Errorf("create command window: %w", err)
	}
	if err := cmdWin.Write("tag", []byte("acre")); err != nil {
		return fmt.Errorf("name command window: %w", err)
	}

	clients := make(map[string]*lsp.LspClient, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		client, err := lsp.Start(ctx, sc, sugar)
		if err != nil {
			sugar.Errorw("failed to start language server, continuing without it", "server", sc.Name, "error", err)
			continue
		}
		clients[sc.Name] = client
	}
	defer func() {
		for _, client := range clients {
			client.Close(context.Background())
		}
	}()

	plumbFid, err := fsys.Open("plumb/send", ninep.OWRITE)
	if err != nil {
		return fmt.Errorf("open plumber: %w", err)
	}
	plumber := plumb.NewWriter(fidWriter{plumbFid})

	coord := coordinator.New(fsys, cmdWin, clients, plumber, sugar)
	return coord.Run(ctx)
}

// fidWriter adapts a ninep.Fid's Write(offset, data) calls to an io.Writer
// for one-shot, offset-0 writes (the plumber's send file is append-only).
type fidWriter struct {
	fid *ninep.Fid
}

func (w fidWriter) Write(p []byte) (int, error) {
	n, err := w.fid.Write(0, p)
	return int(n), err
}
