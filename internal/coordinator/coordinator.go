package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mkmik/acre/internal/lsp"
	"github.com/mkmik/acre/internal/ninep"
	"github.com/mkmik/acre/internal/plumb"
	"github.com/mkmik/acre/internal/win"
)

// Coordinator is the daemon's single long-lived thread that selects over
// every input stream and keeps the command window's body in sync with
// accumulated editor and language-server state.
type Coordinator struct {
	fsys    *ninep.Fsys
	cmdWin  *win.Win
	clients map[string]*lsp.LspClient
	plumber *plumb.Writer
	log     *zap.SugaredLogger

	st *state
}

// New constructs a Coordinator over an already-open command window and a
// started set of LSP clients, keyed by configured server name.
func New(fsys *ninep.Fsys, cmdWin *win.Win, clients map[string]*lsp.LspClient, plumber *plumb.Writer, log *zap.SugaredLogger) *Coordinator {
	c := &Coordinator{
		fsys:    fsys,
		cmdWin:  cmdWin,
		clients: clients,
		plumber: plumber,
		log:     log,
		st:      newState(),
	}
	// Every client handed to New has already completed its initialize
	// handshake (lsp.Start blocks until it does), so sync_windows can
	// match against it immediately.
	for name, client := range clients {
		c.st.capsReady[name] = true
		c.st.caps[name] = client.Capabilities()
	}
	return c
}

// errExit is returned internally by loop steps that should terminate Run
// without it being a failure worth logging as an error (a clean "Del" on
// the command window, for instance).
var errExit = fmt.Errorf("coordinator: exit requested")

// Run fans in the editor's log stream, the command window's own event
// stream, every LSP client's event stream, and a shared error channel, and
// loops until one of them signals exit or a fatal error.
func (c *Coordinator) Run(ctx context.Context) error {
	logReader, err := win.OpenLog(c.fsys)
	if err != nil {
		return fmt.Errorf("coordinator: open editor log: %w", err)
	}
	winEvents, err := c.cmdWin.Events()
	if err != nil {
		return fmt.Errorf("coordinator: open command window events: %w", err)
	}

	logCh := make(chan win.LogEvent)
	winCh := make(chan win.Event)
	errCh := make(chan error, 8)

	go pump(logReader.Next, logCh, errCh)
	go pump(winEvents.Next, winCh, errCh)

	lspCh := c.fanInClients(errCh)

	if err := c.syncWindows(ctx); err != nil {
		return fmt.Errorf("coordinator: initial sync_windows: %w", err)
	}
	if err := c.render(); err != nil {
		return fmt.Errorf("coordinator: initial render: %w", err)
	}

	for {
		skipRender := false

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errCh:
			return fmt.Errorf("coordinator: reader failed: %w", err)

		case ev := <-logCh:
			switch ev.Op {
			case "new", "del":
				if err := c.syncWindows(ctx); err != nil {
					return err
				}
			case "focus":
				c.st.mu.Lock()
				c.st.focus = ev.ID
				c.st.mu.Unlock()
			case "put":
				if err := c.cmdPut(ctx, ev.ID); err != nil {
					c.log.Warnw("coordinator: cmdPut failed", "window", ev.ID, "error", err)
				}
				skipRender = true
			}

		case ev := <-winCh:
			if err := c.handleWinEvent(ctx, ev); err != nil {
				if err == errExit {
					return nil
				}
				return err
			}

		case ev, ok := <-lspCh:
			if !ok {
				return fmt.Errorf("coordinator: all LSP clients disconnected")
			}
			if err := c.lspMsg(ctx, ev); err != nil {
				return err
			}
		}

		if !skipRender {
			if err := c.render(); err != nil {
				return err
			}
		}
	}
}

// pump adapts a blocking Next()-style reader into a channel, so Run's
// select can fan in an arbitrary number of such sources uniformly.
func pump[T any](next func() (T, error), out chan<- T, errCh chan<- error) {
	for {
		v, err := next()
		if err != nil {
			errCh <- err
			return
		}
		out <- v
	}
}

// fanInClients merges every configured client's Events channel into one,
// preserving each source's own arrival order while
// leaving cross-source interleaving arbitrary.
func (c *Coordinator) fanInClients(errCh chan<- error) <-chan lsp.Event {
	out := make(chan lsp.Event)
	for _, client := range c.clients {
		client := client
		go func() {
			for ev := range client.Events() {
				out <- ev
			}
		}()
	}
	return out
}

func (c *Coordinator) handleWinEvent(ctx context.Context, ev win.Event) error {
	if (ev.C2 == 'x' || ev.C2 == 'X') && ev.Text == "Del" {
		return errExit
	}
	if ev.Text == "Get" {
		c.st.mu.Lock()
		c.st.actions = make(map[string][]Action)
		c.st.output = nil
		c.st.diags = make(map[string][]string)
		c.st.mu.Unlock()
		return c.syncWindows(ctx)
	}
	if ev.C2 == 'L' || ev.C2 == 'l' {
		return c.runCmd(ctx, ev)
	}
	return nil
}

// cmdPut handles a "put" log record: the window being saved has just had
// its on-disk content refreshed by the editor, so the tracked document's
// server-side copy is brought up to date with a didChange carrying the
// saved body, followed by a didSave.
func (c *Coordinator) cmdPut(ctx context.Context, windowID int) error {
	c.st.mu.Lock()
	tw := c.st.windows[windowID]
	c.st.mu.Unlock()
	if tw == nil {
		return nil
	}

	w, err := win.Open(c.fsys, windowID)
	if err != nil {
		return fmt.Errorf("coordinator: reopen window %d: %w", windowID, err)
	}
	defer w.Clunk()

	body, err := w.ReadBody()
	if err != nil {
		return fmt.Errorf("coordinator: read body of %d: %w", windowID, err)
	}

	if err := tw.client.DidChange(ctx, tw.uri, []lsp.TextDocumentContentChangeEvent{{Text: body}}); err != nil {
		return fmt.Errorf("coordinator: didChange %d: %w", windowID, err)
	}
	if err := tw.client.DidSave(ctx, tw.uri, body); err != nil {
		return fmt.Errorf("coordinator: didSave %d: %w", windowID, err)
	}
	return nil
}
