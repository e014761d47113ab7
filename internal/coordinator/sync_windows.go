package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/mkmik/acre/internal/lsp"
	"github.com/mkmik/acre/internal/win"
)

// syncWindows enumerates every open editor window, matches each to a
// configured client whose file pattern matches (clients are held in a map,
// so when several patterns match a window, which client is chosen is not
// defined and need not follow the config file's order), and brings the LSP
// document-open/close state in line with what's actually open. Clients
// that have not yet completed their initialize
// handshake are skipped; their windows will be retried on a later sync.
func (c *Coordinator) syncWindows(ctx context.Context) error {
	infos, err := win.ListWindows(c.fsys)
	if err != nil {
		return fmt.Errorf("coordinator: list windows: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	seen := make(map[int]bool, len(infos))

	for _, info := range infos {
		if info.ID == c.cmdWin.ID() {
			continue
		}
		seen[info.ID] = true

		client := c.matchClient(info.Name)
		if client == nil {
			continue
		}

		c.st.mu.Lock()
		_, tracked := c.st.windows[info.ID]
		c.st.mu.Unlock()
		if tracked {
			continue
		}

		if err := c.openWindow(ctx, info, client); err != nil {
			c.log.Warnw("coordinator: failed to open window for lsp", "window", info.ID, "path", info.Name, "error", err)
			continue
		}
	}

	c.st.mu.Lock()
	var gone []*trackedWindow
	for id, tw := range c.st.windows {
		if !seen[id] {
			gone = append(gone, tw)
		}
	}
	c.st.mu.Unlock()

	for _, tw := range gone {
		if err := tw.client.DidClose(ctx, tw.uri); err != nil {
			c.log.Warnw("coordinator: didClose failed", "window", tw.id, "error", err)
		}
		c.st.mu.Lock()
		delete(c.st.windows, tw.id)
		c.st.mu.Unlock()
	}

	return nil
}

func (c *Coordinator) matchClient(path string) *lsp.LspClient {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	for _, client := range c.clients {
		if !c.st.capsReady[client.Name()] {
			continue
		}
		if client.Config().MatchesFile(path) {
			return client
		}
	}
	return nil
}

func (c *Coordinator) openWindow(ctx context.Context, info win.WindowInfo, client *lsp.LspClient) error {
	w, err := win.Open(c.fsys, info.ID)
	if err != nil {
		return fmt.Errorf("open %d: %w", info.ID, err)
	}
	body, err := w.ReadBody()
	if err != nil {
		return fmt.Errorf("read body of %d: %w", info.ID, err)
	}

	uri := lsp.FilePathToURI(info.Name)
	langID := lsp.DetectLanguageID(info.Name)
	if err := client.DidOpen(ctx, uri, langID, body); err != nil {
		return fmt.Errorf("didOpen %d: %w", info.ID, err)
	}

	c.st.mu.Lock()
	c.st.windows[info.ID] = &trackedWindow{id: info.ID, path: info.Name, client: client, uri: uri}
	c.st.mu.Unlock()
	return nil
}
