package coordinator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mkmik/acre/internal/edit"
	"github.com/mkmik/acre/internal/lsp"
	"github.com/mkmik/acre/internal/win"
)

// runCmd routes a look ('L') event in the command window to an LSP request,
// an action invocation, or a plumb navigation.
func (c *Coordinator) runCmd(ctx context.Context, ev win.Event) error {
	word := strings.TrimSpace(ev.Text)

	if tw := c.windowAt(ev.Q0); tw != nil {
		if kind, ok := gestureWords[word]; ok {
			return c.issueGesture(ctx, tw, kind)
		}
	}

	if client, idx := c.actionAt(ev.Q0); client != "" {
		return c.runCodeAction(ctx, client, idx)
	}

	return c.plumbText(word)
}

// windowAt finds the last addr entry with offset < q0 whose id is non-zero,
// identifying which tracked window (if any) the click landed under.
func (c *Coordinator) windowAt(q0 int) *trackedWindow {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	var best *addrEntry
	for i := range c.st.addr {
		e := &c.st.addr[i]
		if e.offset < q0 && e.id != 0 {
			if best == nil || e.offset > best.offset {
				best = e
			}
		}
	}
	if best == nil {
		return nil
	}
	return c.st.windows[best.id]
}

// actionAt finds the last action_addrs entry with offset < q0, identifying
// which rendered action (if any) the click landed under.
func (c *Coordinator) actionAt(q0 int) (client string, idx int) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	var best *actionAddrEntry
	for i := range c.st.actionAddrs {
		e := &c.st.actionAddrs[i]
		if e.offset < q0 && e.index >= 0 {
			if best == nil || e.offset > best.offset {
				best = e
			}
		}
	}
	if best == nil {
		return "", -1
	}
	return best.client, best.index
}

// issueGesture sends the window's current body as a didChange (bumping its
// version) and then issues the LSP request the clicked word named at the
// window's current dot, handling the response inline (see dispatchGesture).
func (c *Coordinator) issueGesture(ctx context.Context, tw *trackedWindow, kind gestureKind) error {
	w, err := win.Open(c.fsys, tw.id)
	if err != nil {
		return fmt.Errorf("coordinator: reopen window %d: %w", tw.id, err)
	}
	defer w.Clunk()

	body, err := w.ReadBody()
	if err != nil {
		return fmt.Errorf("coordinator: read body of %d: %w", tw.id, err)
	}
	if err := tw.client.DidChange(ctx, tw.uri, []lsp.TextDocumentContentChangeEvent{{Text: body}}); err != nil {
		return fmt.Errorf("coordinator: didChange %d: %w", tw.id, err)
	}

	pos, err := dotPosition(w, body)
	if err != nil {
		return fmt.Errorf("coordinator: read dot of %d: %w", tw.id, err)
	}
	return c.dispatchGesture(ctx, tw, kind, pos)
}

// dotPosition reads the window's current selection (acme's "dot") and
// converts its rune offset into the LSP Position the clicked gesture
// should be issued against.
func dotPosition(w *win.Win, body string) (lsp.Position, error) {
	q0, _, err := w.Dot()
	if err != nil {
		return lsp.Position{}, err
	}
	byteOff := edit.RuneOffsetToByteOffset(body, q0)
	return edit.NewConverter(body).Position(byteOff), nil
}

// dispatchGesture issues the request named by kind and hands its result to
// the matching after* renderer. Transport.Call already blocks until the
// server replies, so there is no separate pending-request bookkeeping here:
// the response is handled inline rather than routed back in asynchronously
// through lspMsg.
func (c *Coordinator) dispatchGesture(ctx context.Context, tw *trackedWindow, kind gestureKind, pos lsp.Position) error {
	switch kind {
	case gestureDefinition:
		locs, err := tw.client.Definition(ctx, tw.uri, pos)
		return c.afterLocations(locs, err)
	case gestureImpl:
		locs, err := tw.client.Implementation(ctx, tw.uri, pos)
		return c.afterLocations(locs, err)
	case gestureTypedef:
		locs, err := tw.client.TypeDefinition(ctx, tw.uri, pos)
		return c.afterLocations(locs, err)
	case gestureReferences:
		locs, err := tw.client.References(ctx, tw.uri, pos, true)
		return c.afterReferenceList(locs, err)
	case gestureHover:
		hover, err := tw.client.Hover(ctx, tw.uri, pos)
		return c.afterHover(hover, err)
	case gestureComplete:
		list, err := tw.client.Completion(ctx, tw.uri, pos)
		return c.afterCompletion(tw.client.Name(), list, err)
	case gestureSymbols:
		raw, err := tw.client.DocumentSymbols(ctx, tw.uri)
		return c.afterDocumentSymbols(raw, err)
	case gestureSignature:
		help, err := tw.client.SignatureHelp(ctx, tw.uri, pos)
		return c.afterSignatureHelp(help, err)
	case gestureLens:
		lenses, err := tw.client.CodeLens(ctx, tw.uri)
		return c.afterCodeLens(lenses, err)
	case gestureAssist:
		actions, err := tw.client.CodeAction(ctx, tw.uri, lsp.Range{Start: pos, End: pos}, nil)
		return c.afterCodeAction(tw.client.Name(), actions, err)
	}
	return nil
}

// runCodeAction applies the action previously stored at (client, idx):
// a completion item applies its TextEdit; a code action applies its
// WorkspaceEdit; a bare command is unsupported.
func (c *Coordinator) runCodeAction(ctx context.Context, client string, idx int) error {
	c.st.mu.Lock()
	actions := c.st.actions[client]
	c.st.mu.Unlock()
	if idx < 0 || idx >= len(actions) {
		return nil
	}
	a := actions[idx]

	switch a.Kind {
	case ActionCompletion:
		if a.Completion == nil || a.Completion.TextEdit == nil {
			return nil
		}
		return c.applyToFocusedWindow([]lsp.TextEdit{*a.Completion.TextEdit})
	case ActionCommand:
		if a.CodeAction == nil {
			return nil
		}
		if a.CodeAction.Edit == nil {
			c.pushOutput(fmt.Sprintf("unsupported: command-only action %q", a.Title))
			return nil
		}
		return c.applyWorkspaceEdit(a.CodeAction.Edit)
	}
	return nil
}

func (c *Coordinator) applyToFocusedWindow(edits []lsp.TextEdit) error {
	c.st.mu.Lock()
	tw := c.st.windows[c.st.focus]
	c.st.mu.Unlock()
	if tw == nil {
		return nil
	}
	w, err := win.Open(c.fsys, tw.id)
	if err != nil {
		return fmt.Errorf("coordinator: reopen window %d: %w", tw.id, err)
	}
	defer w.Clunk()
	return edit.Apply(w, edits, false)
}

func (c *Coordinator) applyWorkspaceEdit(we *lsp.WorkspaceEdit) error {
	for uri, edits := range we.Changes {
		path := lsp.URIToFilePath(uri)
		tw := c.windowForPath(path)
		if tw == nil {
			continue
		}
		w, err := win.Open(c.fsys, tw.id)
		if err != nil {
			return fmt.Errorf("coordinator: reopen window %d: %w", tw.id, err)
		}
		err = edit.Apply(w, edits, false)
		w.Clunk()
		if err != nil {
			return fmt.Errorf("coordinator: apply workspace edit to %d: %w", tw.id, err)
		}
	}
	return nil
}

func (c *Coordinator) windowForPath(path string) *trackedWindow {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	for _, tw := range c.st.windows {
		if tw.path == path {
			return tw
		}
	}
	return nil
}

// plumbText parses text as "path[:line...]", verifies the path exists, and
// plumbs it; this is the fallback for a look event that matched neither a
// tracked window nor a rendered action.
func (c *Coordinator) plumbText(text string) error {
	path, _, _ := strings.Cut(text, ":")
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return c.plumber.SendFile(text)
}

func (c *Coordinator) pushOutput(line string) {
	c.st.mu.Lock()
	c.st.output = append([]string{line}, c.st.output...)
	c.st.mu.Unlock()
}
