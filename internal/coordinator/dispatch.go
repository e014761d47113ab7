package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mkmik/acre/internal/lsp"
)

func tryUnmarshal(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

// lspMsg demultiplexes an asynchronous server-pushed event (as opposed to a
// direct request/response pair, handled synchronously at the call site in
// gestures.go) by payload kind.
func (c *Coordinator) lspMsg(ctx context.Context, ev lsp.Event) error {
	switch ev.Kind {
	case lsp.EventDiagnostics:
		c.applyDiagnostics(ev.Diagnostics)
	case lsp.EventShowMessage:
		c.pushOutput(ev.ShowMessage.Message)
	case lsp.EventLogMessage:
		c.pushOutput(ev.LogMessage.Message)
	case lsp.EventProgress:
		c.applyProgress(ev.Server, ev.Progress)
	case lsp.EventServerExited:
		return fmt.Errorf("coordinator: lsp server %q exited: %v", ev.Server, ev.Exited)
	default:
		return fmt.Errorf("coordinator: unrecognized lsp event kind %v", ev.Kind)
	}
	return nil
}

func (c *Coordinator) applyDiagnostics(p *lsp.PublishDiagnosticsParams) {
	path := lsp.URIToFilePath(p.URI)
	lines := make([]string, 0, len(p.Diagnostics))
	for _, d := range p.Diagnostics {
		lines = append(lines, fmt.Sprintf("%s:%d: [%s] %s", path, d.Range.Start.Line+1, severityTag(d.Severity), firstLine(d.Message)))
	}

	c.st.mu.Lock()
	if len(lines) == 0 {
		delete(c.st.diags, path)
	} else {
		c.st.diags[path] = lines
	}
	c.st.mu.Unlock()
}

func severityTag(s lsp.DiagnosticSeverity) string {
	if s == 0 {
		s = lsp.DiagnosticSeverityError
	}
	return s.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func (c *Coordinator) applyProgress(server string, p *lsp.ProgressEvent) {
	key := server + ":" + p.Token
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if p.Done {
		delete(c.st.progress, key)
		return
	}
	existing, ok := c.st.progress[key]
	if !ok {
		existing = &ProgressState{}
		c.st.progress[key] = existing
	}
	if p.Title != "" {
		existing.Title = p.Title
	}
	existing.Message = p.Message
	existing.Percentage = p.Percentage
}

// --- synchronous request-response handlers, invoked directly from
// gestures.go once Transport.Call returns ---

func (c *Coordinator) afterLocations(locs []lsp.Location, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	if len(locs) == 0 {
		return nil
	}
	return c.plumbLocation(locs[0])
}

func (c *Coordinator) afterReferenceList(locs []lsp.Location, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	lines := make([]string, 0, len(locs))
	for _, l := range locs {
		lines = append(lines, formatLocation(l))
	}
	c.pushOutput(strings.Join(lines, "\n"))
	return nil
}

func (c *Coordinator) afterHover(h *lsp.Hover, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	if text := lsp.HoverText(h); text != "" {
		c.pushOutput(text)
	}
	return nil
}

func (c *Coordinator) afterCompletion(client string, list *lsp.CompletionList, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	items := list.Items
	if len(items) > 10 {
		items = items[:10]
	}
	actions := make([]Action, 0, len(items))
	for i := range items {
		item := items[i]
		actions = append(actions, Action{Kind: ActionCompletion, Title: completionTitle(item), Completion: &item})
	}
	c.st.mu.Lock()
	c.st.actions[client] = actions
	c.st.mu.Unlock()
	return nil
}

// completionTitle renders a completion item as "[insert] <label>: (<kind>)
// <detail>", omitting the kind/detail parenthetical when the server didn't
// supply either.
func completionTitle(item lsp.CompletionItem) string {
	title := fmt.Sprintf("[insert] %s", item.Label)
	switch {
	case item.Kind != 0 && item.Detail != "":
		title += fmt.Sprintf(": (%s) %s", item.Kind, item.Detail)
	case item.Kind != 0:
		title += fmt.Sprintf(": (%s)", item.Kind)
	case item.Detail != "":
		title += fmt.Sprintf(": %s", item.Detail)
	}
	return title
}

func (c *Coordinator) afterDocumentSymbols(raw []byte, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	text, rerr := renderDocumentSymbols(raw)
	if rerr != nil {
		return fmt.Errorf("coordinator: unrecognized documentSymbol payload: %w", rerr)
	}
	if text != "" {
		c.pushOutput(text)
	}
	return nil
}

func (c *Coordinator) afterSignatureHelp(help *lsp.SignatureHelp, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	lines := make([]string, 0, len(help.Signatures))
	for _, s := range help.Signatures {
		lines = append(lines, s.Label)
	}
	if len(lines) > 0 {
		c.pushOutput(strings.Join(lines, "\n"))
	}
	return nil
}

func (c *Coordinator) afterCodeLens(lenses []lsp.CodeLens, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	lines := make([]string, 0, len(lenses))
	for _, l := range lenses {
		if l.Command != nil {
			lines = append(lines, l.Command.Title)
		}
	}
	if len(lines) > 0 {
		c.pushOutput(strings.Join(lines, "\n"))
	}
	return nil
}

func (c *Coordinator) afterCodeAction(client string, actions []lsp.CodeAction, err error) error {
	if err != nil {
		c.pushOutput(err.Error())
		return nil
	}
	out := make([]Action, 0, len(actions))
	for i := range actions {
		a := actions[i]
		out = append(out, Action{Kind: ActionCommand, Title: a.Title, CodeAction: &a})
	}
	c.st.mu.Lock()
	c.st.actions[client] = out
	c.st.mu.Unlock()
	return nil
}

func (c *Coordinator) plumbLocation(l lsp.Location) error {
	path := lsp.URIToFilePath(l.URI)
	return c.plumber.SendLocation(path, l.Range.Start.Line+1)
}

func formatLocation(l lsp.Location) string {
	return fmt.Sprintf("%s:%d", lsp.URIToFilePath(l.URI), l.Range.Start.Line+1)
}

// renderDocumentSymbols decodes the documentSymbol response, which servers
// may shape as either the flat SymbolInformation[] or the hierarchical
// DocumentSymbol[], and renders each form accordingly: flat entries as
// "container::name (kind): path:line", nested
// ones recursively with a "::"-joined parent-name prefix, sorted by each
// level's start line.
func renderDocumentSymbols(raw []byte) (string, error) {
	var probe []map[string]json.RawMessage
	if err := tryUnmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("decode symbol array: %w", err)
	}
	if len(probe) == 0 {
		return "", nil
	}

	if _, isFlat := probe[0]["location"]; isFlat {
		var flat []lsp.SymbolInformation
		if err := tryUnmarshal(raw, &flat); err != nil {
			return "", fmt.Errorf("decode SymbolInformation[]: %w", err)
		}
		return renderFlatSymbols(flat), nil
	}

	var nested []lsp.DocumentSymbol
	if err := tryUnmarshal(raw, &nested); err != nil {
		return "", fmt.Errorf("decode DocumentSymbol[]: %w", err)
	}
	return renderNestedSymbols(nested, nil), nil
}

func renderFlatSymbols(syms []lsp.SymbolInformation) string {
	lines := make([]string, 0, len(syms))
	for _, s := range syms {
		lines = append(lines, fmt.Sprintf("%s::%s (%s): %s:%d", s.ContainerName, s.Name, s.Kind, lsp.URIToFilePath(s.Location.URI), s.Location.Range.Start.Line+1))
	}
	return strings.Join(lines, "\n")
}

func renderNestedSymbols(syms []lsp.DocumentSymbol, parents []string) string {
	sort.Slice(syms, func(i, j int) bool { return syms[i].Range.Start.Line < syms[j].Range.Start.Line })
	var lines []string
	prefix := strings.Join(parents, "::")
	for _, s := range syms {
		name := s.Name
		if prefix != "" {
			name = prefix + "::" + name
		}
		lines = append(lines, fmt.Sprintf("%s (%s): line %d", name, s.Kind, s.Range.Start.Line+1))
		if len(s.Children) > 0 {
			childPrefix := append(append([]string{}, parents...), s.Name)
			lines = append(lines, renderNestedSymbols(s.Children, childPrefix))
		}
	}
	return strings.Join(lines, "\n")
}
