package coordinator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkmik/acre/internal/lsp"
)

// render produces the command window's deterministic body from current
// state and writes it back only if it changed, so running render twice
// with unchanged state writes the window exactly once.
func (c *Coordinator) render() error {
	c.st.mu.Lock()
	body, addr, actionAddrs := c.buildBody()
	changed := body != c.st.body
	if changed {
		c.st.body = body
		c.st.addr = addr
		c.st.actionAddrs = actionAddrs
	}
	c.st.mu.Unlock()

	if !changed {
		return nil
	}

	if err := c.cmdWin.Write("body", []byte(body)); err != nil {
		return fmt.Errorf("coordinator: write command window body: %w", err)
	}
	if err := c.cmdWin.Ctl("cleartag"); err != nil {
		return fmt.Errorf("coordinator: cleartag: %w", err)
	}
	if err := c.cmdWin.Ctl("clean"); err != nil {
		return fmt.Errorf("coordinator: clean: %w", err)
	}
	if err := c.cmdWin.Write("tag", []byte(" Get")); err != nil {
		return fmt.Errorf("coordinator: append Get to tag: %w", err)
	}
	return nil
}

// buildBody must be called with st.mu held. It returns the rendered text
// plus the addr/action_addrs tables used by gesture routing to map a click
// offset back to a window id or action.
func (c *Coordinator) buildBody() (string, []addrEntry, []actionAddrEntry) {
	var b strings.Builder
	var addr []addrEntry
	var actionAddrs []actionAddrEntry

	c.writeDiagnostics(&b)

	windows := make([]*trackedWindow, 0, len(c.st.windows))
	for _, tw := range c.st.windows {
		windows = append(windows, tw)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].path < windows[j].path })

	for _, tw := range windows {
		addr = append(addr, addrEntry{offset: b.Len(), id: tw.id})
		marker := " "
		if tw.id == c.st.focus {
			marker = "*"
		}
		fmt.Fprintf(&b, "[%s]%s\n", marker, tw.path)
		caps := capabilityTags(tw.client)
		if len(caps) > 0 {
			b.WriteString("\t")
			b.WriteString(strings.Join(caps, " "))
			b.WriteString("\n")
		}
	}

	addr = append(addr, addrEntry{offset: b.Len(), id: 0})
	b.WriteString("-----\n")

	clientNames := make([]string, 0, len(c.st.actions))
	for name := range c.st.actions {
		clientNames = append(clientNames, name)
	}
	sort.Strings(clientNames)
	for _, name := range clientNames {
		for i, a := range c.st.actions[name] {
			actionAddrs = append(actionAddrs, actionAddrEntry{offset: b.Len(), client: name, index: i})
			fmt.Fprintf(&b, "[%s]\n", a.Title)
		}
	}
	actionAddrs = append(actionAddrs, actionAddrEntry{offset: b.Len(), client: "", index: -1})

	for _, line := range c.st.output {
		b.WriteString(line)
		b.WriteString("\n\n")
	}

	progressKeys := make([]string, 0, len(c.st.progress))
	for k := range c.st.progress {
		progressKeys = append(progressKeys, k)
	}
	sort.Strings(progressKeys)
	for _, k := range progressKeys {
		p := c.st.progress[k]
		if p.Done {
			continue
		}
		fmt.Fprintf(&b, "%s: %s (%d%%)\n", p.Title, p.Message, p.Percentage)
	}

	return b.String(), addr, actionAddrs
}

func (c *Coordinator) writeDiagnostics(b *strings.Builder) {
	paths := make([]string, 0, len(c.st.diags))
	for p := range c.st.diags {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, line := range c.st.diags[p] {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

// capabilityTags renders a short glance-able tag per capability the window's
// matched server actually advertised, so the command window communicates at
// a glance which gestures will do something for a given file.
func capabilityTags(client *lsp.LspClient) []string {
	caps := client.Capabilities()
	var tags []string
	add := func(ok bool, tag string) {
		if ok {
			tags = append(tags, tag)
		}
	}
	add(caps.DefinitionProvider != nil, "def")
	add(caps.HoverProvider != nil, "hover")
	add(caps.CompletionProvider != nil, "complete")
	add(caps.ReferencesProvider != nil, "refs")
	add(caps.DocumentSymbol != nil, "symbols")
	add(caps.SignatureHelp != nil, "signature")
	add(caps.CodeLensProvider != nil, "lens")
	add(caps.CodeActionProvider != nil, "assist")
	add(caps.Implementation != nil, "impl")
	add(caps.TypeDefinition != nil, "typedef")
	return tags
}
