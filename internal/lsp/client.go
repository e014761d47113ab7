package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ServerConfig describes one configured language server, corresponding to
// a [[servers]] entry of acre.toml.
type ServerConfig struct {
	Name             string
	Command          string
	Args             []string
	Files            *regexp.Regexp
	RootURI          DocumentURI
	WorkspaceFolders []WorkspaceFolder
	Timeout          time.Duration
}

// MatchesFile reports whether this server should handle the given path.
func (c ServerConfig) MatchesFile(path string) bool {
	return c.Files != nil && c.Files.MatchString(path)
}

// Status is the lifecycle state of an LspClient.
type Status int

const (
	StatusStarting Status = iota
	StatusReady
	StatusShuttingDown
	StatusExited
)

// LspClient owns one language server child process: its stdio transport,
// the initialize/initialized handshake, and the open-document bookkeeping
// needed to send well-formed didChange notifications.
type LspClient struct {
	config ServerConfig
	log    *zap.SugaredLogger

	cmd       *exec.Cmd
	transport *Transport

	mu           sync.RWMutex
	status       Status
	capabilities ServerCapabilities
	openDocs     map[DocumentURI]int // uri -> version

	events  chan Event
	exitErr chan error
}

// Start spawns the configured server process and performs the initialize
// handshake, returning once the server is ready for requests.
func Start(ctx context.Context, config ServerConfig, log *zap.SugaredLogger) (*LspClient, error) {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	cmd := exec.Command(config.Command, config.Args...)
	cmd.Env = os.Environ()
	if len(config.WorkspaceFolders) > 0 {
		cmd.Dir = URIToFilePath(config.WorkspaceFolders[0].URI)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lsp: %s: stdin pipe: %w", config.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("lsp: %s: stdout pipe: %w", config.Name, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("lsp: %s: start: %w", config.Name, &ServerError{Server: config.Name, Err: err})
	}

	c := &LspClient{
		config:   config,
		log:      log,
		cmd:      cmd,
		openDocs: make(map[DocumentURI]int),
		events:   make(chan Event, 64),
		exitErr:  make(chan error, 1),
	}
	c.transport = NewTransport(stdout, stdin, stdin, log)
	c.registerParsers()
	c.transport.Start()
	go c.pump()
	go c.monitor()

	if err := c.initialize(ctx); err != nil {
		c.transport.Close()
		return nil, err
	}
	return c, nil
}

func (c *LspClient) registerParsers() {
	c.transport.OnNotification("textDocument/publishDiagnostics", parsePublishDiagnostics)
	c.transport.OnNotification("window/showMessage", parseShowMessage)
	c.transport.OnNotification("window/logMessage", parseLogMessage)
	c.transport.OnNotification("$/progress", parseStandardProgress)
	c.transport.OnNotification("window/progress", parseLegacyProgress)
}

// pump translates decoded transport Notifications into Events, so the
// coordinator's select loop only ever reads from one channel per client.
func (c *LspClient) pump() {
	for n := range c.transport.Notifications() {
		var ev Event
		ev.Server = c.config.Name
		switch p := n.Payload.(type) {
		case *PublishDiagnosticsParams:
			ev.Kind, ev.Diagnostics = EventDiagnostics, p
		case *ShowMessageParams:
			ev.Kind, ev.ShowMessage = EventShowMessage, p
		case *LogMessageParams:
			ev.Kind, ev.LogMessage = EventLogMessage, p
		case *ProgressEvent:
			ev.Kind, ev.Progress = EventProgress, p
		default:
			continue
		}
		select {
		case c.events <- ev:
		case <-c.exitErr:
			return
		}
	}
}

func (c *LspClient) monitor() {
	err := c.cmd.Wait()
	c.mu.Lock()
	c.status = StatusExited
	c.mu.Unlock()
	c.events <- Event{Server: c.config.Name, Kind: EventServerExited, Exited: err}
	close(c.exitErr)
}

func (c *LspClient) initialize(ctx context.Context) error {
	c.mu.Lock()
	c.status = StatusStarting
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var rootURI DocumentURI
	if len(c.config.WorkspaceFolders) > 0 {
		rootURI = c.config.WorkspaceFolders[0].URI
	} else {
		rootURI = c.config.RootURI
	}

	params := InitializeParams{
		ProcessID:        os.Getpid(),
		RootURI:          rootURI,
		Capabilities:     DefaultClientCapabilities(),
		WorkspaceFolders: c.config.WorkspaceFolders,
	}

	var result InitializeResult
	if err := c.transport.Call(ctx, "initialize", params, &result); err != nil {
		return &ServerError{Server: c.config.Name, Err: fmt.Errorf("initialize: %w", err)}
	}
	if err := c.transport.Notify("initialized", InitializedParams{}); err != nil {
		return &ServerError{Server: c.config.Name, Err: fmt.Errorf("initialized: %w", err)}
	}

	c.mu.Lock()
	c.capabilities = result.Capabilities
	c.status = StatusReady
	c.mu.Unlock()
	return nil
}

// Name returns the configured server name.
func (c *LspClient) Name() string { return c.config.Name }

// Config returns the server's static configuration.
func (c *LspClient) Config() ServerConfig { return c.config }

// Capabilities returns the server's advertised capabilities.
func (c *LspClient) Capabilities() ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Status reports the client's current lifecycle state.
func (c *LspClient) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Events returns the channel of decoded server-pushed notifications and
// lifecycle events.
func (c *LspClient) Events() <-chan Event { return c.events }

// Close shuts the server down, first politely (shutdown/exit) then by
// killing the process if it does not exit in time.
func (c *LspClient) Close(ctx context.Context) error {
	c.mu.Lock()
	c.status = StatusShuttingDown
	c.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = c.transport.Call(shutdownCtx, "shutdown", nil, nil)
	_ = c.transport.Notify("exit", nil)
	c.transport.Close()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if c.cmd.Process != nil {
			c.cmd.Process.Kill()
		}
	}
	return nil
}

// DidOpen notifies the server a document is open, tracking it so later
// DidChange calls can issue a VersionedTextDocumentIdentifier.
func (c *LspClient) DidOpen(ctx context.Context, uri DocumentURI, languageID, text string) error {
	c.mu.Lock()
	c.openDocs[uri] = 1
	c.mu.Unlock()
	return c.transport.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: languageID, Version: 1, Text: text},
	})
}

// DidChange sends incremental or full-document content changes, advancing
// the document's tracked version.
func (c *LspClient) DidChange(ctx context.Context, uri DocumentURI, changes []TextDocumentContentChangeEvent) error {
	c.mu.Lock()
	version, open := c.openDocs[uri]
	if !open {
		c.mu.Unlock()
		return ErrDocumentNotOpen
	}
	version++
	c.openDocs[uri] = version
	c.mu.Unlock()

	return c.transport.Notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: uri}, Version: version},
		ContentChanges: changes,
	})
}

// DidSave notifies the server a document has been written to disk, including
// its saved text for servers that requested includeText.
func (c *LspClient) DidSave(ctx context.Context, uri DocumentURI, text string) error {
	return c.transport.Notify("textDocument/didSave", DidSaveTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Text:         text,
	})
}

// DidClose notifies the server a document has been closed.
func (c *LspClient) DidClose(ctx context.Context, uri DocumentURI) error {
	c.mu.Lock()
	delete(c.openDocs, uri)
	c.mu.Unlock()
	return c.transport.Notify("textDocument/didClose", DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: uri}})
}

// IsOpen reports whether uri is tracked as open on this server.
func (c *LspClient) IsOpen(uri DocumentURI) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.openDocs[uri]
	return ok
}

func (c *LspClient) call(ctx context.Context, method string, params, result any) error {
	if c.Status() != StatusReady {
		return ErrServerNotReady
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	return c.transport.Call(ctx, method, params, result)
}

// Definition resolves textDocument/definition.
func (c *LspClient) Definition(ctx context.Context, uri DocumentURI, pos Position) ([]Location, error) {
	var result []Location
	err := c.call(ctx, "textDocument/definition", TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}, &result)
	return result, err
}

// Implementation resolves textDocument/implementation.
func (c *LspClient) Implementation(ctx context.Context, uri DocumentURI, pos Position) ([]Location, error) {
	var result []Location
	err := c.call(ctx, "textDocument/implementation", TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}, &result)
	return result, err
}

// TypeDefinition resolves textDocument/typeDefinition.
func (c *LspClient) TypeDefinition(ctx context.Context, uri DocumentURI, pos Position) ([]Location, error) {
	var result []Location
	err := c.call(ctx, "textDocument/typeDefinition", TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}, &result)
	return result, err
}

// Hover resolves textDocument/hover.
func (c *LspClient) Hover(ctx context.Context, uri DocumentURI, pos Position) (*Hover, error) {
	var result *Hover
	err := c.call(ctx, "textDocument/hover", TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}, &result)
	return result, err
}

// Completion resolves textDocument/completion.
func (c *LspClient) Completion(ctx context.Context, uri DocumentURI, pos Position) (*CompletionList, error) {
	var result CompletionList
	err := c.call(ctx, "textDocument/completion", CompletionParams{TextDocumentPositionParams: TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}}, &result)
	return &result, err
}

// References resolves textDocument/references.
func (c *LspClient) References(ctx context.Context, uri DocumentURI, pos Position, includeDecl bool) ([]Location, error) {
	var result []Location
	err := c.call(ctx, "textDocument/references", ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos},
		Context:                    ReferenceContext{IncludeDeclaration: includeDecl},
	}, &result)
	return result, err
}

// DocumentSymbols resolves textDocument/documentSymbol. Servers may answer
// with either DocumentSymbol (hierarchical) or SymbolInformation (flat); the
// raw result is decoded by the caller since the shape is ambiguous on the
// wire.
func (c *LspClient) DocumentSymbols(ctx context.Context, uri DocumentURI) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.call(ctx, "textDocument/documentSymbol", DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: uri}}, &raw)
	return raw, err
}

// SignatureHelp resolves textDocument/signatureHelp.
func (c *LspClient) SignatureHelp(ctx context.Context, uri DocumentURI, pos Position) (*SignatureHelp, error) {
	var result SignatureHelp
	err := c.call(ctx, "textDocument/signatureHelp", SignatureHelpParams{TextDocumentPositionParams: TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}}, &result)
	return &result, err
}

// CodeAction resolves textDocument/codeAction.
func (c *LspClient) CodeAction(ctx context.Context, uri DocumentURI, rng Range, diags []Diagnostic) ([]CodeAction, error) {
	var result []CodeAction
	err := c.call(ctx, "textDocument/codeAction", CodeActionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Range:        rng,
		Context:      CodeActionContext{Diagnostics: diags},
	}, &result)
	return result, err
}

// CodeLens resolves textDocument/codeLens.
func (c *LspClient) CodeLens(ctx context.Context, uri DocumentURI) ([]CodeLens, error) {
	var result []CodeLens
	err := c.call(ctx, "textDocument/codeLens", CodeLensParams{TextDocument: TextDocumentIdentifier{URI: uri}}, &result)
	return result, err
}

// Formatting resolves textDocument/formatting.
func (c *LspClient) Formatting(ctx context.Context, uri DocumentURI, opts FormattingOptions) ([]TextEdit, error) {
	var result []TextEdit
	err := c.call(ctx, "textDocument/formatting", DocumentFormattingParams{TextDocument: TextDocumentIdentifier{URI: uri}, Options: opts}, &result)
	return result, err
}
