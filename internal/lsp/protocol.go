package lsp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
)

// The LSP wire types below mirror the shapes defined by the Language
// Server Protocol specification itself rather than anything particular to
// this daemon.

// DocumentURI is typically a file:// URI.
type DocumentURI string

// Position in a text document, UTF-16 code units per the LSP spec.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document expressed as start and end positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location represents a location inside a resource.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// TextDocumentIdentifier identifies a text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem transfers a text document from client to server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams pairs a document with a position inside it.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// TextEdit is a textual edit applicable to a text document.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// TextDocumentContentChangeEvent describes a content change.
type TextDocumentContentChangeEvent struct {
	Range       *Range `json:"range,omitempty"`
	RangeLength int    `json:"rangeLength,omitempty"`
	Text        string `json:"text"`
}

// MarkupKind describes the content type of a MarkupContent.
type MarkupKind string

const (
	MarkupKindPlainText MarkupKind = "plaintext"
	MarkupKindMarkdown  MarkupKind = "markdown"
)

// MarkupContent represents human readable text.
type MarkupContent struct {
	Kind  MarkupKind `json:"kind"`
	Value string     `json:"value"`
}

// Command represents a reference to a command.
type Command struct {
	Title     string `json:"title"`
	Command   string `json:"command"`
	Arguments []any  `json:"arguments,omitempty"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// WorkspaceEdit represents changes to many resources managed in the workspace.
type WorkspaceEdit struct {
	Changes map[DocumentURI][]TextEdit `json:"changes,omitempty"`
}

// --- Initialize ---

// InitializeParams are the parameters sent in an initialize request.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	Capabilities ServerCapabilities    `json:"capabilities"`
	ServerInfo   *InitializeServerInfo `json:"serverInfo,omitempty"`
}

// InitializeServerInfo identifies the language server.
type InitializeServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams are the parameters of the initialized notification.
type InitializedParams struct{}

// ClientCapabilities advertises what this client supports. The daemon
// advertises a conservative, static set.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Window       *WindowClientCapabilities       `json:"window,omitempty"`
}

// TextDocumentClientCapabilities is trimmed to the features this daemon
// actually drives gestures for.
type TextDocumentClientCapabilities struct {
	Completion     *struct{} `json:"completion,omitempty"`
	Hover          *struct{} `json:"hover,omitempty"`
	Definition     *struct{} `json:"definition,omitempty"`
	References     *struct{} `json:"references,omitempty"`
	DocumentSymbol *struct{} `json:"documentSymbol,omitempty"`
	CodeAction     *struct{} `json:"codeAction,omitempty"`
	SignatureHelp  *struct{} `json:"signatureHelp,omitempty"`
	CodeLens       *struct{} `json:"codeLens,omitempty"`
	Formatting     *struct{} `json:"formatting,omitempty"`
	Implementation *struct{} `json:"implementation,omitempty"`
	TypeDefinition *struct{} `json:"typeDefinition,omitempty"`
}

// WindowClientCapabilities advertises $/progress support.
type WindowClientCapabilities struct {
	WorkDoneProgress bool `json:"workDoneProgress,omitempty"`
}

// ServerCapabilities is the subset of the server's advertised capabilities
// the coordinator consults (e.g. to decide whether to offer an action).
type ServerCapabilities struct {
	TextDocumentSync   any              `json:"textDocumentSync,omitempty"`
	CompletionProvider *struct{}        `json:"completionProvider,omitempty"`
	HoverProvider      any              `json:"hoverProvider,omitempty"`
	DefinitionProvider any              `json:"definitionProvider,omitempty"`
	ReferencesProvider any              `json:"referencesProvider,omitempty"`
	DocumentSymbol     any              `json:"documentSymbolProvider,omitempty"`
	CodeActionProvider any              `json:"codeActionProvider,omitempty"`
	SignatureHelp      *struct{}        `json:"signatureHelpProvider,omitempty"`
	CodeLensProvider   *struct{}        `json:"codeLensProvider,omitempty"`
	DocumentFormatting any              `json:"documentFormattingProvider,omitempty"`
	Implementation     any              `json:"implementationProvider,omitempty"`
	TypeDefinition     any              `json:"typeDefinitionProvider,omitempty"`
}

// DefaultClientCapabilities is the static capability advertisement sent at
// initialize time.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		TextDocument: &TextDocumentClientCapabilities{
			Completion:     &struct{}{},
			Hover:          &struct{}{},
			Definition:     &struct{}{},
			References:     &struct{}{},
			DocumentSymbol: &struct{}{},
			CodeAction:     &struct{}{},
			SignatureHelp:  &struct{}{},
			CodeLens:       &struct{}{},
			Formatting:     &struct{}{},
			Implementation: &struct{}{},
			TypeDefinition: &struct{}{},
		},
		Window: &WindowClientCapabilities{WorkDoneProgress: true},
	}
}

// --- Document sync ---

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         string                 `json:"text,omitempty"`
}

// --- Completion ---

type CompletionParams struct {
	TextDocumentPositionParams
}

type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

type CompletionItem struct {
	Label      string             `json:"label"`
	Kind       CompletionItemKind `json:"kind,omitempty"`
	Detail     string             `json:"detail,omitempty"`
	InsertText string             `json:"insertText,omitempty"`
	TextEdit   *TextEdit          `json:"textEdit,omitempty"`
}

type CompletionItemKind int

const (
	CompletionItemKindText     CompletionItemKind = 1
	CompletionItemKindMethod   CompletionItemKind = 2
	CompletionItemKindFunction CompletionItemKind = 3
	CompletionItemKindField    CompletionItemKind = 5
	CompletionItemKindVariable CompletionItemKind = 6
	CompletionItemKindClass    CompletionItemKind = 7
	CompletionItemKindModule   CompletionItemKind = 9
	CompletionItemKindKeyword  CompletionItemKind = 14
	CompletionItemKindStruct   CompletionItemKind = 22
)

var completionItemKindNames = map[CompletionItemKind]string{
	CompletionItemKindText: "Text", CompletionItemKindMethod: "Method",
	CompletionItemKindFunction: "Function", CompletionItemKindField: "Field",
	CompletionItemKindVariable: "Variable", CompletionItemKindClass: "Class",
	CompletionItemKindModule: "Module", CompletionItemKindKeyword: "Keyword",
	CompletionItemKindStruct: "Struct",
}

func (k CompletionItemKind) String() string {
	if n, ok := completionItemKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// --- Hover ---

type HoverParams struct {
	TextDocumentPositionParams
}

type Hover struct {
	Contents any    `json:"contents"` // string, MarkupContent, or []string (MarkedString[])
	Range    *Range `json:"range,omitempty"`
}

// --- Diagnostics ---

type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Message  string             `json:"message"`
}

type DiagnosticSeverity int

const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

func (s DiagnosticSeverity) String() string {
	switch s {
	case DiagnosticSeverityError:
		return "Error"
	case DiagnosticSeverityWarning:
		return "Warning"
	case DiagnosticSeverityInformation:
		return "Information"
	case DiagnosticSeverityHint:
		return "Hint"
	default:
		return "Error"
	}
}

// --- Code actions ---

type CodeActionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
	Context      CodeActionContext      `json:"context"`
}

type CodeActionContext struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type CodeAction struct {
	Title   string         `json:"title"`
	Kind    CodeActionKind `json:"kind,omitempty"`
	Edit    *WorkspaceEdit `json:"edit,omitempty"`
	Command *Command       `json:"command,omitempty"`
}

type CodeActionKind string

const (
	CodeActionKindQuickFix CodeActionKind = "quickfix"
	CodeActionKindRefactor CodeActionKind = "refactor"
)

// --- Formatting ---

type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions      `json:"options"`
}

type FormattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}

// --- References ---

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// --- Signature help ---

type SignatureHelpParams struct {
	TextDocumentPositionParams
}

type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature int                    `json:"activeSignature,omitempty"`
}

type SignatureInformation struct {
	Label string `json:"label"`
}

// --- Document symbols ---

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentSymbol represents a symbol in a document. Servers may return
// either this hierarchical shape or the flat SymbolInformation shape.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

type SymbolKind int

const (
	SymbolKindFile      SymbolKind = 1
	SymbolKindClass     SymbolKind = 5
	SymbolKindMethod    SymbolKind = 6
	SymbolKindField     SymbolKind = 8
	SymbolKindFunction  SymbolKind = 12
	SymbolKindVariable  SymbolKind = 13
	SymbolKindConstant  SymbolKind = 14
	SymbolKindStruct    SymbolKind = 23
	SymbolKindInterface SymbolKind = 11
)

var symbolKindNames = map[SymbolKind]string{
	SymbolKindFile: "File", SymbolKindClass: "Class", SymbolKindMethod: "Method",
	SymbolKindField: "Field", SymbolKindFunction: "Function", SymbolKindVariable: "Variable",
	SymbolKindConstant: "Constant", SymbolKindStruct: "Struct", SymbolKindInterface: "Interface",
}

func (k SymbolKind) String() string {
	if n, ok := symbolKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// --- Code lens ---

type CodeLensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type CodeLens struct {
	Range   Range    `json:"range"`
	Command *Command `json:"command,omitempty"`
}

// --- Progress ---

// ProgressParams is the standard $/progress notification payload.
type ProgressParams struct {
	Token json.RawMessage `json:"token"`
	Value json.RawMessage `json:"value"`
}

// WorkDoneProgressBegin/Report/End are the Value shapes of ProgressParams.
type WorkDoneProgressBegin struct {
	Kind       string `json:"kind"` // "begin"
	Title      string `json:"title"`
	Message    string `json:"message,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

type WorkDoneProgressReport struct {
	Kind       string `json:"kind"` // "report"
	Message    string `json:"message,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

type WorkDoneProgressEnd struct {
	Kind    string `json:"kind"` // "end"
	Message string `json:"message,omitempty"`
}

// LegacyProgressParams is the pre-standard window/progress notification.
type LegacyProgressParams struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
	Done       bool   `json:"done,omitempty"`
}

// --- Show/log message ---

type ShowMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

type LogMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// --- Utility functions ---

// FilePathToURI converts a file path to a DocumentURI.
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return DocumentURI(u.String())
}

// URIToFilePath converts a DocumentURI to a file path.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return filepath.FromSlash(u.Path)
}

// DetectLanguageID infers an LSP languageId from a filename suffix,
// returning "" for unrecognized extensions.
func DetectLanguageID(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".py":
		return "python"
	case ".c":
		return "c"
	case ".h":
		return "c"
	case ".cc", ".cpp", ".cxx":
		return "cpp"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".rb":
		return "ruby"
	case ".java":
		return "java"
	default:
		return ""
	}
}

// HoverText renders a Hover's contents: an array of MarkedStrings joined
// with newlines, or a MarkupContent's value.
func HoverText(h *Hover) string {
	if h == nil {
		return ""
	}
	switch v := h.Contents.(type) {
	case string:
		return v
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			return val
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				parts = append(parts, s)
			case map[string]any:
				if val, ok := s["value"].(string); ok {
					parts = append(parts, val)
				}
			}
		}
		return joinLines(parts)
	}
	return ""
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
