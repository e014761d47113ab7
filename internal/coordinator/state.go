// Package coordinator implements the daemon's central event loop: it fans
// in the editor's log and window-event streams together with every
// configured language server's notification stream, keeps the command
// window's rendered body in sync with accumulated state, and routes mouse
// gestures in that window to LSP requests.
package coordinator

import (
	"sync"

	"github.com/mkmik/acre/internal/lsp"
)

// trackedWindow is what the coordinator remembers about one open editor
// window it has matched to a language server.
type trackedWindow struct {
	id     int
	path   string
	client *lsp.LspClient
	uri    lsp.DocumentURI
}

// requestKey identifies one outstanding LSP request so its response can be
// routed back to the window and gesture kind that issued it.
type requestKey struct {
	client string
	id     int64
}

// requestInfo is what's remembered about a request until its response (or
// timeout-free abandonment) arrives.
type requestInfo struct {
	windowID int
	uri      lsp.DocumentURI
	kind     gestureKind
}

// gestureKind is the LSP operation a clicked word in a tracked window's
// body requested.
type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureDefinition
	gestureHover
	gestureComplete
	gestureReferences
	gestureSymbols
	gestureSignature
	gestureLens
	gestureAssist
	gestureImpl
	gestureTypedef
)

var gestureWords = map[string]gestureKind{
	"definition": gestureDefinition,
	"hover":      gestureHover,
	"complete":   gestureComplete,
	"references": gestureReferences,
	"symbols":    gestureSymbols,
	"signature":  gestureSignature,
	"lens":       gestureLens,
	"assist":     gestureAssist,
	"impl":       gestureImpl,
	"typedef":    gestureTypedef,
}

// ActionKind distinguishes the two shapes an action list entry can take.
type ActionKind int

const (
	ActionCompletion ActionKind = iota
	ActionCommand
)

// Action is one entry of the rendered "action items" section: either a
// completion item (applying its TextEdit) or a code action/command
// (applying its WorkspaceEdit, or unsupported if it is a bare Command).
type Action struct {
	Kind       ActionKind
	Title      string
	Completion *lsp.CompletionItem
	CodeAction *lsp.CodeAction
}

// ProgressState is the coordinator's normalized view of one progress
// stream, keyed by "client-name:token".
type ProgressState struct {
	Title      string
	Message    string
	Percentage int
	Done       bool
}

// addrEntry maps a byte offset in the rendered body to the window id whose
// heading starts there (id == 0 marks the "-----" separator sentinel).
type addrEntry struct {
	offset int
	id     int
}

// actionAddrEntry maps a byte offset to the (client, index) pair of the
// action item rendered there (index == -1 marks the trailing sentinel).
type actionAddrEntry struct {
	offset int
	client string
	index  int
}

// mu-guarded mutable state, separated from the Coordinator struct's
// immutable collaborators so sync/render and gesture handling can be
// reasoned about independently of the fan-in loop itself.
type state struct {
	mu sync.Mutex

	windows map[int]*trackedWindow // window id -> tracked window
	focus   int

	body        string // last body written, for idempotent render
	addr        []addrEntry
	actionAddrs []actionAddrEntry

	progress map[string]*ProgressState
	diags    map[string][]string // path -> rendered lines
	requests map[requestKey]requestInfo
	actions  map[string][]Action // client name -> ordered action list
	output   []string

	capsReady map[string]bool // client name -> has received InitializeResult
	caps      map[string]lsp.ServerCapabilities
}

func newState() *state {
	return &state{
		windows:   make(map[int]*trackedWindow),
		progress:  make(map[string]*ProgressState),
		diags:     make(map[string][]string),
		requests:  make(map[requestKey]requestInfo),
		actions:   make(map[string][]Action),
		capsReady: make(map[string]bool),
		caps:      make(map[string]lsp.ServerCapabilities),
	}
}
