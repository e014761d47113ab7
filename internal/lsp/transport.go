package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Transport implements the LSP base protocol: JSON-RPC 2.0 messages framed
// with a Content-Length header, carried over a language server's stdio.
//
// Unlike a transport that hands every inbound notification to its caller as
// a bare (method string, json.RawMessage) pair and leaves the caller to
// switch on method and type-assert the result, callers here register a
// parser per method up front. The parser does the json.Unmarshal into its
// concrete type once, at dispatch time, and the transport forwards an
// already-typed Notification on its Notifications channel. Nothing
// downstream needs to downcast.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer
	log    *zap.SugaredLogger

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]*pendingCall

	parsersMu sync.RWMutex
	parsers   map[string]NotificationParser

	notifications chan Notification

	closed atomic.Bool
	done   chan struct{}
}

type pendingCall struct {
	result any
	reply  chan *rpcReply
}

type rpcReply struct {
	raw json.RawMessage
	err *RPCError
}

// NotificationParser decodes a notification's params into a concrete type.
type NotificationParser func(params json.RawMessage) (any, error)

// Notification is a fully decoded server notification.
type Notification struct {
	Method  string
	Payload any
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type jsonrpcNotification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewTransport wraps a language server's stdio pipes.
func NewTransport(r io.Reader, w io.Writer, c io.Closer, log *zap.SugaredLogger) *Transport {
	return &Transport{
		reader:        bufio.NewReaderSize(r, 64*1024),
		writer:        w,
		closer:        c,
		log:           log,
		pending:       make(map[int64]*pendingCall),
		parsers:       make(map[string]NotificationParser),
		notifications: make(chan Notification, 64),
		done:          make(chan struct{}),
	}
}

// OnNotification registers the parser used for a given method. Must be
// called before Start.
func (t *Transport) OnNotification(method string, parser NotificationParser) {
	t.parsersMu.Lock()
	t.parsers[method] = parser
	t.parsersMu.Unlock()
}

// Notifications returns the channel of decoded server notifications.
func (t *Transport) Notifications() <-chan Notification { return t.notifications }

// Start begins the read loop in a new goroutine.
func (t *Transport) Start() { go t.readLoop() }

// Close stops the transport and fails any in-flight calls.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.done)
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[int64]*pendingCall)
	t.mu.Unlock()
	for _, p := range pending {
		close(p.reply)
	}
	close(t.notifications)
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// Call sends a request and decodes its result into result (nil to discard).
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	id := t.nextID.Add(1)
	call := &pendingCall{result: result, reply: make(chan *rpcReply, 1)}

	t.mu.Lock()
	t.pending[id] = call
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("lsp: send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case reply, ok := <-call.reply:
		if !ok {
			return ErrShutdown
		}
		if reply.err != nil {
			return reply.err
		}
		if result != nil && len(reply.raw) > 0 {
			if err := json.Unmarshal(reply.raw, result); err != nil {
				return fmt.Errorf("lsp: decode result of %s: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a notification; no response is expected.
func (t *Transport) Notify(method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	return t.send(jsonrpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	frame := append([]byte(fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))), data...)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (t *Transport) readLoop() {
	for {
		body, err := t.readMessage()
		if err != nil {
			if t.closed.Load() {
				return
			}
			if t.log != nil {
				t.log.Errorw("lsp transport read failed", "error", err)
			}
			t.Close()
			return
		}
		t.dispatch(body)
	}
}

func (t *Transport) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err == nil {
				contentLength = n
			}
		}
	}
	if contentLength == 0 {
		return nil, fmt.Errorf("lsp: message with no Content-Length")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("lsp: read body: %w", err)
	}
	return body, nil
}

// dispatch decides, by a single cheap probe, which of three shapes a frame
// takes: a response to one of our own calls (has "id", no "method"), a
// server-to-client request (has both "id" and "method", e.g.
// window/workDoneProgress/create), or a notification (has "method", no
// "id") — then fully decodes it exactly once down its chosen path.
func (t *Transport) dispatch(data json.RawMessage) {
	var probe struct {
		ID     *int64 `json:"id"`
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		if t.log != nil {
			t.log.Warnw("lsp: malformed frame", "error", err)
		}
		return
	}
	switch {
	case probe.ID != nil && probe.Method != "":
		t.handleServerRequest(*probe.ID, probe.Method)
	case probe.ID != nil:
		var resp jsonrpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		t.deliverResponse(&resp)
	case probe.Method != "":
		var notif jsonrpcNotification
		if err := json.Unmarshal(data, &notif); err != nil {
			return
		}
		t.deliverNotification(notif.Method, notif.Params)
	}
}

// handleServerRequest answers a request the server issued to us. None of
// the server-to-client requests this daemon supports (currently just the
// work-done-progress creation handshake) carry a meaningful result, so
// every one of them gets an empty success reply; a server that never hears
// back stalls waiting for this handshake to complete.
func (t *Transport) handleServerRequest(id int64, method string) {
	if t.log != nil {
		t.log.Debugw("lsp: answering server request", "method", method, "id", id)
	}
	if err := t.send(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: json.RawMessage("null")}); err != nil {
		if t.log != nil {
			t.log.Warnw("lsp: failed to answer server request", "method", method, "error", err)
		}
	}
}

func (t *Transport) deliverResponse(resp *jsonrpcResponse) {
	t.mu.Lock()
	call, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	call.reply <- &rpcReply{raw: resp.Result, err: resp.Error}
}

func (t *Transport) deliverNotification(method string, params json.RawMessage) {
	t.parsersMu.RLock()
	parser, ok := t.parsers[method]
	t.parsersMu.RUnlock()
	if !ok {
		if t.log != nil {
			t.log.Debugw("lsp: no parser registered, dropping notification", "method", method)
		}
		return
	}
	payload, err := parser(params)
	if err != nil {
		if t.log != nil {
			t.log.Warnw("lsp: failed to parse notification", "method", method, "error", err)
		}
		return
	}
	select {
	case t.notifications <- Notification{Method: method, Payload: payload}:
	case <-t.done:
	}
}
