package lsp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pipePair struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newPipePair() *pipePair {
	r, w := io.Pipe()
	return &pipePair{r: r, w: w}
}

func (p *pipePair) Close() error {
	p.r.Close()
	return p.w.Close()
}

func writeFrame(t *testing.T, w io.Writer, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	_, err = io.WriteString(w, "Content-Length: ")
	require.NoError(t, err)
	_, err = io.WriteString(w, itoa(len(data))+"\r\n\r\n")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestTransport_NotifySendsContentLengthFrame(t *testing.T) {
	toServer := newPipePair()
	defer toServer.Close()

	transport := NewTransport(io.NopCloser(io.LimitReader(nil, 0)), toServer.w, nil, nil)
	defer transport.Close()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := toServer.r.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, transport.Notify("test/ping", map[string]string{"hello": "world"}))

	select {
	case data := <-done:
		require.Contains(t, string(data), "Content-Length:")
		require.Contains(t, string(data), `"method":"test/ping"`)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestTransport_CallReceivesResponse(t *testing.T) {
	clientIn := newPipePair()  // server -> client
	clientOut := newPipePair() // client -> server
	defer clientIn.Close()
	defer clientOut.Close()

	transport := NewTransport(clientIn.r, clientOut.w, clientOut.w, nil)
	transport.Start()
	defer transport.Close()

	go func() {
		buf := make([]byte, 4096)
		n, err := clientOut.r.Read(buf)
		if err != nil {
			return
		}
		_ = buf[:n] // request frame, id always 1 for the first call in this test
		writeFrame(t, clientIn.w, jsonrpcResponse{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"ok":true}`)})
	}()

	var result struct {
		Ok bool `json:"ok"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, transport.Call(ctx, "test/echo", nil, &result))
	require.True(t, result.Ok)
}

func TestTransport_CallPropagatesRPCError(t *testing.T) {
	clientIn := newPipePair()
	clientOut := newPipePair()
	defer clientIn.Close()
	defer clientOut.Close()

	transport := NewTransport(clientIn.r, clientOut.w, clientOut.w, nil)
	transport.Start()
	defer transport.Close()

	go func() {
		buf := make([]byte, 4096)
		clientOut.r.Read(buf)
		writeFrame(t, clientIn.w, jsonrpcResponse{
			JSONRPC: "2.0", ID: 1,
			Error: &RPCError{Code: CodeMethodNotFound, Message: "no such method"},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := transport.Call(ctx, "test/missing", nil, nil)
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestTransport_NotificationDispatchesThroughRegisteredParser(t *testing.T) {
	clientIn := newPipePair()
	clientOut := newPipePair()
	defer clientIn.Close()
	defer clientOut.Close()

	transport := NewTransport(clientIn.r, clientOut.w, clientOut.w, nil)
	transport.OnNotification("textDocument/publishDiagnostics", parsePublishDiagnostics)
	transport.Start()
	defer transport.Close()

	writeFrame(t, clientIn.w, struct {
		JSONRPC string                   `json:"jsonrpc"`
		Method  string                   `json:"method"`
		Params  PublishDiagnosticsParams `json:"params"`
	}{
		JSONRPC: "2.0",
		Method:  "textDocument/publishDiagnostics",
		Params: PublishDiagnosticsParams{
			URI:         "file:///a.go",
			Diagnostics: []Diagnostic{{Message: "unused variable"}},
		},
	})

	select {
	case n := <-transport.Notifications():
		require.Equal(t, "textDocument/publishDiagnostics", n.Method)
		payload, ok := n.Payload.(*PublishDiagnosticsParams)
		require.True(t, ok)
		require.Equal(t, DocumentURI("file:///a.go"), payload.URI)
		require.Len(t, payload.Diagnostics, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestTransport_AnswersServerToClientRequestWithEmptySuccess(t *testing.T) {
	clientIn := newPipePair()
	clientOut := newPipePair()
	defer clientIn.Close()
	defer clientOut.Close()

	transport := NewTransport(clientIn.r, clientOut.w, clientOut.w, nil)
	transport.Start()
	defer transport.Close()

	writeFrame(t, clientIn.w, struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Method  string `json:"method"`
	}{JSONRPC: "2.0", ID: 7, Method: "window/workDoneProgress/create"})

	buf := make([]byte, 4096)
	n, err := clientOut.r.Read(buf)
	require.NoError(t, err)

	var resp jsonrpcResponse
	_, body, found := cutAfterHeader(buf[:n])
	require.True(t, found)
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, int64(7), resp.ID)
	require.Nil(t, resp.Error)
	require.Equal(t, "null", string(resp.Result))
}

func cutAfterHeader(frame []byte) (header, body []byte, found bool) {
	sep := []byte("\r\n\r\n")
	idx := -1
	for i := 0; i+len(sep) <= len(frame); i++ {
		if string(frame[i:i+len(sep)]) == string(sep) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, false
	}
	return frame[:idx], frame[idx+len(sep):], true
}

func TestTransport_CloseFailsPendingCalls(t *testing.T) {
	clientOut := newPipePair()
	defer clientOut.Close()

	transport := NewTransport(io.NopCloser(io.LimitReader(nil, 0)), clientOut.w, nil, nil)
	// A server that reads every request but never replies.
	go io.Copy(io.Discard, clientOut.r)

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Call(context.Background(), "test/never", nil, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, transport.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrShutdown)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Call to unblock")
	}
}
