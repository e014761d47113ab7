package plumb

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter_SendLocationIncludesLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.SendLocation("/tmp/a.go", 42))

	var got message
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "edit", got.Dst)
	require.Equal(t, "text", got.Typ)
	require.Equal(t, "/tmp/a.go:42", got.Data)
}

func TestWriter_SendLocationOmitsNonPositiveLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.SendLocation("/tmp/a.go", 0))

	var got message
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "/tmp/a.go", got.Data)
}

func TestWriter_SendFile(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.SendFile("/tmp/b.go"))

	var got message
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "/tmp/b.go", got.Data)
}
