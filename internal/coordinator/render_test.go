package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkmik/acre/internal/lsp"
)

func newTestCoordinator() *Coordinator {
	return &Coordinator{st: newState()}
}

func TestBuildBody_EmptyStateHasSeparatorSentinel(t *testing.T) {
	c := newTestCoordinator()
	body, addr, actionAddrs := c.buildBody()

	require.Equal(t, "-----\n", body)
	require.Len(t, addr, 1)
	require.Equal(t, 0, addr[0].id)
	require.Len(t, actionAddrs, 1)
	require.Equal(t, -1, actionAddrs[0].index)
}

func TestBuildBody_IsPureAndIdempotent(t *testing.T) {
	c := newTestCoordinator()
	c.st.diags["a.go"] = []string{"a.go:3: [Error] unused import"}
	c.st.output = []string{"hello"}

	body1, addr1, _ := c.buildBody()
	body2, addr2, _ := c.buildBody()

	require.Equal(t, body1, body2)
	require.Equal(t, addr1, addr2)
}

func TestBuildBody_OffsetToIDCorrectness(t *testing.T) {
	c := newTestCoordinator()
	c.st.windows[11] = &trackedWindow{id: 11, path: "a.go", client: &lsp.LspClient{}}
	c.st.windows[12] = &trackedWindow{id: 12, path: "b.go", client: &lsp.LspClient{}}

	body, addr, _ := c.buildBody()

	for _, e := range addr {
		if e.id == 0 {
			require.Equal(t, "-----\n", body[e.offset:e.offset+len("-----\n")])
			continue
		}
		var tw *trackedWindow
		for _, w := range c.st.windows {
			if w.id == e.id {
				tw = w
			}
		}
		require.NotNil(t, tw)
		require.Contains(t, body[e.offset:], tw.path)
	}
}

func TestBuildBody_DiagnosticsGroupedWithBlankLineSeparator(t *testing.T) {
	c := newTestCoordinator()
	c.st.diags["a.go"] = []string{"a.go:1: [Error] x"}
	c.st.diags["b.go"] = []string{"b.go:2: [Warning] y"}

	body, _, _ := c.buildBody()
	require.Contains(t, body, "a.go:1: [Error] x\n\n")
	require.Contains(t, body, "b.go:2: [Warning] y\n\n-----")
}
