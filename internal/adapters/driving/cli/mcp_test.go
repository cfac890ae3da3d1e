package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

func TestMCPCmd_PortFlag(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.Equal(t, "p", flag.Shorthand)
}

func TestMCPPorts(t *testing.T) {
	env := setupTestApp(t)

	ports, err := mcpPorts()

	require.NoError(t, err)
	assert.Same(t, env.retrieval, ports.Retrieval)
	assert.Same(t, env.indexer, ports.Indexer)
	assert.Same(t, env.docs, ports.Documents)
	assert.NoError(t, ports.Validate())
}

func TestMCPPorts_NoRetrieval(t *testing.T) {
	setupEmbeddingless(t)

	_, err := mcpPorts()

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
