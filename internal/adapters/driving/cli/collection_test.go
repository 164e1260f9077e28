package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func TestCollectionCmd_HasSubcommands(t *testing.T) {
	var names []string
	for _, cmd := range collectionCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"create", "list", "delete"}, names)
}

func TestCollectionCreateCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "collection", "create", "manuals")

	require.NoError(t, err)
	assert.Contains(t, out, "Created collection manuals (col-new)")
}

func TestCollectionCreateCmd_Conflict(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.ingestion.err = domain.ErrConflict

	_, err := executeCommand(t, "collection", "create", "docs")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCollectionListCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "collection", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "Collections:")
	assert.Contains(t, out, "  docs\n")
	assert.Contains(t, out, "ID:      col-1")
	assert.Contains(t, out, "Total: 1 collections")
}

func TestCollectionListCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.ingestion.collections = nil

	out, err := executeCommand(t, "collection", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No collections.")
}

func TestCollectionListCmd_Error(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.ingestion.err = errors.New("store closed")

	_, err := executeCommand(t, "collection", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list collections: store closed")
}

func TestCollectionDeleteCmd_ByName(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "collection", "delete", "docs")

	require.NoError(t, err)
	assert.Contains(t, out, "Collection docs deleted.")
	assert.Equal(t, []string{"col-1"}, currentTestServices.ingestion.deleted)
}

func TestCollectionDeleteCmd_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "collection", "delete", "other")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
