package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func TestReconcileCmd_AllCollections(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "reconcile")

	require.NoError(t, err)
	assert.Contains(t, out, "Collection col-1: 5 points, 4 chunks, 1 orphans deleted\n")
}

func TestReconcileCmd_NoCollections(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.reconcile.reports = nil

	out, err := executeCommand(t, "reconcile")

	require.NoError(t, err)
	assert.Contains(t, out, "No collections to reconcile.")
}

func TestReconcileCmd_OneCollection(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.reconcile.reports = []domain.ReconcileReport{
		{CollectionID: "col-1", IndexPoints: 3, KnownChunks: 4, MissingPoints: 1},
	}

	out, err := executeCommand(t, "reconcile", "docs")

	require.NoError(t, err)
	assert.Equal(t, []string{"col-1"}, currentTestServices.reconcile.got)
	assert.Contains(t, out, "0 orphans deleted, 1 synced chunks missing from the index")
}

func TestReconcileCmd_PartialFailureStillPrints(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.reconcile.err = errors.New("index unreachable")

	out, err := executeCommand(t, "reconcile")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unreachable")
	assert.Contains(t, out, "Collection col-1")
}

func TestReconcileCmd_NotConfigured(t *testing.T) {
	SetServices(nil)

	_, err := executeCommand(t, "reconcile")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconcile service not configured")
}
