package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/catalog"
)

func mustCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.DefaultStrategies())
	require.NoError(t, err)
	return cat
}
