//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/neo4j/testinstance/internal/bootstrap"
	"github.com/neo4j/testinstance/internal/config"
	"github.com/neo4j/testinstance/test/neo4jtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRelationships(t *testing.T, fx *neo4jtest.Fixture) int64 {
	t.Helper()

	records, err := fx.DB().ExecuteReadQuery(context.Background(), "MATCH ()-[r]->() RETURN count(r) AS count", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	value, ok := records[0].Get("count")
	require.True(t, ok)
	return value.(int64)
}

func TestInstance_SessionIsUsable(t *testing.T) {
	fx := neo4jtest.Setup(t)

	records, err := fx.DB().ExecuteReadQuery(context.Background(), "RETURN 1 AS one", nil)

	require.NoError(t, err)
	require.Len(t, records, 1)
	one, _ := records[0].Get("one")
	assert.Equal(t, int64(1), one)
}

func TestPurge_RemovesNodesAndRelationships(t *testing.T) {
	fx := neo4jtest.Setup(t)
	ctx := context.Background()

	label := fx.UniqueLabel("Node")
	_, err := fx.DB().ExecuteWriteQuery(ctx,
		"CREATE (a:`"+label+"` {name: 'a'})-[:LINKS_TO]->(b:`"+label+"` {name: 'b'}), (b)-[:LINKS_TO]->(:Other)",
		nil)
	require.NoError(t, err)

	count, err := fx.DB().CountNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.Equal(t, int64(2), countRelationships(t, fx))

	require.NoError(t, fx.Instance.Purge(ctx))

	count, err = fx.DB().CountNodes(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, countRelationships(t, fx))
}

func TestPurge_RunsBetweenTests(t *testing.T) {
	t.Run("seed", func(t *testing.T) {
		fx := neo4jtest.Setup(t)
		_, err := fx.SeedNode(context.Background(), "Leftover", map[string]any{"value": 42})
		require.NoError(t, err)
	})

	t.Run("observe", func(t *testing.T) {
		fx := neo4jtest.Setup(t)
		count, err := fx.DB().CountNodes(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count, "nodes from the previous test must be purged")
	})
}

func TestRotatePassword_AlreadyRotatedInstance(t *testing.T) {
	fx := neo4jtest.Setup(t)

	cfg := config.Default()
	cfg.Host = fx.Instance.Host()
	cfg.HTTPPort = fx.Instance.HTTPPort()
	cfg.BoltPort = fx.Instance.BoltPort()
	cfg.Rotate = config.RetryPolicy{MaxAttempts: 3, Interval: 100 * time.Millisecond}

	ok, err := bootstrap.New(cfg).RotatePassword(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
}
