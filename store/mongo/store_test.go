package mongo

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/till/store/storetest"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	// Bill commits run in session transactions, which need a replica set.
	mongoContainer, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	testcontainers.CleanupContainer(t, mongoContainer)
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)
	// The replica set advertises its container hostname; talk to the mapped port only.
	switch {
	case strings.Contains(uri, "directConnection"):
	case strings.Contains(uri, "?"):
		uri += "&directConnection=true"
	default:
		uri = strings.TrimSuffix(uri, "/") + "/?directConnection=true"
	}

	mdb := mongodriver.New()
	require.NoError(t, mdb.Open(ctx, uri, mongodriver.WithDatabase("till_test")))
	db, err := grove.Open(mdb)
	require.NoError(t, err)

	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, setupStore(t))
}
