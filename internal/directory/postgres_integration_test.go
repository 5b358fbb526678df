//go:build integration

package directory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/facegate/internal/database"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

func setupIntegrationTest(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "facegate_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/facegate_test?sslmode=disable", host, port.Port())

	sqlDB, err := database.OpenSQL(dsn)
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	migrator, err := database.NewMigrator(sqlDB, "facegate_test", nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresDirectory_Integration(t *testing.T) {
	pool := setupIntegrationTest(t)
	dir := NewPostgresDirectory(pool)
	ctx := context.Background()

	users := []domain.EnrolledUser{
		{Username: "zoe", FullName: "Zoe Z", Credential: "pw", FaceVector: []float64{0.5, 0.25, 0.125}, FaceMethod: "embedding"},
		{Username: "adam", FullName: "Adam A", Credential: "pw"},
	}

	require.NoError(t, dir.SaveAll(ctx, users))

	got, err := dir.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, got, "directory order survives a round trip")

	users[1].FaceVector = []float64{1, 2, 3}
	users = users[1:]
	require.NoError(t, dir.SaveAll(ctx, users))

	got, err = dir.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float64{1, 2, 3}, got[0].FaceVector)
}
