package libdbexec

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupLocalInstance starts a disposable Postgres container and returns its
// connection string plus a cleanup function. Intended for integration tests;
// requires a local Docker daemon.
func SetupLocalInstance(ctx context.Context, dbName, user, password string) (string, testcontainers.Container, func(), error) {
	cleanup := func() {}

	container, err := postgres.Run(ctx,
		"docker.io/postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", nil, cleanup, err
	}

	cleanup = func() {
		timeout := time.Second
		_ = container.Stop(context.Background(), &timeout)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", container, cleanup, err
	}
	return connStr, container, cleanup, nil
}
