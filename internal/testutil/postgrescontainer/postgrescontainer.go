package postgrescontainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image    = "postgres:16-alpine"
	user     = "trakt"
	password = "secret"
	dbName   = "trakt_test"
)

var (
	once      sync.Once
	setupErr  error
	container *postgres.PostgresContainer
	dsn       string
)

// DSN returns a lib/pq formatted connection string for the running container.
func DSN() string { return dsn }

// Setup launches the Postgres container once per test binary.
func Setup() error {
	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		setupErr = func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("docker unavailable: %v", r)
				}
			}()
			c, err := postgres.Run(ctx, image,
				postgres.WithDatabase(dbName),
				postgres.WithUsername(user),
				postgres.WithPassword(password),
				testcontainers.WithWaitStrategy(
					wait.ForLog("database system is ready to accept connections").
						WithOccurrence(2).
						WithStartupTimeout(60*time.Second),
				),
			)
			if err != nil {
				return fmt.Errorf("start postgres container: %w", err)
			}
			container = c

			dsn, err = c.ConnectionString(ctx, "sslmode=disable")
			return err
		}()
	})
	return setupErr
}

// Teardown stops the container.
func Teardown() error {
	if container == nil {
		return errors.New("postgres container not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return container.Terminate(ctx)
}
