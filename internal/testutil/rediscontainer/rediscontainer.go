package rediscontainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const image = "redis:7-alpine"

var (
	once      sync.Once
	setupErr  error
	container testcontainers.Container
	addr      string
)

// Addr exposes the Redis host:port combination used by integration tests.
func Addr() string { return addr }

// Setup starts a Redis container and waits until it accepts connections.
// It returns an error (rather than failing) when Docker is unavailable so
// callers can skip.
func Setup() error {
	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		setupErr = func() (err error) {
			// testcontainers panics when no Docker host can be resolved.
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("docker unavailable: %v", r)
				}
			}()
			c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
				ContainerRequest: testcontainers.ContainerRequest{
					Image:        image,
					ExposedPorts: []string{"6379/tcp"},
					WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
				},
				Started: true,
			})
			if err != nil {
				return fmt.Errorf("start redis container: %w", err)
			}
			container = c

			host, err := c.Host(ctx)
			if err != nil {
				return err
			}
			port, err := c.MappedPort(ctx, "6379/tcp")
			if err != nil {
				return err
			}
			addr = fmt.Sprintf("%s:%s", host, port.Port())
			return nil
		}()
	})
	return setupErr
}

// Teardown stops the Redis container if it is running.
func Teardown() error {
	if container == nil {
		return errors.New("redis container not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return container.Terminate(ctx)
}
