//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"lms/internal/core/id"
	"lms/internal/core/tenant"
)

func setupRedis(t *testing.T, ctx context.Context) redis.UniversalClient {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{fmt.Sprintf("%s:%s", host, port.Port())},
	})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestIntegration_RedisBranchCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisBranchCache(setupRedis(t, ctx))

	branch := &tenant.BranchInfo{
		ID:                 id.New(),
		OrganizationID:     id.New(),
		Code:               "downtown",
		Active:             true,
		OrganizationActive: true,
	}

	t.Run("miss", func(t *testing.T) {
		got, err := c.GetBranch(ctx, branch.ID.String())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, c.SetBranch(ctx, branch, time.Minute))
		got, err := c.GetBranch(ctx, branch.ID.String())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *branch, *got)
	})

	t.Run("invalidate", func(t *testing.T) {
		require.NoError(t, c.InvalidateBranch(ctx, branch.ID.String()))
		got, err := c.GetBranch(ctx, branch.ID.String())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("expires", func(t *testing.T) {
		require.NoError(t, c.SetBranch(ctx, branch, time.Second))
		require.Eventually(t, func() bool {
			got, err := c.GetBranch(ctx, branch.ID.String())
			return err == nil && got == nil
		}, 5*time.Second, 100*time.Millisecond)
	})
}
