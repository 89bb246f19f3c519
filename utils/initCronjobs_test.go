package utils

import (
	"context"
	"testing"
	"time"

	"ludoserver/ludo/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noRooms struct{}

func (noRooms) RoomExists(context.Context, string) (bool, error) { return false, nil }

type expirer struct{}

func (expirer) ExpireStaleRooms(context.Context, time.Time) (int64, error) { return 0, nil }

func TestCronCleanerRegistersJobs(t *testing.T) {
	reg := registry.New(noRooms{}, registry.Config{}, zap.NewNop())
	c, err := CronCleaner(reg, expirer{}, zap.NewNop())
	require.NoError(t, err)
	defer c.Stop()

	entries := c.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.Next.IsZero())
	}
}
