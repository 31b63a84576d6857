package notifications

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/experimenter-api/pkg/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db.DB)
}

func TestNotifications(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, "a@mozilla.com", "first"))
	require.NoError(t, svc.Notify(ctx, "a@mozilla.com", "second"))
	require.NoError(t, svc.Notify(ctx, "b@mozilla.com", "other"))

	t.Run("lists only the recipient's notifications newest first", func(t *testing.T) {
		out, err := svc.List(ctx, "a@mozilla.com", false)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "second", out[0].Message)
		assert.Equal(t, "first", out[1].Message)
	})

	t.Run("mark read filters from the unread list", func(t *testing.T) {
		out, err := svc.List(ctx, "a@mozilla.com", true)
		require.NoError(t, err)
		require.Len(t, out, 2)

		require.NoError(t, svc.MarkRead(ctx, "a@mozilla.com", out[0].ID))

		unread, err := svc.List(ctx, "a@mozilla.com", true)
		require.NoError(t, err)
		assert.Len(t, unread, 1)
	})

	t.Run("recipients cannot read each other's notifications", func(t *testing.T) {
		out, err := svc.List(ctx, "b@mozilla.com", false)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Error(t, svc.MarkRead(ctx, "a@mozilla.com", out[0].ID))
	})

	t.Run("exists reports prior sends", func(t *testing.T) {
		exists, err := svc.Exists(ctx, "a@mozilla.com", "first")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = svc.Exists(ctx, "a@mozilla.com", "never sent")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
