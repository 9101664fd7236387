package log

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtx(t *testing.T) {
	ctx := context.Background()

	l := Ctx(ctx)
	require.NotNil(t, l)
	assert.Equal(t, defaultLogger, l, "Ctx without a stored logger should return the default")

	custom := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	require.NotEqual(t, defaultLogger, custom)

	got := Ctx(With(ctx, custom))
	require.NotNil(t, got)
	assert.Equal(t, custom, got, "Ctx should return the logger stored with With")
}
