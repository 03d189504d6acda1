package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_BuildsTree(t *testing.T) {
	ctx, root := Start(context.Background(), "rebuild")
	require.NotEmpty(t, root.TraceID)
	assert.Same(t, root, FromContext(ctx))

	_, load := Start(ctx, "load")
	load.SetAttr("documents", 3)
	load.End(nil)
	_, build := Start(ctx, "build")
	build.End(errors.New("boom"))
	root.End(nil)
	root.End(errors.New("ignored"))

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, root.TraceID, children[0].TraceID)
	assert.Equal(t, "build", children[1].Name)

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	assert.Contains(t, out, "span=rebuild")
	assert.Contains(t, out, "documents=3")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "ignored")
}

func TestFromContext_Empty(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
