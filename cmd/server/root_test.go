package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(ctx context.Context, args ...string) error {
	cfgFile, addr, logLevel = "", "", ""
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func TestRoot_RejectsBadLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	err := execute(context.Background(), "--addr", "127.0.0.1:0", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestRoot_ServesUntilCanceled(t *testing.T) {
	t.Chdir(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- execute(ctx, "--addr", "127.0.0.1:0", "--log-level", "error") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
