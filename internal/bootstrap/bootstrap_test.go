package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/pkg/config"
)

type stubRunner struct {
	err  error
	runs chan struct{}
}

func (s *stubRunner) Run(ctx context.Context) error {
	if s.runs != nil {
		close(s.runs)
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func testConfig(assetsDir string) *config.Config {
	return &config.Config{
		AssetsDir:  assetsDir,
		ProbeDelay: 10 * time.Millisecond,
		Port:       0,
	}
}

func TestCheckAssetsPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.html"), []byte("<html></html>"), 0o644))

	b := New(testConfig(dir), zap.NewNop(), &stubRunner{}, nil)
	assert.NoError(t, b.checkAssets())
}

func TestCheckAssetsMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), nil, 0o644))

	b := New(testConfig(dir), zap.NewNop(), &stubRunner{}, nil)
	err := b.checkAssets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard.html")
}

func TestRunFailsFastOnMissingAsset(t *testing.T) {
	b := New(testConfig(t.TempDir()), zap.NewNop(), &stubRunner{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := b.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTraderFailureDoesNotAbortStartup(t *testing.T) {
	// The trader dies immediately; bootstrap still reaches the asset check
	// and reports the asset problem, not the trader's.
	runs := make(chan struct{})
	r := &stubRunner{err: errors.New("venue unreachable"), runs: runs}
	b := New(testConfig(t.TempDir()), zap.NewNop(), r, nil)

	err := b.Run(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "venue unreachable")
	assert.Contains(t, err.Error(), "dashboard.html")

	select {
	case <-runs:
	default:
		t.Fatal("runner was never started")
	}
}

func TestProbeReturnsOnCancel(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.ProbeDelay = time.Hour
	b := New(cfg, zap.NewNop(), &stubRunner{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		b.probe(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("probe did not return on cancelled context")
	}
}
