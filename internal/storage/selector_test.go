package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	mu      sync.Mutex
	deleted []string
}

func (r *recordingBackend) EnsureFolder(_ context.Context, requestID uint) (string, error) {
	return "drive-folder", nil
}

func (r *recordingBackend) Upload(_ context.Context, _, name string, _ io.Reader, _ int64, _ string) (string, error) {
	return "drive-" + name, nil
}

func (r *recordingBackend) Download(_ context.Context, fileRef string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("remote " + fileRef)), nil
}

func (r *recordingBackend) Delete(_ context.Context, fileRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, fileRef)
	return nil
}

func TestSelectorResolvesOnceConcurrently(t *testing.T) {
	var calls int32
	remote := &recordingBackend{}
	logger, _ := test.NewNullLogger()
	sel := NewSelector(func(context.Context) (Backend, error) {
		atomic.AddInt32(&calls, 1)
		return remote, nil
	}, newLocal(t), true, logger)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := sel.EnsureFolder(context.Background(), 1)
			assert.NoError(t, err)
			assert.Equal(t, "drive-folder", ref)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSelectorFallsBackToLocal(t *testing.T) {
	var calls int32
	logger, hook := test.NewNullLogger()
	local := newLocal(t)
	sel := NewSelector(func(context.Context) (Backend, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("no credentials")
	}, local, true, logger)

	ctx := context.Background()
	folder, err := sel.EnsureFolder(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "folder:9", folder)

	_, err = sel.EnsureFolder(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSelectorWithoutFallbackFails(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sel := NewSelector(func(context.Context) (Backend, error) {
		return nil, errors.New("boom")
	}, newLocal(t), false, logger)

	_, err := sel.EnsureFolder(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote storage unavailable")

	_, err = sel.Upload(context.Background(), "drive-folder", "a.pdf", strings.NewReader("x"), 1, "application/pdf")
	assert.Error(t, err)
}

func TestSelectorRoutesLocalRefsToLocal(t *testing.T) {
	ctx := context.Background()
	remote := &recordingBackend{}
	logger, _ := test.NewNullLogger()
	local := newLocal(t)
	sel := NewSelector(func(context.Context) (Backend, error) { return remote, nil }, local, true, logger)

	// a file written during an earlier fallback period
	folder, err := local.EnsureFolder(ctx, 3)
	require.NoError(t, err)
	ref, err := local.Upload(ctx, folder, "old.pdf", strings.NewReader("local bytes"), 11, "application/pdf")
	require.NoError(t, err)

	rc, err := sel.Download(ctx, ref)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "local bytes", string(body))

	require.NoError(t, sel.Delete(ctx, ref))
	require.NoError(t, sel.Delete(ctx, "1DriveId"))
	assert.Equal(t, []string{"1DriveId"}, remote.deleted)
}
