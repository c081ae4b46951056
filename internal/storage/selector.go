package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// RemoteFactory builds the remote backend. It runs at most once per Selector.
type RemoteFactory func(ctx context.Context) (Backend, error)

// Selector resolves the active backend on first use and keeps that decision
// for the process lifetime. When the remote backend cannot be built and
// fallback is enabled, the local backend takes over. Local references are
// always served by the local backend.
type Selector struct {
	remote   RemoteFactory
	local    *LocalBackend
	fallback bool
	log      logrus.FieldLogger

	mu       sync.Mutex
	resolved bool
	active   Backend
	err      error
}

func NewSelector(remote RemoteFactory, local *LocalBackend, fallback bool, log logrus.FieldLogger) *Selector {
	return &Selector{remote: remote, local: local, fallback: fallback, log: log}
}

func (s *Selector) backend(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.active, s.err
	}
	s.resolved = true

	var err error
	if s.remote != nil {
		var remote Backend
		// the client outlives the request that triggered resolution
		remote, err = s.remote(context.WithoutCancel(ctx))
		if err == nil {
			s.active = remote
			s.log.Info("attachment storage: google drive")
			return s.active, nil
		}
	} else {
		err = ErrNoDriveCredentials
	}

	if !s.fallback || s.local == nil {
		s.err = fmt.Errorf("remote storage unavailable: %w", err)
		return nil, s.err
	}
	s.active = s.local
	s.log.WithError(err).WithField("root", s.local.Root()).Warn("google drive unavailable, using local attachment storage")
	return s.active, nil
}

func (s *Selector) EnsureFolder(ctx context.Context, requestID uint) (string, error) {
	b, err := s.backend(ctx)
	if err != nil {
		return "", err
	}
	return b.EnsureFolder(ctx, requestID)
}

func (s *Selector) Upload(ctx context.Context, folderRef, name string, r io.Reader, size int64, contentType string) (string, error) {
	if IsLocalRef(folderRef) && s.local != nil {
		return s.local.Upload(ctx, folderRef, name, r, size, contentType)
	}
	b, err := s.backend(ctx)
	if err != nil {
		return "", err
	}
	return b.Upload(ctx, folderRef, name, r, size, contentType)
}

func (s *Selector) Download(ctx context.Context, fileRef string) (io.ReadCloser, error) {
	if IsLocalRef(fileRef) && s.local != nil {
		return s.local.Download(ctx, fileRef)
	}
	b, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Download(ctx, fileRef)
}

func (s *Selector) Delete(ctx context.Context, fileRef string) error {
	if IsLocalRef(fileRef) && s.local != nil {
		return s.local.Delete(ctx, fileRef)
	}
	b, err := s.backend(ctx)
	if err != nil {
		return err
	}
	return b.Delete(ctx, fileRef)
}
