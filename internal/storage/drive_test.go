package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type fakeFolder struct {
	ID, Name, Parent string
}

// fakeDrive answers the subset of the Drive v3 REST surface the backend uses.
type fakeDrive struct {
	mu          sync.Mutex
	folders     []fakeFolder
	creates     int
	lists       int
	uploads     int
	deleted     []string
	listQueries []string
	lastQuery   map[string]string
}

var (
	nameClause   = regexp.MustCompile(`name='((?:[^'\\]|\\.)*)'`)
	parentClause = regexp.MustCompile(`'([^']*)' in parents`)
)

func (f *fakeDrive) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			f.lists++
			q := r.URL.Query().Get("q")
			f.listQueries = append(f.listQueries, q)
			f.lastQuery = map[string]string{}
			for k := range r.URL.Query() {
				f.lastQuery[k] = r.URL.Query().Get(k)
			}
			name := ""
			if m := nameClause.FindStringSubmatch(q); m != nil {
				name = strings.ReplaceAll(m[1], `\'`, `'`)
			}
			parent := ""
			if m := parentClause.FindStringSubmatch(q); m != nil {
				parent = m[1]
			}
			var out []map[string]string
			for _, folder := range f.folders {
				if folder.Name == name && folder.Parent == parent {
					out = append(out, map[string]string{"id": folder.ID, "name": folder.Name})
				}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"files": out})
		case http.MethodPost:
			f.creates++
			var body struct {
				Name    string   `json:"name"`
				Parents []string `json:"parents"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			folder := fakeFolder{ID: fmt.Sprintf("fld-%d", len(f.folders)+1), Name: body.Name}
			if len(body.Parents) > 0 {
				folder.Parent = body.Parents[0]
			}
			f.folders = append(f.folders, folder)
			json.NewEncoder(w).Encode(map[string]string{"id": folder.ID})
		}
	})
	mux.HandleFunc("/upload/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.uploads++
		f.mu.Unlock()
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(map[string]string{"id": "file-77"})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/pdf")
			io.WriteString(w, "bytes of "+id)
		case http.MethodDelete:
			f.mu.Lock()
			f.deleted = append(f.deleted, id)
			f.mu.Unlock()
			if id == "gone" {
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"error":{"code":404,"message":"File not found"}}`)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	})
	return mux
}

func newFakeDriveBackend(t *testing.T, opts DriveOptions) (*DriveBackend, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	backend, err := NewDriveBackend(context.Background(), opts,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return backend, fake
}

func TestDriveEnsureFolderCachesParents(t *testing.T) {
	backend, fake := newFakeDriveBackend(t, DriveOptions{RootFolderName: "ExpenseControl", RequestsFolderName: "requests"})
	ctx := context.Background()

	first, err := backend.EnsureFolder(ctx, 12)
	require.NoError(t, err)
	again, err := backend.EnsureFolder(ctx, 12)
	require.NoError(t, err)
	other, err := backend.EnsureFolder(ctx, 13)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)
	// root, requests, 12, 13
	assert.Equal(t, 4, fake.creates)
	// root + requests looked up once, then one lookup per EnsureFolder
	assert.Equal(t, 5, fake.lists)
	assert.Contains(t, fake.listQueries[0], "name='ExpenseControl'")
	assert.Contains(t, fake.listQueries[0], "trashed=false")
	assert.NotContains(t, fake.listQueries[0], "in parents")
}

func TestDriveUsesConfiguredRootAndSharedDrive(t *testing.T) {
	backend, fake := newFakeDriveBackend(t, DriveOptions{RootFolderID: "root-xyz", SharedDriveID: "shared-1"})
	fake.folders = []fakeFolder{{ID: "req-folder", Name: "requests", Parent: "root-xyz"}}

	ref, err := backend.EnsureFolder(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "fld-2", ref)
	assert.Equal(t, 1, fake.creates)

	assert.Equal(t, "true", fake.lastQuery["supportsAllDrives"])
	assert.Equal(t, "true", fake.lastQuery["includeItemsFromAllDrives"])
	assert.Equal(t, "drive", fake.lastQuery["corpora"])
	assert.Equal(t, "shared-1", fake.lastQuery["driveId"])
	assert.Contains(t, fake.listQueries[0], "'root-xyz' in parents")
}

func TestDriveUploadDownloadDelete(t *testing.T) {
	backend, fake := newFakeDriveBackend(t, DriveOptions{})
	ctx := context.Background()

	ref, err := backend.Upload(ctx, "fld-1", "request-1-a-001.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "file-77", ref)
	assert.Equal(t, 1, fake.uploads)

	rc, err := backend.Download(ctx, ref)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "bytes of file-77", string(body))

	require.NoError(t, backend.Delete(ctx, ref))
	require.NoError(t, backend.Delete(ctx, "gone"))
	assert.Equal(t, []string{"file-77", "gone"}, fake.deleted)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeQuery("O'Brien"))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}
