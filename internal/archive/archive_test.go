package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the PutObject and ListObjectsV2 subset over path-style URLs.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	switch {
	case req.Method == http.MethodPut && len(parts) == 2:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		f.objects[parts[1]] = body
		f.types[parts[1]] = req.Header.Get("Content-Type")
		return respond(http.StatusOK, "", http.Header{"Etag": {`"etag"`}}), nil

	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-03-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}}), nil
	}
	return respond(http.StatusNotImplemented, "", nil), nil
}

func respond(code int, body string, h http.Header) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		StatusCode:    code,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func newTestS3(t *testing.T, fake *fakeS3) *S3 {
	t.Helper()
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "exports",
		Endpoint:        "http://s3.test.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	return s
}

func TestKey(t *testing.T) {
	at := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	assert.Equal(t, "2024-03-02/abc/ndvi-data-2024-01-01.json", Key(at, "abc", "ndvi-data-2024-01-01.json"))
	assert.Equal(t, "2024-03-02/abc/evil.png", Key(at, "abc", "../../evil.png"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, DriverNone, s.Driver())

	s, err = Open(ctx, Config{Driver: DriverFilesystem, Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(ctx, Config{Driver: DriverS3})
	assert.ErrorContains(t, err, "bucket required")

	_, err = Open(ctx, Config{Driver: "ftp"})
	assert.ErrorContains(t, err, "unknown archive driver")
}

func TestNone(t *testing.T) {
	info, err := None{}.Put(context.Background(), "k", []byte("abc"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)
	list, err := None{}.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFilesystem(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFilesystem(root)
	require.NoError(t, err)

	info, err := s.Put(ctx, "2024-03-01/s1/data.csv", []byte("a,b\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)

	got, err := os.ReadFile(filepath.Join(root, "2024-03-01", "s1", "data.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))

	_, err = s.Put(ctx, "2024-03-02/s2/map.png", []byte("png"), "image/png")
	require.NoError(t, err)

	list, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-03-01/s1/data.csv", list[0].Key)

	list, err = s.List(ctx, "2024-03-02")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "image/png", list[0].ContentType)

	_, err = s.Put(ctx, "../outside", []byte("x"), "")
	assert.ErrorContains(t, err, "invalid archive key")
}

func TestS3(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := newTestS3(t, fake)
	assert.Equal(t, DriverS3, s.Driver())

	info, err := s.Put(ctx, "2024-03-01/s1/region.json", []byte(`{"name":"Oriental"}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01/s1/region.json", info.Key)

	fake.mu.Lock()
	assert.Equal(t, `{"name":"Oriental"}`, string(fake.objects["2024-03-01/s1/region.json"]))
	assert.Equal(t, "application/json", fake.types["2024-03-01/s1/region.json"])
	fake.mu.Unlock()

	_, err = s.Put(ctx, "2024-03-02/s1/map.png", []byte("png"), "image/png")
	require.NoError(t, err)

	list, err := s.List(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(19), list[0].Size)
	assert.Equal(t, 2024, list[0].LastModified.Year())
}
