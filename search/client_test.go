package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	apiKey string
	body   []byte
}

// newTestClient runs a stub index server and returns a client pointed at it
func newTestClient(t *testing.T, status int, respBody string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.apiKey = r.Header.Get("api-key")
		rec.body = make([]byte, r.ContentLength)
		if r.ContentLength > 0 {
			r.Body.Read(rec.body)
		}
		w.WriteHeader(status)
		w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "benefits", "test-key"), rec
}

func TestQuery(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK,
		`{"value":[{"id":"doc1","title":"Benefits","content":"first"},{"id":"doc2","title":"Coverage","content":"second"}]}`)

	docs, err := c.Query(context.Background(), "deductible", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{ID: "doc1", Title: "Benefits", Content: "first"}, docs[0])

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/indexes/benefits/docs/search", rec.path)
	assert.Equal(t, "api-version=2024-07-01", rec.query)
	assert.Equal(t, "test-key", rec.apiKey)

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(rec.body, &body))
	assert.Equal(t, "deductible", body["search"])
	assert.EqualValues(t, 5, body["top"])
	assert.Equal(t, "id,title,content", body["select"])
}

func TestQueryEmptyResult(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"value":[]}`)
	docs, err := c.Query(context.Background(), "nothing", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestQueryServiceError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusForbidden, `{"error":"bad key"}`)
	_, err := c.Query(context.Background(), "x", 5)
	assert.ErrorContains(t, err, "status 403")
}

func TestLookup(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK,
		`{"id":"doc1","title":"Benefits","content":"first"}`)

	doc, err := c.Lookup(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, Document{ID: "doc1", Title: "Benefits", Content: "first"}, doc)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/indexes/benefits/docs/doc1", rec.path)
	assert.Contains(t, rec.query, "api-version=2024-07-01")
	assert.Contains(t, rec.query, "$select=id,title,content")
	assert.Equal(t, "test-key", rec.apiKey)
}

func TestLookupNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.StatusNotFound, `{}`)
	_, err := c.Lookup(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupEscapesID(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"id":"a b","title":"","content":""}`)
	_, err := c.Lookup(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, "/indexes/benefits/docs/a b", rec.path)
}

func TestQueryCancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	c := NewClient(srv.URL, "benefits", "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Query(ctx, "x", 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
