package article

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergiodxa/blog/internal/content"
)

type stubSource struct {
	res content.Result
	err error
	ids []string
}

func (s *stubSource) Fetch(_ context.Context, id string) (content.Result, error) {
	s.ids = append(s.ids, id)
	return s.res, s.err
}

func newTestMux(src Source) *http.ServeMux {
	mux := http.NewServeMux()
	New(src, slog.New(slog.DiscardHandler), time.Second, 5*time.Minute).Register(mux)
	return mux
}

func serve(mux http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPageRendersMarkdown(t *testing.T) {
	src := &stubSource{res: content.Result{Text: "# Hello\n\nSome *intro* text."}}
	rec := serve(newTestMux(src), "/articles/hello-world")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"hello-world"}, src.ids)
	assert.Equal(t, contentTypeHTML, rec.Header().Get(headerContentType))
	assert.Equal(t, "MISS", rec.Header().Get(headerXCache))
	assert.Equal(t, "public, max-age=300", rec.Header().Get(headerCacheControl))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Hello</title>")
	assert.Contains(t, body, `<meta name="description" content="Some intro text.">`)
	assert.Contains(t, body, "<em>intro</em>")
}

func TestRawReturnsMarkdownWithCacheHeaders(t *testing.T) {
	src := &stubSource{res: content.Result{
		Text:     "# Hello",
		Hit:      true,
		StoredAt: time.Now().Add(-42 * time.Second),
	}}
	rec := serve(newTestMux(src), "/articles/hello-world/raw")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Hello", rec.Body.String())
	assert.Equal(t, contentTypeMD, rec.Header().Get(headerContentType))
	assert.Equal(t, "HIT", rec.Header().Get(headerXCache))
	assert.Contains(t, []string{"42", "43"}, rec.Header().Get("Age"))
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid id", fmt.Errorf("%w: %q", content.ErrInvalidIdentifier, "x"), http.StatusBadRequest},
		{"not text", &content.ValidationError{Key: "x", Source: content.SourceRemote, Reason: "binary"}, http.StatusBadGateway},
		{"not found", &content.RemoteFetchError{Path: "articles/x.md", Kind: content.KindNotFound}, http.StatusNotFound},
		{"rate limited", &content.RemoteFetchError{Path: "articles/x.md", Kind: content.KindRateLimited}, http.StatusServiceUnavailable},
		{"transport", &content.RemoteFetchError{Path: "articles/x.md", Kind: content.KindTransport}, http.StatusGatewayTimeout},
		{"unauthorized", &content.RemoteFetchError{Path: "articles/x.md", Kind: content.KindUnauthorized}, http.StatusBadGateway},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(newTestMux(&stubSource{err: tc.err}), "/articles/x")

			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, contentTypeJSON, rec.Header().Get(headerContentType))

			var body struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPageFallsBackToSlugTitle(t *testing.T) {
	rec := serve(newTestMux(&stubSource{res: content.Result{Text: "no heading"}}), "/articles/untitled")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>untitled</title>")
}
