package article

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sergiodxa/blog/internal/content"
	"github.com/sergiodxa/blog/internal/markdown"
)

const (
	headerContentType  = "Content-Type"
	headerCacheControl = "Cache-Control"
	headerXCache       = "X-Cache"
	contentTypeJSON    = "application/json"
	contentTypeHTML    = "text/html; charset=utf-8"
	contentTypeMD      = "text/markdown; charset=utf-8"
	headlineLength     = 160
)

// Source is the read-through content lookup the handler serves from.
type Source interface {
	Fetch(ctx context.Context, id string) (content.Result, error)
}

// Handler serves article pages and raw markdown.
type Handler struct {
	source         Source
	logger         *slog.Logger
	requestTimeout time.Duration
	maxAge         time.Duration
}

// New constructs an article handler. maxAge is advertised to clients in Cache-Control.
func New(source Source, logger *slog.Logger, requestTimeout, maxAge time.Duration) *Handler {
	return &Handler{
		source:         source,
		logger:         logger.With(slog.String("component", "article-handler")),
		requestTimeout: requestTimeout,
		maxAge:         maxAge,
	}
}

// Register mounts the article routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /articles/{slug}", h.handlePage)
	mux.HandleFunc("GET /articles/{slug}/raw", h.handleRaw)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	res, ok := h.lookup(w, r, slug)
	if !ok {
		return
	}

	src := []byte(res.Text)
	body, err := markdown.Render(src)
	if err != nil {
		h.logger.Error("render failed", slog.String("slug", slug), slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, errors.New("unable to render article"))
		return
	}

	title := markdown.Title(src)
	if title == "" {
		title = slug
	}

	h.writeCacheHeaders(w, res)
	w.Header().Set(headerContentType, contentTypeHTML)
	w.WriteHeader(http.StatusOK)
	if err := pageTemplate.Execute(w, page{
		Title:       title,
		Description: markdown.Headline(src, headlineLength),
		Body:        body,
	}); err != nil {
		h.logger.Warn("write page failed", slog.String("slug", slug), slog.String("error", err.Error()))
	}
}

func (h *Handler) handleRaw(w http.ResponseWriter, r *http.Request) {
	res, ok := h.lookup(w, r, r.PathValue("slug"))
	if !ok {
		return
	}

	h.writeCacheHeaders(w, res)
	w.Header().Set(headerContentType, contentTypeMD)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Text))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, slug string) (content.Result, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.source.Fetch(ctx, slug)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("article lookup failed", slog.String("slug", slug), slog.String("error", err.Error()))
		} else {
			h.logger.Debug("article lookup rejected", slog.String("slug", slug), slog.String("error", err.Error()))
		}
		h.respondError(w, status, err)
		return content.Result{}, false
	}
	return res, true
}

func (h *Handler) writeCacheHeaders(w http.ResponseWriter, res content.Result) {
	if res.Hit {
		w.Header().Set(headerXCache, "HIT")
		if !res.StoredAt.IsZero() {
			age := max(time.Since(res.StoredAt), 0)
			w.Header().Set("Age", strconv.Itoa(int(age.Seconds())))
		}
	} else {
		w.Header().Set(headerXCache, "MISS")
	}
	if h.maxAge > 0 {
		w.Header().Set(headerCacheControl, fmt.Sprintf("public, max-age=%d", int(h.maxAge.Seconds())))
	}
}

func statusFor(err error) int {
	var (
		verr *content.ValidationError
		ferr *content.RemoteFetchError
	)
	switch {
	case errors.Is(err, content.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.As(err, &verr):
		return http.StatusBadGateway
	case errors.As(err, &ferr):
		switch ferr.Kind {
		case content.KindNotFound:
			return http.StatusNotFound
		case content.KindRateLimited:
			return http.StatusServiceUnavailable
		case content.KindTransport:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, err error) {
	payload, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

type page struct {
	Title       string
	Description string
	Body        template.HTML
}

var pageTemplate = template.Must(template.New("article").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .Description}}
<meta name="description" content="{{.Description}}">
{{- end}}
</head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))
