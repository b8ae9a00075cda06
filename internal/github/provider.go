// Package github reads raw repository files through the GitHub contents API.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/sergiodxa/blog/internal/content"
)

const (
	userAgent      = "sergiodxa-blog/1.0"
	mediaTypeRaw   = "application/vnd.github.raw"
	defaultBaseURL = "https://api.github.com/"
)

// Options identifies the repository content is read from.
type Options struct {
	Owner string
	Repo  string
	// Ref is a branch, tag or commit; empty means the default branch.
	Ref   string
	Token string
	// BaseURL overrides the API root, e.g. for GitHub Enterprise.
	BaseURL string
}

// Provider implements content.Provider for a single owner/repo.
type Provider struct {
	client *gh.Client
	owner  string
	repo   string
	ref    string
}

var _ content.Provider = (*Provider)(nil)

// New builds a provider issuing requests through httpClient.
func New(httpClient *http.Client, opts Options) (*Provider, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}

	client := gh.NewClient(httpClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	client.UserAgent = userAgent

	if opts.BaseURL != "" && opts.BaseURL != defaultBaseURL {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url %q: %w", opts.BaseURL, err)
		}
		if base.Scheme != "http" && base.Scheme != "https" {
			return nil, fmt.Errorf("github base url %q must use http or https scheme", opts.BaseURL)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		client.BaseURL = base
	}

	return &Provider{client: client, owner: opts.Owner, repo: opts.Repo, ref: opts.Ref}, nil
}

// Fetch returns the raw body of the file at path.
func (p *Provider) Fetch(ctx context.Context, path string) (content.Blob, error) {
	escaped := (&url.URL{Path: strings.Trim(path, "/")}).String()
	u := fmt.Sprintf("repos/%s/%s/contents/%s", p.owner, p.repo, escaped)
	if p.ref != "" {
		u += "?ref=" + url.QueryEscape(p.ref)
	}

	req, err := p.client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return content.Blob{}, err
	}
	req.Header.Set("Accept", mediaTypeRaw)

	var buf bytes.Buffer
	resp, err := p.client.Do(ctx, req, &buf)
	if err != nil {
		return content.Blob{}, mapError(path, err)
	}

	return content.Blob{
		Data:      buf.Bytes(),
		MediaType: resp.Header.Get("Content-Type"),
	}, nil
}

func mapError(path string, err error) error {
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		respErr  *gh.ErrorResponse
	)

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%w: %s: %v", content.ErrRateLimited, path, err)
	case errors.As(err, &respErr):
		status := 0
		if respErr.Response != nil {
			status = respErr.Response.StatusCode
		}
		switch status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", content.ErrNotFound, path)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %s", content.ErrUnauthorized, path, respErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s: %s", content.ErrRateLimited, path, respErr.Message)
		default:
			return fmt.Errorf("github status %d for %s: %s", status, path, respErr.Message)
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", content.ErrTransport, path, err)
	}
}
