// Package search is a thin REST client for the search collaborator that
// backs the rag tools: a ranked free-text query and a fetch-by-id lookup.
// Index population lives in a separate pipeline and is not handled here.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

const defaultAPIVersion = "2024-07-01"

// ErrNotFound is returned by Lookup when the id no longer resolves
var ErrNotFound = errors.New("document not found")

// Document is one indexed passage
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Client queries a single index of an Azure-AI-Search-shaped service
type Client struct {
	endpoint   string
	index      string
	apiKey     string
	apiVersion string
	httpc      *fasthttp.Client
}

// NewClient creates a client for one index. The endpoint is the service
// root, e.g. https://myservice.search.windows.net
func NewClient(endpoint, index, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		index:      index,
		apiKey:     apiKey,
		apiVersion: defaultAPIVersion,
		httpc:      &fasthttp.Client{},
	}
}

type queryRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
	Select string `json:"select"`
}

type queryResponse struct {
	Value []Document `json:"value"`
}

// Query runs a free-text search and returns up to top ranked documents
func (c *Client) Query(ctx context.Context, text string, top int) ([]Document, error) {
	body, err := sonic.Marshal(queryRequest{
		Search: text,
		Top:    top,
		Select: "id,title,content",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.queryURI())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("api-key", c.apiKey)
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("search query returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	var parsed queryResponse
	if err := sonic.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return parsed.Value, nil
}

// Lookup fetches a single document by key. Returns ErrNotFound when the key
// no longer resolves.
func (c *Client) Lookup(ctx context.Context, id string) (Document, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.lookupURI(id))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("api-key", c.apiKey)

	if err := c.do(ctx, req, resp); err != nil {
		return Document{}, err
	}
	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return Document{}, ErrNotFound
	default:
		return Document{}, fmt.Errorf("search lookup returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	var doc Document
	if err := sonic.Unmarshal(resp.Body(), &doc); err != nil {
		return Document{}, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// do runs the request in a goroutine so the caller's context is respected;
// fasthttp itself has no context plumbing
func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	errC := make(chan error, 1)
	go func() {
		errC <- c.httpc.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("performing search request: %w", err)
		}
		return nil
	}
}

func (c *Client) queryURI() string {
	return fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.endpoint, c.index, c.apiVersion)
}

func (c *Client) lookupURI(id string) string {
	return fmt.Sprintf("%s/indexes/%s/docs/%s?api-version=%s&$select=id,title,content",
		c.endpoint, c.index, url.PathEscape(id), c.apiVersion)
}
