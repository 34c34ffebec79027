// Package rag wires the knowledge-base tools: a ranked passage search whose
// results continue the model's turn, and a grounding report surfaced
// straight to the client.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/room4-2/voicerag/search"
	"github.com/room4-2/voicerag/tool"
)

const (
	// maxPassages caps how many ranked passages one search returns
	maxPassages = 5
	// noResults is what the model sees for an empty result set; the model
	// handles a sentinel far better than an empty string
	noResults = "No results found."
	// passageSeparator closes each rendered passage
	passageSeparator = "\n-----\n"
)

// Searcher is the slice of the search client the provider needs
type Searcher interface {
	Query(ctx context.Context, text string, top int) ([]search.Document, error)
	Lookup(ctx context.Context, id string) (search.Document, error)
}

// Provider registers the search and report_grounding tools
type Provider struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewProvider creates a provider over the given search collaborator
func NewProvider(searcher Searcher, logger *zap.Logger) *Provider {
	return &Provider{searcher: searcher, logger: logger}
}

// Attach registers both rag tools
func (p *Provider) Attach(r *tool.Registry) error {
	if err := r.Register(tool.Descriptor{
		Name:    "search",
		Schema:  searchSchema(),
		Handler: p.search,
	}); err != nil {
		return err
	}
	return r.Register(tool.Descriptor{
		Name:    "report_grounding",
		Schema:  groundingSchema(),
		Handler: p.reportGrounding,
	})
}

type searchArgs struct {
	Query string `json:"query"`
}

func (p *Provider) search(ctx context.Context, args string) (tool.Result, error) {
	var parsed searchArgs
	if err := sonic.Unmarshal([]byte(args), &parsed); err != nil {
		return tool.Result{}, fmt.Errorf("parsing search arguments: %w", err)
	}
	p.logger.Info("searching knowledge base", zap.String("query", parsed.Query))

	docs, err := p.searcher.Query(ctx, parsed.Query, maxPassages)
	if err != nil {
		return tool.Result{}, fmt.Errorf("querying index: %w", err)
	}
	if len(docs) == 0 {
		return tool.Result{Payload: noResults, Direction: tool.ToUpstream}, nil
	}

	var b strings.Builder
	for _, doc := range docs {
		b.WriteString("[")
		b.WriteString(doc.ID)
		b.WriteString("]: ")
		b.WriteString(doc.Content)
		b.WriteString(passageSeparator)
	}
	return tool.Result{Payload: b.String(), Direction: tool.ToUpstream}, nil
}

type groundingArgs struct {
	Sources []string `json:"sources"`
}

type groundingSource struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type groundingReport struct {
	Sources []groundingSource `json:"sources"`
}

func (p *Provider) reportGrounding(ctx context.Context, args string) (tool.Result, error) {
	var parsed groundingArgs
	if err := sonic.Unmarshal([]byte(args), &parsed); err != nil {
		return tool.Result{}, fmt.Errorf("parsing grounding arguments: %w", err)
	}
	p.logger.Info("grounding report", zap.Strings("sources", parsed.Sources))

	report := groundingReport{Sources: []groundingSource{}}
	for _, id := range parsed.Sources {
		doc, err := p.searcher.Lookup(ctx, id)
		if errors.Is(err, search.ErrNotFound) {
			// stale ids happen when the index is rebuilt mid-session
			p.logger.Debug("grounding source no longer resolves", zap.String("id", id))
			continue
		}
		if err != nil {
			return tool.Result{}, fmt.Errorf("fetching source %q: %w", id, err)
		}
		report.Sources = append(report.Sources, groundingSource{
			ID:      doc.ID,
			Title:   doc.Title,
			Content: doc.Content,
		})
	}

	payload, err := sonic.Marshal(report)
	if err != nil {
		return tool.Result{}, fmt.Errorf("marshaling grounding report: %w", err)
	}
	return tool.Result{Payload: string(payload), Direction: tool.ToClient}, nil
}

func searchSchema() map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        "search",
		"description": "Search the knowledge base. Results are formatted as a source id first in square brackets, followed by the text content.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

func groundingSchema() map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        "report_grounding",
		"description": "Report which sources from the knowledge base were used to answer the last question. Sources are the ids that appear in square brackets before each passage.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sources": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "List of source ids actually used",
				},
			},
			"required":             []string{"sources"},
			"additionalProperties": false,
		},
	}
}
