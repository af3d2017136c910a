package rag

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Document ordering policies for assembled contexts.
const (
	OrderRelevance    = "relevance"
	OrderPrimaryFirst = "primary-first"
)

// attachmentMarker in a filename flags an attachment or form template rather
// than a primary policy body.
const attachmentMarker = "-F"

// AssemblerConfig holds context assembly parameters.
type AssemblerConfig struct {
	OrderPolicy string `json:"order_policy"`
}

// ContextAssembler groups retrieval hits by source document and upgrades each
// group to the full document text when it can be loaded, degrading to the
// retrieved snippets otherwise. Individual load failures never abort
// assembly.
type ContextAssembler struct {
	reader DocumentReader
	config AssemblerConfig
	logger *slog.Logger
}

// NewContextAssembler creates an assembler reading full documents through
// reader.
func NewContextAssembler(reader DocumentReader, config AssemblerConfig) *ContextAssembler {
	if config.OrderPolicy == "" {
		config.OrderPolicy = OrderRelevance
	}
	return &ContextAssembler{
		reader: reader,
		config: config,
		logger: slog.Default().With("component", "context-assembler"),
	}
}

// docGroup collects the hits of one source document.
type docGroup struct {
	docName      string
	bestDistance float64
	hits         []RetrievedContext
}

// Assemble builds one DocumentContext per distinct source document in the
// hits. Hits are expected in ascending distance order; each group's best
// distance is its most relevant hit.
func (a *ContextAssembler) Assemble(ctx context.Context, hits []RetrievedContext) []DocumentContext {
	if len(hits) == 0 {
		return nil
	}

	groups := groupByDocument(hits)
	a.order(groups)

	contexts := make([]DocumentContext, 0, len(groups))
	for _, g := range groups {
		contexts = append(contexts, a.buildContext(ctx, g))
	}
	return contexts
}

// groupByDocument buckets hits per document name, preserving relevance order
// within each bucket and recording the best distance seen.
func groupByDocument(hits []RetrievedContext) []*docGroup {
	byName := map[string]*docGroup{}
	var order []*docGroup

	for _, hit := range hits {
		name := hit.Metadata.DocName
		g, ok := byName[name]
		if !ok {
			g = &docGroup{docName: name, bestDistance: hit.Distance}
			byName[name] = g
			order = append(order, g)
		}
		if hit.Distance < g.bestDistance {
			g.bestDistance = hit.Distance
		}
		g.hits = append(g.hits, hit)
	}
	return order
}

// order sorts groups by the configured policy. Relevance is ascending best
// distance; primary-first puts policy bodies ahead of attachments, then by
// distance.
func (a *ContextAssembler) order(groups []*docGroup) {
	switch a.config.OrderPolicy {
	case OrderPrimaryFirst:
		sort.SliceStable(groups, func(i, j int) bool {
			pi, pj := isPrimaryDocument(groups[i].docName), isPrimaryDocument(groups[j].docName)
			if pi != pj {
				return pi
			}
			return groups[i].bestDistance < groups[j].bestDistance
		})
	default:
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].bestDistance < groups[j].bestDistance
		})
	}
}

// buildContext loads the full document for a group, degrading to the group's
// snippets when the load fails.
func (a *ContextAssembler) buildContext(ctx context.Context, g *docGroup) DocumentContext {
	dc := DocumentContext{
		DocName:      g.docName,
		IsPrimary:    isPrimaryDocument(g.docName),
		Distance:     g.bestDistance,
		SnippetCount: len(g.hits),
	}

	content, err := a.reader.ReadPolicyDocument(ctx, g.docName)
	if err == nil && strings.TrimSpace(content) != "" {
		dc.Type = ContextFullDocument
		dc.Content = content
		dc.RelevantSections = relevantSections(g.hits)
		return dc
	}

	if err != nil {
		a.logger.Warn("full document unavailable, degrading to snippets",
			"doc_name", g.docName, "error", err)
	}

	// Snippet contexts carry only the group's most relevant chunk.
	dc.Type = ContextSnippet
	best := g.hits[0]
	dc.Content = best.Content
	dc.Section = best.Metadata.SectionPath
	dc.RelevantSections = relevantSections(g.hits)
	return dc
}

// relevantSections lists the distinct section paths of a group's hits in
// relevance order.
func relevantSections(hits []RetrievedContext) []string {
	seen := map[string]bool{}
	var sections []string
	for _, hit := range hits {
		path := hit.Metadata.SectionPath
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		sections = append(sections, path)
	}
	return sections
}

// isPrimaryDocument reports whether the filename names a policy body rather
// than an attachment or form template.
func isPrimaryDocument(name string) bool {
	return !strings.Contains(name, attachmentMarker)
}
