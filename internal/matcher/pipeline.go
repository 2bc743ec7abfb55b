package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"newsmatch/internal/query"
	"newsmatch/internal/search"
	"newsmatch/internal/similarity"
	"newsmatch/internal/textnorm"
	"newsmatch/pkg/types"
)

// Stage is the position of a post in the matching pipeline.
type Stage int

const (
	StageInit Stage = iota
	StageQueriesGenerated
	StageSearched
	StageScored
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageQueriesGenerated:
		return "queries_generated"
	case StageSearched:
		return "searched"
	case StageScored:
		return "scored"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Collector gathers body-populated candidates for a set of queries.
type Collector interface {
	Collect(ctx context.Context, queries []string, bodies search.BodySource) []types.CandidateArticle
}

// Pipeline turns one post into one MatchResult.
type Pipeline struct {
	collector Collector
	scorer    similarity.Scorer
	queries   query.Options
	link      LinkFormat
	logger    *slog.Logger
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Query  query.Options
	Scorer similarity.Scorer
	Link   LinkFormat
	Logger *slog.Logger
}

// NewPipeline builds a pipeline over a candidate collector.
func NewPipeline(collector Collector, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	link := opts.Link
	if link == nil {
		link = Hyperlink
	}
	return &Pipeline{
		collector: collector,
		scorer:    opts.Scorer,
		queries:   opts.Query,
		link:      link,
		logger:    logger,
	}
}

// PostText is the text a candidate is scored against.
func PostText(post types.PostRecord) string {
	return textnorm.Normalize(post.Title) + " " + textnorm.Normalize(post.Body)
}

// Process runs a post through every stage. It always returns a result for
// the post's row; a panic anywhere becomes the no-match result.
func (p *Pipeline) Process(ctx context.Context, post types.PostRecord, bodies search.BodySource) (res types.MatchResult) {
	stage := StageInit
	logger := p.logger.With("row", post.RowIndex)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("post pipeline panicked",
				"stage", stage.String(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res = types.NoMatch(post.RowIndex)
		}
	}()

	first, second, last := query.LeadSentences(post.Body)
	queries := query.Generate(query.Input{
		Title:  post.Title,
		First:  first,
		Second: second,
		Last:   last,
		Source: post.Keyword,
	}, p.queries)
	stage = StageQueriesGenerated
	logger.Debug("queries generated", "count", len(queries))

	cands := p.collector.Collect(ctx, queries, bodies)
	stage = StageSearched
	logger.Debug("candidates collected", "count", len(cands))

	res = SelectBest(cands, PostText(post), p.scorer, p.link)
	res.RowIndex = post.RowIndex
	stage = StageScored

	if res.Matched() {
		logger.Info("post matched", "link", res.OriginalLink, "copy_ratio", res.CopyRatio)
	} else {
		logger.Info("no original article found", "candidates", len(cands))
	}
	stage = StageDone
	return res
}
