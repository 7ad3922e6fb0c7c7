package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bdougie/framesearch/internal/embeddings"
	"github.com/bdougie/framesearch/internal/index"
	"github.com/bdougie/framesearch/internal/metrics"
	"github.com/bdougie/framesearch/internal/models"
)

func search(ctx context.Context, ix *index.Index, embedder embeddings.Embedder, query string, topN int) ([]models.SearchResult, error) {
	ctx, span := otel.Tracer("framesearch/cli").Start(ctx, "search")
	defer span.End()
	span.SetAttributes(attribute.Int("top_n", topN), attribute.Int("corpus_size", ix.Len()))

	results, err := ix.Search(ctx, embedder, query, topN)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.SearchesTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

func printResults(w io.Writer, query string, results []models.SearchResult) {
	fmt.Fprintf(w, "\nQuery: %s\n", query)
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. frame %d (similarity %.4f)\n", i+1, r.Frame.FrameID, r.Similarity)
		fmt.Fprintf(w, "   %s\n", r.Frame.PublishedURL)
		fmt.Fprintf(w, "   %s\n", truncate(r.Frame.Caption, 200))
	}
}

// truncate collapses whitespace and keeps at most n runes of s.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// interactiveSearch reads one query per line until EOF, an empty line or
// "quit".
func interactiveSearch(ctx context.Context, in io.Reader, out io.Writer, ix *index.Index, embedder embeddings.Embedder, topN int) []models.QueryResult {
	var answered []models.QueryResult
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "\nsearch> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" || query == "quit" || query == "exit" {
			break
		}

		results, err := search(ctx, ix, embedder, query, topN)
		if err != nil {
			fmt.Fprintf(out, "search failed: %v\n", err)
			continue
		}
		printResults(out, query, results)
		answered = append(answered, models.QueryResult{Query: query, Results: results})

		if ctx.Err() != nil {
			break
		}
	}
	fmt.Fprintln(out)
	return answered
}
