package memory

import (
	"context"
	"strings"

	"github.com/hupe1980/lifemesh/core"
)

// Searcher finds stored memories.
type Searcher interface {
	Search(namespace, query string, limit int) ([]SearchResult, error)
}

// Recall builds a non-blocking provider placed at the end of the bottom
// section. It searches s with the latest user message and contributes one
// system message listing the hits.
func Recall(name, namespace string, s Searcher, limit int) Builder {
	return New(name).
		Description("Recall stored memories related to the latest user message").
		Options(func(o *Options) {
			o.Behavior = NonBlocking
			o.Position = Position{Section: Bottom, Align: End}
		}).
		Output(func(ctx context.Context, in Input) ([]core.Message, error) {
			query := core.LastUserText(in.Messages)
			if query == "" {
				return nil, nil
			}
			hits, err := s.Search(namespace, query, limit)
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				return nil, nil
			}

			var b strings.Builder
			b.WriteString("Relevant memories:")
			for _, h := range hits {
				b.WriteString("\n- ")
				b.WriteString(h.Content)
			}
			return []core.Message{core.SystemMessage(b.String())}, nil
		})
}
