package tools

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source/fetcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type ReadURLInput struct {
	URL string `json:"url" jsonschema:"the URL of the web page to download"`
}

type CountWordInput struct {
	URL  string `json:"url" jsonschema:"the URL of the web page to search"`
	Word string `json:"word" jsonschema:"the word to count, case-insensitive"`
}

type SearchDocsInput struct {
	Query   string            `json:"query" jsonschema:"free-text search query"`
	TopK    *int              `json:"top_k,omitempty" jsonschema:"maximum number of results"`
	Filters map[string]string `json:"filters,omitempty" jsonschema:"exact-match keyword field filters"`
}

// RegisterBuiltins adds read_url and count_word_in_url backed by f, and
// search_docs backed by svc. Either dependency may be nil to skip its tools.
func RegisterBuiltins(r *Registry, f fetcher.Fetcher, svc *service.Service) error {
	var errs []error
	if f != nil {
		errs = append(errs,
			Register(r, Spec{
				Name:        "read_url",
				Description: "Download the readable content of a web page.",
			}, func(ctx context.Context, in ReadURLInput) (*fetcher.Page, error) {
				return f.Fetch(ctx, in.URL)
			}),
			Register(r, Spec{
				Name:        "count_word_in_url",
				Description: "Count occurrences of a word on a web page, as a whole word and as a substring.",
			}, func(ctx context.Context, in CountWordInput) (WordCount, error) {
				if in.Word == "" {
					return WordCount{}, apperrors.E("count_word_in_url", apperrors.ErrInvalidArgument, "word must not be empty")
				}
				page, err := f.Fetch(ctx, in.URL)
				if err != nil {
					return WordCount{}, err
				}
				wc, err := CountWord(page.Content, in.Word)
				if err != nil {
					return WordCount{}, err
				}
				wc.URL = page.URL
				return wc, nil
			}),
		)
	}
	if svc != nil {
		errs = append(errs, Register(r, Spec{
			Name:        "search_docs",
			Description: "Search the indexed documentation and return the best matching documents.",
		}, func(ctx context.Context, in SearchDocsInput) (*service.Result, error) {
			limit := svc.DefaultLimit()
			if in.TopK != nil {
				limit = *in.TopK
			}
			return svc.Search(ctx, service.Request{
				Query:   in.Query,
				Limit:   limit,
				Filters: in.Filters,
				Source:  "tool",
			})
		}))
	}
	return errors.Join(errs...)
}
