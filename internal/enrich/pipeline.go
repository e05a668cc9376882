package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Pipeline fans out role-targeted searches per company, summarizes the
// hits, and extracts structured contacts. Companies are processed in
// fixed-size concurrent batches to stay inside the search API's rate
// limit.
type Pipeline struct {
	searcher  Searcher
	extractor Extractor
	batchSize int
}

// NewPipeline creates a Pipeline. batchSize zero selects the default
// of 14 concurrent companies.
func NewPipeline(searcher Searcher, extractor Extractor, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 14
	}
	return &Pipeline{
		searcher:  searcher,
		extractor: extractor,
		batchSize: batchSize,
	}
}

// Run processes all companies and returns the flattened contact list.
// A company whose searches or extraction fail is logged and skipped;
// one bad domain does not abort the run.
func (p *Pipeline) Run(ctx context.Context, companies []Company) ([]Contact, error) {
	var all []Contact

	for start := 0; start < len(companies); start += p.batchSize {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}

		end := start + p.batchSize
		if end > len(companies) {
			end = len(companies)
		}
		batch := companies[start:end]

		results := make([][]Contact, len(batch))
		var wg sync.WaitGroup
		for i, company := range batch {
			wg.Add(1)
			go func(i int, company Company) {
				defer wg.Done()
				contacts, err := p.ProcessCompany(ctx, company)
				if err != nil {
					slog.Warn("company enrichment failed",
						"component", "enrich",
						"domain", company.Domain,
						"company", company.Name,
						"error", err,
					)
					return
				}
				results[i] = contacts
			}(i, company)
		}
		wg.Wait()

		for _, contacts := range results {
			all = append(all, contacts...)
		}

		slog.Info("enrichment batch completed",
			"component", "enrich",
			"batch_start", start,
			"batch_size", len(batch),
			"contacts_total", len(all),
		)
	}

	return all, nil
}

// ProcessCompany runs every role query for one company concurrently,
// then extracts contacts from the combined summary.
func (p *Pipeline) ProcessCompany(ctx context.Context, company Company) ([]Contact, error) {
	results := make([]*SearchResult, len(roleQueries))
	var wg sync.WaitGroup
	for i, tmpl := range roleQueries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			result, err := p.searcher.Search(ctx, query)
			if err != nil {
				slog.Warn("search query failed",
					"component", "enrich",
					"query", query,
					"error", err,
				)
				result = &SearchResult{Query: query}
			}
			results[i] = result
		}(i, fmt.Sprintf(tmpl, company.Domain, company.Name))
	}
	wg.Wait()

	summary := formatSearchResults(results)

	contacts, err := p.extractor.ExtractContacts(ctx, summary)
	if err != nil {
		return nil, err
	}

	for i := range contacts {
		contacts[i].Domain = company.Domain
		contacts[i].CompanyName = company.Name
		contacts[i].LinkedInURL = validateLinkedInURL(contacts[i].LinkedInURL)
	}
	return contacts, nil
}

// formatSearchResults renders the per-query sections handed to the
// extractor: the query as a header, then the first four organic hits
// separated by "---".
func formatSearchResults(results []*SearchResult) string {
	sections := make([]string, 0, len(results))

	for _, result := range results {
		organic := result.Organic
		if len(organic) > 4 {
			organic = organic[:4]
		}

		formatted := make([]string, 0, len(organic))
		for _, item := range organic {
			if item.Title == "" || item.Link == "" {
				continue
			}
			formatted = append(formatted, fmt.Sprintf("- %s\n  %s\n  %s", item.Title, item.Link, item.Snippet))
		}

		sections = append(sections, fmt.Sprintf("**Search Query:** %s\n\n%s", result.Query, strings.Join(formatted, "\n---\n")))
	}

	return strings.Join(sections, "\n\n\n")
}

// disallowedLinkedInPaths are LinkedIn URL segments that are not
// personal profiles.
var disallowedLinkedInPaths = []string{
	"linkedin.com/company/",
	"linkedin.com/posts/",
	"linkedin.com/pub/dir/",
	"linkedin.com/feed/",
	"linkedin.com/jobs/",
	"linkedin.com/school/",
}

// validateLinkedInURL keeps the URL only if it is a personal profile.
func validateLinkedInURL(url string) string {
	url = strings.TrimSpace(url)
	if !strings.Contains(url, "linkedin.com/in/") {
		return ""
	}
	for _, path := range disallowedLinkedInPaths {
		if strings.Contains(url, path) {
			return ""
		}
	}
	return url
}
