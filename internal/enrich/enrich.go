// Package enrich discovers key decision makers at listed companies by
// fanning out role-targeted web searches and extracting structured
// contacts from the results with an LLM.
package enrich

// Company is one input row: a company and its web domain.
type Company struct {
	Domain string
	Name   string
}

// Contact is one extracted decision maker, mid-level contact, or
// generic company email.
type Contact struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Title        string `json:"title"`
	LinkedInURL  string `json:"linkedin_url"`
	GenericEmail string `json:"generic_email"`
	SourceURL    string `json:"source_url"`
	CompanyPhone string `json:"company_phone"`

	// Populated by the pipeline, not the extractor.
	Domain      string `json:"domain"`
	CompanyName string `json:"company_name"`
}

// roleQueries are the per-company search query templates. %[1]s is the
// domain, %[2]s the company name. The -zoominfo -dnb terms suppress
// data-broker listings that drown out primary sources.
var roleQueries = []string{
	`%[1]s %[2]s CEO -zoominfo -dnb`,
	`%[1]s %[2]s Founder owner -zoominfo -dnb`,
	`%[1]s %[2]s president chairman -zoominfo -dnb`,
	`%[1]s %[2]s partner -zoominfo -dnb`,
	`%[1]s %[2]s contact email`,
}
