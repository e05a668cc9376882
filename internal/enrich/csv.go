package enrich

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// ReadCompanies reads the input CSV. The file must carry "Domain" and
// "Company Name" columns; extra columns are ignored.
func ReadCompanies(path string) ([]Company, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read input csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	domainCol, nameCol := -1, -1
	for i, header := range records[0] {
		switch strings.TrimSpace(header) {
		case "Domain":
			domainCol = i
		case "Company Name":
			nameCol = i
		}
	}
	if domainCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf(`input file must contain "Domain" and "Company Name" columns`)
	}

	var companies []Company
	for _, record := range records[1:] {
		if domainCol >= len(record) || nameCol >= len(record) {
			continue
		}
		domain := strings.TrimSpace(record[domainCol])
		name := strings.TrimSpace(record[nameCol])
		if domain == "" && name == "" {
			continue
		}
		companies = append(companies, Company{Domain: domain, Name: name})
	}

	return companies, nil
}

// WriteContacts writes the extracted contacts as CSV.
func WriteContacts(path string, contacts []Contact) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{
		"Domain", "Company Name", "First Name", "Last Name", "Title",
		"LinkedIn URL", "Generic Email", "Source URL", "Company Phone",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, c := range contacts {
		record := []string{
			c.Domain, c.CompanyName, c.FirstName, c.LastName, c.Title,
			c.LinkedInURL, c.GenericEmail, c.SourceURL, c.CompanyPhone,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	return writer.Error()
}
