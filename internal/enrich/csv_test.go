package enrich

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "companies.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestReadCompanies(t *testing.T) {
	path := writeTempCSV(t, `Company Name,Domain,Notes
Acme,acme.com,hot lead
Cedar Mill Bakery,cedarmill.example,
,,
 Summit Tooling , summit.example ,trim me
`)

	companies, err := ReadCompanies(path)
	if err != nil {
		t.Fatalf("ReadCompanies: %v", err)
	}
	if len(companies) != 3 {
		t.Fatalf("got %d companies, want 3", len(companies))
	}
	if companies[0].Domain != "acme.com" || companies[0].Name != "Acme" {
		t.Errorf("first company = %+v", companies[0])
	}
	if companies[2].Domain != "summit.example" || companies[2].Name != "Summit Tooling" {
		t.Errorf("whitespace not trimmed: %+v", companies[2])
	}
}

func TestReadCompaniesMissingColumns(t *testing.T) {
	path := writeTempCSV(t, "Website,Name\nacme.com,Acme\n")

	if _, err := ReadCompanies(path); err == nil {
		t.Error("expected error for missing required columns")
	}
}

func TestReadCompaniesEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")

	if _, err := ReadCompanies(path); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestReadCompaniesMissingFile(t *testing.T) {
	if _, err := ReadCompanies(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteContacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	contacts := []Contact{
		{
			Domain: "acme.com", CompanyName: "Acme",
			FirstName: "Jane", LastName: "Doe", Title: "CEO",
			LinkedInURL: "https://linkedin.com/in/janedoe",
			SourceURL:   "https://acme.com/team",
		},
		{
			Domain: "acme.com", CompanyName: "Acme",
			Title: "Generic Email", GenericEmail: "info@acme.com",
		},
	}

	if err := WriteContacts(path, contacts); err != nil {
		t.Fatalf("WriteContacts: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(records))
	}
	if records[0][0] != "Domain" || records[0][8] != "Company Phone" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][2] != "Jane" || records[1][5] != "https://linkedin.com/in/janedoe" {
		t.Errorf("contact row = %v", records[1])
	}
	if records[2][6] != "info@acme.com" {
		t.Errorf("generic email row = %v", records[2])
	}
}
