package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// taxdumpColumns mirrors the NCBI new_taxdump rankedlineage.dmp layout:
// tax_id, tax_name, then the ranked lineage from species up to
// superkingdom. Fields are separated by "\t|\t" with a trailing "\t|".
var taxdumpColumns = []string{
	"tax_id", "tax_name", "species", "genus", "family",
	"order", "class", "phylum", "kingdom", "superkingdom",
}

// TaxdumpParser parses NCBI taxonomy rankedlineage.dmp records.
type TaxdumpParser struct{}

func NewTaxdumpParser() *TaxdumpParser { return &TaxdumpParser{} }

func (p *TaxdumpParser) RecordType() string      { return "taxon" }
func (p *TaxdumpParser) OutputFormats() []string { return []string{"tsv", "json"} }

func splitTaxdumpLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func (p *TaxdumpParser) CountRecords(data []byte) (int, bool) {
	return len(splitTaxdumpLines(data)), true
}

func (p *TaxdumpParser) ParseRange(data []byte, start, end int) ([]Record, error) {
	lines := splitTaxdumpLines(data)
	if start < 0 || end >= len(lines) || start > end {
		return nil, &ErrOutOfRange{Start: start, End: end, Total: len(lines)}
	}

	records := make([]Record, 0, end-start+1)
	for i := start; i <= end; i++ {
		fields := splitTaxdumpFields(lines[i])
		rec := Record{Index: i, Fields: make(map[string]string, len(taxdumpColumns))}
		for col, name := range taxdumpColumns {
			if col < len(fields) {
				rec.Fields[name] = fields[col]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// splitTaxdumpFields splits one dmp line on the "\t|\t" delimiter, dropping
// the trailing "\t|" terminator.
func splitTaxdumpFields(line string) []string {
	line = strings.TrimSuffix(line, "\t|")
	return strings.Split(line, "\t|\t")
}

// TaxdumpFormatter renders a parsed taxon record.
type TaxdumpFormatter struct{}

func (f *TaxdumpFormatter) FormatRecord(record Record, format string) ([]byte, string, error) {
	switch format {
	case "tsv":
		values := make([]string, len(taxdumpColumns))
		for i, name := range taxdumpColumns {
			values[i] = record.Fields[name]
		}
		return []byte(strings.Join(values, "\t") + "\n"), "text/tab-separated-values", nil
	case "json":
		var b strings.Builder
		b.WriteByte('{')
		for i, name := range taxdumpColumns {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%q:%q", name, record.Fields[name])
		}
		b.WriteByte('}')
		return []byte(b.String()), "application/json", nil
	default:
		return nil, "", fmt.Errorf("parser: unsupported format %q for taxon records", format)
	}
}
