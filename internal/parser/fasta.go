package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// FASTAParser splits a FASTA document into records, one per ">" header
// line and its following sequence lines. It is the parser for UniProt
// protein sequence releases.
type FASTAParser struct{}

func NewFASTAParser() *FASTAParser { return &FASTAParser{} }

func (p *FASTAParser) RecordType() string      { return "protein" }
func (p *FASTAParser) OutputFormats() []string { return []string{"fasta", "json"} }

// splitFASTARecords returns every record's raw bytes in file order; a
// record spans from one ">" line up to (but excluding) the next.
func splitFASTARecords(data []byte) [][]byte {
	var records [][]byte
	var current bytes.Buffer

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	started := false

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			if started {
				records = append(records, append([]byte(nil), current.Bytes()...))
				current.Reset()
			}
			started = true
		}
		if started {
			current.WriteString(line)
			current.WriteByte('\n')
		}
	}
	if started {
		records = append(records, append([]byte(nil), current.Bytes()...))
	}
	return records
}

func (p *FASTAParser) CountRecords(data []byte) (int, bool) {
	return len(splitFASTARecords(data)), true
}

// ParseRange returns records [start, end] inclusive, satisfying the
// decomposition law: parsing [0,k] then [k+1,N-1] and concatenating must
// equal parsing [0,N-1] directly, since each record is extracted
// independently from the same full split.
func (p *FASTAParser) ParseRange(data []byte, start, end int) ([]Record, error) {
	all := splitFASTARecords(data)
	if start < 0 || end >= len(all) || start > end {
		return nil, &ErrOutOfRange{Start: start, End: end, Total: len(all)}
	}

	records := make([]Record, 0, end-start+1)
	for i := start; i <= end; i++ {
		header, sequence := splitFASTAHeaderBody(all[i])
		accession, description := parseFASTAHeader(header)
		records = append(records, Record{
			Index: i,
			Fields: map[string]string{
				"accession":   accession,
				"description": description,
				"sequence":    sequence,
			},
		})
	}
	return records, nil
}

func splitFASTAHeaderBody(record []byte) (header, sequence string) {
	lines := strings.SplitN(string(record), "\n", 2)
	header = strings.TrimPrefix(lines[0], ">")
	if len(lines) > 1 {
		sequence = strings.ReplaceAll(lines[1], "\n", "")
	}
	return header, sequence
}

// parseFASTAHeader splits a UniProt-style header "sp|P01308|INS_HUMAN
// Insulin OS=Homo sapiens" into an accession and a free-text description.
func parseFASTAHeader(header string) (accession, description string) {
	parts := strings.SplitN(header, " ", 2)
	idFields := strings.Split(parts[0], "|")
	accession = idFields[0]
	if len(idFields) >= 2 {
		accession = idFields[1]
	}
	if len(parts) == 2 {
		description = parts[1]
	}
	return accession, description
}

// FASTAFormatter renders a parsed protein record back to FASTA or JSON.
type FASTAFormatter struct{}

func (f *FASTAFormatter) FormatRecord(record Record, format string) ([]byte, string, error) {
	switch format {
	case "fasta":
		body := fmt.Sprintf(">%s %s\n%s\n", record.Fields["accession"], record.Fields["description"], record.Fields["sequence"])
		return []byte(body), "text/x-fasta", nil
	case "json":
		body := fmt.Sprintf(`{"accession":%q,"description":%q,"sequence":%q}`,
			record.Fields["accession"], record.Fields["description"], record.Fields["sequence"])
		return []byte(body), "application/json", nil
	default:
		return nil, "", fmt.Errorf("parser: unsupported format %q for protein records", format)
	}
}
