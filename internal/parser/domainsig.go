package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// domainSigColumns mirrors the InterPro protein2ipr.dat.gz TSV layout:
// UniProtAccession MD5 Length InterProID InterProName SignatureDB
// SignatureAcc SignatureName Start Stop Score Status Date.
var domainSigColumns = []string{
	"accession", "md5", "length", "interpro_id", "interpro_name",
	"signature_db", "signature_acc", "signature_name", "start", "stop", "score", "status", "date",
}

// DomainSignatureParser parses tab-separated protein-domain match records.
type DomainSignatureParser struct{}

func NewDomainSignatureParser() *DomainSignatureParser { return &DomainSignatureParser{} }

func (p *DomainSignatureParser) RecordType() string      { return "domain_signature" }
func (p *DomainSignatureParser) OutputFormats() []string { return []string{"tsv", "json"} }

func splitDomainSigLines(data []byte) []string {
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

func (p *DomainSignatureParser) CountRecords(data []byte) (int, bool) {
	return len(splitDomainSigLines(data)), true
}

func (p *DomainSignatureParser) ParseRange(data []byte, start, end int) ([]Record, error) {
	lines := splitDomainSigLines(data)
	if start < 0 || end >= len(lines) || start > end {
		return nil, &ErrOutOfRange{Start: start, End: end, Total: len(lines)}
	}

	records := make([]Record, 0, end-start+1)
	for i := start; i <= end; i++ {
		fields := strings.Split(lines[i], "\t")
		rec := Record{Index: i, Fields: make(map[string]string, len(domainSigColumns))}
		for col, name := range domainSigColumns {
			if col < len(fields) {
				rec.Fields[name] = fields[col]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// DomainSignatureFormatter renders a parsed domain-signature record.
type DomainSignatureFormatter struct{}

func (f *DomainSignatureFormatter) FormatRecord(record Record, format string) ([]byte, string, error) {
	switch format {
	case "tsv":
		values := make([]string, len(domainSigColumns))
		for i, name := range domainSigColumns {
			values[i] = record.Fields[name]
		}
		return []byte(strings.Join(values, "\t") + "\n"), "text/tab-separated-values", nil
	case "json":
		var b strings.Builder
		b.WriteByte('{')
		for i, name := range domainSigColumns {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%q:%q", name, record.Fields[name])
		}
		b.WriteByte('}')
		return []byte(b.String()), "application/json", nil
	default:
		return nil, "", fmt.Errorf("parser: unsupported format %q for domain signature records", format)
	}
}
