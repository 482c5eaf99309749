// Package csvdecode turns raw CSV bytes of unknown encoding and delimiter
// into an ordered sequence of cleaned field maps. It has no knowledge of
// jobs, staging rows, or the database — it is a pure bytes-in, rows-out
// transform, callable from the processor and from tests alike.
package csvdecode

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// encodingCandidate pairs a probe name with the decoder that realizes it.
// A nil Decoder marks UTF-8, whose validity is checked with utf8.Valid
// rather than a charmap transform.
type encodingCandidate struct {
	name    string
	decoder *encoding.Decoder
}

// encodingCandidates is tried in this exact order; the first clean decode
// wins. latin-1/iso-8859-1 and cp1252/windows-1252 decode through the same
// charmap tables under different names, matching the reference probe list
// verbatim rather than collapsing it to two distinct tables.
func encodingCandidates() []encodingCandidate {
	return []encodingCandidate{
		{name: "utf-8", decoder: nil},
		{name: "latin-1", decoder: charmap.ISO8859_1.NewDecoder()},
		{name: "cp1252", decoder: charmap.Windows1252.NewDecoder()},
		{name: "iso-8859-1", decoder: charmap.ISO8859_1.NewDecoder()},
		{name: "windows-1252", decoder: charmap.Windows1252.NewDecoder()},
	}
}

// delimiterCandidates is tried in this exact order: semicolon first
// because European CSV exports commonly use it, then comma, then tab.
var delimiterCandidates = []rune{';', ',', '\t'}

// Result is the decoder's output: the ordered, cleaned rows plus the
// encoding/delimiter it settled on, kept for diagnostics and logging.
type Result struct {
	Rows     []map[string]string
	Encoding string
	Delimiter rune
}

// Decode probes encodings and delimiters in the fixed orders above and
// returns the first combination that parses into well-formed rows.
func Decode(raw []byte) (Result, error) {
	content, usedEncoding, err := decodeText(raw)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode CSV with any encoding: %w", err)
	}

	for _, delimiter := range delimiterCandidates {
		rows, ok := tryDelimiter(content, delimiter)
		if ok {
			return Result{Rows: rows, Encoding: usedEncoding, Delimiter: delimiter}, nil
		}
	}

	// No candidate passed the acceptance test; fall back to comma per §4.2.
	rows := parseWithDelimiter(content, ',')
	return Result{Rows: rows, Encoding: usedEncoding, Delimiter: ','}, nil
}

// decodeText tries each encoding candidate in order and returns the first
// one that decodes raw cleanly.
func decodeText(raw []byte) (string, string, error) {
	for _, candidate := range encodingCandidates() {
		if candidate.decoder == nil {
			if utf8.Valid(raw) {
				return string(raw), candidate.name, nil
			}
			continue
		}
		decoded, err := candidate.decoder.Bytes(raw)
		if err != nil {
			continue
		}
		return string(decoded), candidate.name, nil
	}
	return "", "", fmt.Errorf("tried: utf-8, latin-1, cp1252, iso-8859-1, windows-1252")
}

// tryDelimiter parses content with the given delimiter and applies the
// three-part acceptance test from §4.2 to the first produced row.
func tryDelimiter(content string, delimiter rune) ([]map[string]string, bool) {
	rows := parseWithDelimiter(content, delimiter)
	if len(rows) == 0 {
		return nil, false
	}

	first := rows[0]
	fieldNames := make([]string, 0, len(first))
	nonEmptyCount := 0
	for name, value := range first {
		fieldNames = append(fieldNames, name)
		if value != "" {
			nonEmptyCount++
		}
	}

	hasMultipleFields := len(fieldNames) > 1
	if !hasMultipleFields || nonEmptyCount == 0 {
		return nil, false
	}

	if !fieldNamesLookValid(fieldNames, delimiter) {
		return nil, false
	}

	return rows, true
}

// fieldNamesLookValid rejects a delimiter whose header row still contains
// a DIFFERENT candidate delimiter character — the only defense against a
// single-column file being mistaken for, say, a semicolon-delimited one.
// This rule must be preserved exactly.
func fieldNamesLookValid(fieldNames []string, chosen rune) bool {
	for _, other := range delimiterCandidates {
		if other == chosen {
			continue
		}
		for _, name := range fieldNames {
			if strings.ContainsRune(name, other) {
				return false
			}
		}
	}
	return true
}

// parseWithDelimiter runs a header-aware CSV parse and applies row
// cleanup: drop columns with a blank header, trim keys and values, drop
// rows that are entirely empty after trimming.
func parseWithDelimiter(content string, delimiter rune) []map[string]string {
	br := bufio.NewReader(strings.NewReader(content))
	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		cleaned := make(map[string]string)
		anyNonEmpty := false
		for i, rawHeader := range headers {
			header := strings.TrimSpace(rawHeader)
			if header == "" {
				continue
			}
			var value string
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			cleaned[header] = value
			if value != "" {
				anyNonEmpty = true
			}
		}

		if len(cleaned) > 0 && anyNonEmpty {
			rows = append(rows, cleaned)
		}
	}

	return rows
}

// Encode is the inverse of Decode for a given (encoding, delimiter) pair,
// used by the decoder's round-trip tests (P7). It is not part of the
// production ingestion path.
func Encode(rows []map[string]string, headers []string, delimiterEnc string, delimiter rune) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = delimiter

	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = row[h]
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return encodeBytes(buf.Bytes(), delimiterEnc)
}

func encodeBytes(utf8Bytes []byte, name string) ([]byte, error) {
	switch name {
	case "utf-8":
		return utf8Bytes, nil
	case "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewEncoder().Bytes(utf8Bytes)
	case "cp1252", "windows-1252":
		return charmap.Windows1252.NewEncoder().Bytes(utf8Bytes)
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}
