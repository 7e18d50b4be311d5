// Package corpus loads evaluation text records from parquet, JSON Lines or plain text files.
package corpus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Record is one corpus row. HuggingFace text datasets store it in a "text" column.
type Record struct {
	Text string `parquet:"text,optional" json:"text"`
}

// Records is an in-memory corpus; it satisfies harness.Corpus.
type Records []Record

func (r Records) Len() int          { return len(r) }
func (r Records) Text(i int) string { return r[i].Text }

// Format names a supported file layout.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
	FormatText    Format = "text"
)

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".txt", ".raw", ".tokens":
		return FormatText, nil
	default:
		return "", fmt.Errorf("cannot infer corpus format from %q (set dataset.format)", path)
	}
}

// Load reads path in the given format, or the format implied by its extension
// when format is empty.
func Load(path string, format Format) (Records, error) {
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	switch format {
	case FormatParquet:
		return LoadParquet(path)
	case FormatJSONL:
		return LoadJSONL(path)
	case FormatText:
		return LoadText(path)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", format)
	}
}

// LoadParquet reads the "text" column of a parquet file, preserving row order.
func LoadParquet(path string) (Records, error) {
	rows, err := parquet.ReadFile[Record](path)
	if err != nil {
		return nil, fmt.Errorf("parquet %s: %w", path, err)
	}
	return Records(rows), nil
}

// LoadJSONL reads one {"text": ...} object per line.
func LoadJSONL(path string) (Records, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out Records
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var r Record
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("jsonl %s record %d: %w", path, len(out), err)
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadText reads one record per line. Like the Hub's wikitext rows, a
// record keeps its trailing newline and an empty line is an empty record.
func LoadText(path string) (Records, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out Records
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line == "\n" {
			line = ""
		}
		if line != "" || err == nil {
			out = append(out, Record{Text: line})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("text %s: %w", path, err)
		}
	}
	return out, nil
}
