// Package input reads the account list the encoder consumes: a JSON array of
// objects whose keys are record field names. Lines whose first non-blank
// character is '#' are comments.
package input

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmcleod/accenc/internal/util"
	"github.com/jmcleod/accenc/record"
)

// ErrMalformedInput is returned when the input is not a list of records.
var ErrMalformedInput = errors.New("malformed input")

// StripComments drops '#' comment lines, keeping line numbers intact so JSON
// errors still point at the right place.
func StripComments(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if !bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("#")) {
			out.Write(line)
		}
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return out.Bytes(), nil
}

// Read parses a record list from r.
func Read(r io.Reader) ([]record.Record, error) {
	data, err := StripComments(r)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a list of records", ErrMalformedInput)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after record list", ErrMalformedInput)
	}

	records := make([]record.Record, 0, len(raw))
	for i, entry := range raw {
		if entry == nil {
			return nil, fmt.Errorf("%w: entry %d is null", ErrMalformedInput, i)
		}
		rec, err := Convert(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadFile parses the record list in the named file; "-" reads stdin.
func ReadFile(path string) ([]record.Record, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Convert builds a record from one decoded JSON object.
func Convert(entry map[string]any) (record.Record, error) {
	var rec record.Record
	for name, v := range entry {
		code, err := record.FieldByName(name)
		if err != nil {
			return record.Record{}, err
		}
		f, err := convertField(code, v)
		if err != nil {
			return record.Record{}, fmt.Errorf("%s: %w", name, err)
		}
		if err := rec.Set(f); err != nil {
			return record.Record{}, err
		}
	}
	return rec, nil
}

func convertField(code record.FieldCode, v any) (record.Field, error) {
	switch code.Kind() {
	case record.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected a string, got %T", ErrMalformedInput, v)
		}
		return record.NewText(code, s)
	case record.KindSecret:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected a base32 string, got %T", ErrMalformedInput, v)
		}
		b, err := util.Base32Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding base32: %v", ErrMalformedInput, err)
		}
		return record.NewSecret(code, b)
	case record.KindCounter:
		n, err := parseCounter(v)
		if err != nil {
			return nil, err
		}
		return record.HOTPCounter(n), nil
	default:
		return nil, fmt.Errorf("%s: %w", code, record.ErrUnsupportedField)
	}
}

func parseCounter(v any) (uint64, error) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	default:
		return 0, fmt.Errorf("%w: expected a number, got %T", ErrMalformedInput, v)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: counter %q: %v", ErrMalformedInput, s, err)
	}
	return n, nil
}
