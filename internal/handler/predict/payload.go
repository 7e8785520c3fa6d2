package predict

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
)

// RowSet is the column-aligned form of a prediction request. Column order follows
// the field order of the request object; every record has one cell per column.
type RowSet struct {
	columns []string
	records [][]string
}

func (r *RowSet) Columns() []string {
	return r.columns
}

func (r *RowSet) Records() [][]string {
	return r.records
}

func (r *RowSet) Len() int {
	return len(r.records)
}

// Normalize turns a JSON object of scalars or scalar arrays into a RowSet.
// A scalar counts as a one-element array. All arrays must have the same length.
// null becomes an empty cell; nested objects and arrays are rejected.
func Normalize(body []byte) (*RowSet, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(err, "payload is not valid JSON")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, perrors.Newf(perrors.KindMalformedPayload, "payload must be a JSON object")
	}

	var (
		columns []string
		values  [][]string
		seen    = map[string]struct{}{}
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(err, "payload is not valid JSON")
		}
		field, ok := tok.(string)
		if !ok {
			return nil, perrors.Newf(perrors.KindMalformedPayload, "payload is not valid JSON")
		}
		if _, dup := seen[field]; dup {
			return nil, perrors.Newf(perrors.KindMalformedPayload, "field %q appears more than once", field)
		}
		seen[field] = struct{}{}

		cells, err := readField(dec, field)
		if err != nil {
			return nil, err
		}
		columns = append(columns, field)
		values = append(values, cells)
	}
	if _, err := dec.Token(); err != nil {
		return nil, malformed(err, "payload is not valid JSON")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, perrors.Newf(perrors.KindMalformedPayload, "unexpected data after payload object")
	}

	if len(columns) == 0 {
		return nil, perrors.Newf(perrors.KindMalformedPayload, "payload has no fields")
	}
	n := len(values[0])
	for i, cells := range values {
		if len(cells) != n {
			return nil, perrors.Newf(perrors.KindMalformedPayload,
				"field %q has %d values, field %q has %d", columns[i], len(cells), columns[0], n)
		}
	}

	records := make([][]string, n)
	for row := range records {
		rec := make([]string, len(columns))
		for col := range columns {
			rec[col] = values[col][row]
		}
		records[row] = rec
	}
	return &RowSet{columns: columns, records: records}, nil
}

func readField(dec *json.Decoder, field string) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(err, "payload is not valid JSON")
	}
	d, isDelim := tok.(json.Delim)
	if !isDelim {
		return []string{cell(tok)}, nil
	}
	if d != '[' {
		return nil, perrors.Newf(perrors.KindMalformedPayload, "field %q: nested objects are not supported", field)
	}

	var cells []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(err, "payload is not valid JSON")
		}
		if _, nested := tok.(json.Delim); nested {
			return nil, perrors.Newf(perrors.KindMalformedPayload, "field %q: values must be scalars", field)
		}
		cells = append(cells, cell(tok))
	}
	if _, err := dec.Token(); err != nil {
		return nil, malformed(err, "payload is not valid JSON")
	}
	if len(cells) == 0 {
		return nil, perrors.Newf(perrors.KindMalformedPayload, "field %q has no values", field)
	}
	return cells, nil
}

// cell renders a JSON scalar the way the predictor tooling reads CSV cells.
func cell(tok json.Token) string {
	switch v := tok.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

func malformed(err error, msg string) error {
	return perrors.Wrapf(perrors.KindMalformedPayload, err, "%s", msg)
}
