package ygoban

import (
	"io"

	"github.com/scizorman/go-ndjson"
)

// WriteRowsToNDJSON writes one JSON object per row, one per line.
func WriteRowsToNDJSON(rows []Row, w io.Writer) error {
	output, err := ndjson.Marshal(rows)
	if err != nil {
		return err
	}

	_, err = w.Write(output)
	return err
}

// LoadRowsFromNDJSON is the counterpart of WriteRowsToNDJSON.
func LoadRowsFromNDJSON(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rows []Row
	err = ndjson.Unmarshal(data, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
