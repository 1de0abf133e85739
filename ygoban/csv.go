package ygoban

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// IOError is returned when an export file cannot be created or written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// DefaultCSVName returns the name of the export file for the given day.
func DefaultCSVName(t time.Time) string {
	return "all_yugi_cards-" + t.Format("2006-01-02") + ".csv"
}

func (row Row) record() []string {
	return []string{
		row.Key,
		strconv.Itoa(row.CardId),
		row.Name,
		row.Type,
		row.Archetype,
		row.Description,
		row.SetName,
		row.SetCode,
		row.Rarity,
		fmt.Sprintf("%0.2f", row.Price),
		row.ImageURL,
		row.SmallImageURL,
	}
}

// WriteRowsToCSV writes the Header followed by one record per row.
func WriteRowsToCSV(rows []Row, w io.Writer) error {
	csvWriter := csv.NewWriter(w)

	err := csvWriter.Write(Header)
	if err != nil {
		return err
	}

	for _, row := range rows {
		err = csvWriter.Write(row.record())
		if err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportCSV writes rows to the file at path, replacing its content.
func ExportCSV(rows []Row, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}

	err = WriteRowsToCSV(rows, file)
	if err != nil {
		file.Close()
		return &IOError{Path: path, Err: err}
	}

	err = file.Close()
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

// LoadRowsFromCSV parses a file produced by WriteRowsToCSV, returning the
// rows in file order. Malformed records are reported as *LoadError.
func LoadRowsFromCSV(r io.Reader) ([]Row, error) {
	csvReader := csv.NewReader(r)
	first, err := csvReader.Read()
	if err == io.EOF {
		return nil, errors.New("empty input file")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	okHeader := len(first) == len(Header)
	if okHeader {
		for i, tag := range Header {
			if tag != first[i] {
				okHeader = false
				break
			}
		}
	}
	if !okHeader {
		return nil, errors.New("malformed header")
	}

	var rows []Row
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &LoadError{Line: parseErr.Line, Err: parseErr.Err}
			}
			return nil, &LoadError{Err: err}
		}
		line, _ := csvReader.FieldPos(0)

		id, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, &LoadError{Line: line, Key: record[0], Err: err}
		}
		price, err := strconv.ParseFloat(record[9], 64)
		if err != nil {
			return nil, &LoadError{Line: line, Key: record[0], Err: err}
		}

		rows = append(rows, Row{
			Key:           record[0],
			CardId:        id,
			Name:          record[2],
			Type:          record[3],
			Archetype:     record[4],
			Description:   record[5],
			SetName:       record[6],
			SetCode:       record[7],
			Rarity:        record[8],
			Price:         price,
			ImageURL:      record[10],
			SmallImageURL: record[11],
		})
	}

	return rows, nil
}
