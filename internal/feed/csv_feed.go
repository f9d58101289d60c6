// Package feed reads pending-user rows from the CSV feed.
package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/LeventeLantos/account-provisioner/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile returns the rows of the feed at path. A missing file is an empty feed.
func ReadFile(path string) ([]model.CsvCandidate, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", path, err)
	}
	return Parse(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
}

// Parse reads a header row followed by data rows. Headers are matched
// case-insensitively and cells are trimmed. Rows with missing fields are
// returned as-is; validation is the caller's concern. A malformed record is
// dropped and reading resumes at the next line.
func Parse(r io.Reader) ([]model.CsvCandidate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"phone", "password"} {
		if _, ok := cols[strings.ToLower(required)]; !ok {
			return nil, fmt.Errorf("feed header is missing column %q", required)
		}
	}

	var out []model.CsvCandidate
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isBlank(rec) {
			continue
		}

		cell := func(name string) string {
			i, ok := cols[strings.ToLower(name)]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		out = append(out, model.CsvCandidate{
			Phone:       cell("phone"),
			Password:    cell("password"),
			FirstName:   cell("firstName"),
			LastName:    cell("lastName"),
			Gender:      model.Gender(cell("gender")),
			DateOfBirth: cell("dateOfBirth"),
			Location:    parseLocation(cell("lat"), cell("lon")),
		})
	}
	return out, nil
}

func parseLocation(lat, lon string) *model.Location {
	if lat == "" || lon == "" {
		return nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil
	}
	return &model.Location{Lat: la, Lon: lo, Source: model.LocationSourceCSV}
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
