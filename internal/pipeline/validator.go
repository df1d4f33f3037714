package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"statsingest/internal/errs"
	"statsingest/internal/model"
)

// maxCSVSizeBytes is the §4.2/§6 ceiling: files larger than 100MB are
// rejected with FileTooLarge before a single row is parsed.
const maxCSVSizeBytes = 100 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// expectedHeaders lists the accepted column sets in header order; the
// Japanese aliases of §6/§4.2 are accepted positionally, matching the
// English header 1:1.
var expectedHeaders = [][]string{
	{"user_id", "login_count", "post_count"},
	{"ユーザーID", "ログイン回数", "投稿回数"},
}

// RowError pairs a malformed row's position with its classified cause.
type RowError struct {
	RowIndex int
	Err      error
}

// ValidationStatistics describes the file-level counters §4.2 requires in
// the validation result regardless of pass/fail.
type ValidationStatistics struct {
	RowCount int
	FileSize int
	Encoding string
}

// ValidationResult is C2's output: either a validated row list plus
// statistics, or a structured failure. Per the spec's test-pinned
// strictness: header/encoding/size failures abort validation outright
// (Valid=false, Rows=nil); row-level failures are collected into Errors
// while validation otherwise still proceeds (Valid=true, partial Rows).
type ValidationResult struct {
	Valid      bool
	Rows       []model.Row
	Statistics ValidationStatistics
	Errors     []RowError
}

// CSVFetcher is the subset of internal/storage.S3Store the validator
// depends on, narrowed for testability.
type CSVFetcher interface {
	GetCSV(ctx context.Context, key string) ([]byte, error)
}

// Validator is C2: fetches, decodes, and validates the input CSV.
type Validator struct {
	fetcher CSVFetcher
}

// NewValidator builds a Validator over fetcher.
func NewValidator(fetcher CSVFetcher) *Validator {
	return &Validator{fetcher: fetcher}
}

// Validate implements the §4.2 validation step for the object at sourceRef
// and returns its ValidationResult; it takes no run_id.
func (v *Validator) Validate(ctx context.Context, sourceRef string) (ValidationResult, error) {
	raw, err := v.fetcher.GetCSV(ctx, sourceRef)
	if err != nil {
		return ValidationResult{}, err
	}

	if len(raw) > maxCSVSizeBytes {
		return ValidationResult{}, errs.NewFileTooLarge(int64(len(raw)), maxCSVSizeBytes)
	}

	if !utf8.Valid(raw) {
		return ValidationResult{}, errs.NewInvalidEncoding("file is not valid UTF-8")
	}

	body := bytes.TrimPrefix(raw, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return ValidationResult{}, errs.NewInvalidHeader(nil, expectedHeaders[0])
		}
		return ValidationResult{}, errs.NewCsvFormatError("failed to read CSV header", map[string]interface{}{"err": err.Error()})
	}
	if !matchesExpectedHeader(header) {
		return ValidationResult{}, errs.NewInvalidHeader(header, expectedHeaders[0])
	}

	var rows []model.Row
	var rowErrors []RowError
	rowIndex := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrors = append(rowErrors, RowError{RowIndex: rowIndex, Err: errs.NewCsvFormatError(fmt.Sprintf("malformed row %d", rowIndex), map[string]interface{}{"err": err.Error()})})
			rowIndex++
			continue
		}

		row, rerr := parseRow(rowIndex, record)
		if rerr != nil {
			rowErrors = append(rowErrors, RowError{RowIndex: rowIndex, Err: rerr})
			rowIndex++
			continue
		}

		rows = append(rows, row)
		rowIndex++
	}

	return ValidationResult{
		Valid: true,
		Rows:  rows,
		Statistics: ValidationStatistics{
			RowCount: rowIndex,
			FileSize: len(raw),
			Encoding: "UTF-8",
		},
		Errors: rowErrors,
	}, nil
}

func matchesExpectedHeader(got []string) bool {
	for _, want := range expectedHeaders {
		if len(got) != len(want) {
			continue
		}
		match := true
		for i := range want {
			if strings.TrimSpace(got[i]) != want[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func parseRow(index int, record []string) (model.Row, error) {
	if len(record) != 3 {
		return model.Row{}, errs.NewCsvFormatError(fmt.Sprintf("row %d: expected 3 columns, got %d", index, len(record)), map[string]interface{}{"row_index": index, "columns": len(record)})
	}

	userID := strings.TrimSpace(record[0])
	if !model.ValidUserID(userID) {
		return model.Row{}, errs.NewValidationError(fmt.Sprintf("row %d: invalid user_id %q", index, userID), map[string]interface{}{"row_index": index, "user_id": userID})
	}

	login, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil || login < 0 {
		return model.Row{}, errs.NewValidationError(fmt.Sprintf("row %d: invalid login_count %q", index, record[1]), map[string]interface{}{"row_index": index, "value": record[1]})
	}

	post, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil || post < 0 {
		return model.Row{}, errs.NewValidationError(fmt.Sprintf("row %d: invalid post_count %q", index, record[2]), map[string]interface{}{"row_index": index, "value": record[2]})
	}

	return model.Row{Index: index, UserID: userID, LoginCount: login, PostCount: post}, nil
}
