package pipeline

import (
	"context"
	"testing"

	"statsingest/internal/errs"
)

type fakeCSVFetcher struct {
	body []byte
	err  error
}

func (f *fakeCSVFetcher) GetCSV(_ context.Context, _ string) ([]byte, error) {
	return f.body, f.err
}

func TestValidateHappyPath(t *testing.T) {
	fetcher := &fakeCSVFetcher{body: []byte("user_id,login_count,post_count\nU00001,12,25\nU00002,3,7\n")}
	v := NewValidator(fetcher)

	result, err := v.Validate(context.Background(), "uploads/users.csv")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Valid {
		t.Fatal("expected Valid = true")
	}
	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(result.Rows))
	}
	if result.Rows[0].UserID != "U00001" || result.Rows[0].LoginCount != 12 || result.Rows[0].PostCount != 25 {
		t.Errorf("Rows[0] = %+v", result.Rows[0])
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no row errors, got %d", len(result.Errors))
	}
}

func TestValidateStripsBOM(t *testing.T) {
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte("user_id,login_count,post_count\nU00001,1,1\n")...)
	v := NewValidator(&fakeCSVFetcher{body: body})

	result, err := v.Validate(context.Background(), "uploads/users.csv")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(result.Rows))
	}
}

func TestValidateAcceptsJapaneseHeaderAliases(t *testing.T) {
	body := []byte("ユーザーID,ログイン回数,投稿回数\nU00001,1,1\n")
	v := NewValidator(&fakeCSVFetcher{body: body})

	result, err := v.Validate(context.Background(), "uploads/users.csv")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Valid || len(result.Rows) != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestValidateRejectsInvalidHeader(t *testing.T) {
	v := NewValidator(&fakeCSVFetcher{body: []byte("a,b,c\nU00001,1,1\n")})

	_, err := v.Validate(context.Background(), "uploads/users.csv")
	if errs.Classify(err) != errs.TaxonBusiness {
		t.Fatalf("Classify(err) = %v, want Business", errs.Classify(err))
	}
}

func TestValidateRejectsNonUTF8(t *testing.T) {
	v := NewValidator(&fakeCSVFetcher{body: []byte{0xff, 0xfe, 0xfd}})

	_, err := v.Validate(context.Background(), "uploads/users.csv")
	if err == nil {
		t.Fatal("expected an encoding error")
	}
}

func TestValidateRejectsFileTooLarge(t *testing.T) {
	oversized := make([]byte, maxCSVSizeBytes+1)
	v := NewValidator(&fakeCSVFetcher{body: oversized})

	_, err := v.Validate(context.Background(), "uploads/users.csv")
	if err == nil {
		t.Fatal("expected a file-too-large error")
	}
}

func TestValidateCollectsRowErrorsPermissively(t *testing.T) {
	body := []byte("user_id,login_count,post_count\nU00001,1,1\nBADID,1,1\nU00002,-1,1\n")
	v := NewValidator(&fakeCSVFetcher{body: body})

	result, err := v.Validate(context.Background(), "uploads/users.csv")
	if err != nil {
		t.Fatalf("Validate() error = %v (row errors should not abort validation)", err)
	}
	if !result.Valid {
		t.Fatal("expected Valid = true despite row errors")
	}
	if len(result.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1 valid row", len(result.Rows))
	}
	if len(result.Errors) != 2 {
		t.Fatalf("len(Errors) = %d, want 2", len(result.Errors))
	}
}

func TestValidateZeroDataRows(t *testing.T) {
	v := NewValidator(&fakeCSVFetcher{body: []byte("user_id,login_count,post_count\n")})

	result, err := v.Validate(context.Background(), "uploads/users.csv")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(result.Rows) != 0 {
		t.Fatalf("len(Rows) = %d, want 0", len(result.Rows))
	}
}
