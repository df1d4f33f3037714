package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"statsingest/internal/errs"
	"statsingest/internal/model"
)

type fakeS3Client struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: make(map[string][]byte)}
}

func (f *fakeS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func TestGetCSVReturnsBody(t *testing.T) {
	client := newFakeS3Client()
	client.objects["in/users.csv"] = []byte("user_id,login_count,post_count\n")
	store := NewS3Store(client, "input-bucket", "output-bucket")

	got, err := store.GetCSV(context.Background(), "in/users.csv")
	if err != nil {
		t.Fatalf("GetCSV() error = %v", err)
	}
	if string(got) != "user_id,login_count,post_count\n" {
		t.Errorf("GetCSV() = %q", got)
	}
}

func TestGetCSVMissingKeyReturnsFileNotFound(t *testing.T) {
	client := newFakeS3Client()
	store := NewS3Store(client, "input-bucket", "output-bucket")

	_, err := store.GetCSV(context.Background(), "missing.csv")
	if errs.Classify(err) != errs.TaxonInfrastructure {
		t.Fatalf("Classify(err) = %v, want Infrastructure", errs.Classify(err))
	}
	var c errs.Classified
	if !errors.As(err, &c) || c.Code() != "FILE_NOT_FOUND" {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestPutGzipWritesGzippedJSONWithMetadata(t *testing.T) {
	client := newFakeS3Client()
	store := NewS3Store(client, "input-bucket", "output-bucket")

	result := model.AggregatedResult{
		RunID:  "run-abc",
		Totals: model.Totals{Processed: 10, Succeeded: 9, Failed: 1},
	}

	key, err := store.PutGzip(context.Background(), "run-abc", result)
	if err != nil {
		t.Fatalf("PutGzip() error = %v", err)
	}
	if len(client.puts) != 1 {
		t.Fatalf("expected exactly one PutObject call, got %d", len(client.puts))
	}

	put := client.puts[0]
	if put.ContentEncoding == nil || *put.ContentEncoding != "gzip" {
		t.Errorf("ContentEncoding = %v, want gzip", put.ContentEncoding)
	}
	if put.Metadata["execution-id"] != "run-abc" {
		t.Errorf("Metadata[execution-id] = %q, want run-abc", put.Metadata["execution-id"])
	}
	if put.Metadata["total-processed"] != "10" {
		t.Errorf("Metadata[total-processed] = %q, want 10", put.Metadata["total-processed"])
	}

	stored := client.objects[key]
	gr, err := gzip.NewReader(bytes.NewReader(stored))
	if err != nil {
		t.Fatalf("stored object is not valid gzip: %v", err)
	}
	defer gr.Close()
	decompressed, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("failed reading decompressed body: %v", err)
	}

	var got model.AggregatedResult
	if err := json.Unmarshal(decompressed, &got); err != nil {
		t.Fatalf("decompressed body is not valid JSON: %v", err)
	}
	if got.RunID != "run-abc" || got.Totals.Processed != 10 {
		t.Errorf("round-tripped result = %+v", got)
	}
}
