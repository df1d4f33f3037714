package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"statsingest/internal/errs"
	"statsingest/internal/model"
)

// maxCSVBytes bounds GetCSV independently of the validator's own size
// check, so a misconfigured bucket can't hand the pipeline an unbounded
// stream before the row-level validation ever sees it.
const maxCSVBytes = 1 << 30 // 1 GiB

// S3Store is the object-storage adapter backing C2's input fetch and C5's
// result-artifact write.
type S3Store struct {
	client       Client
	inputBucket  string
	outputBucket string
}

// NewS3Store builds an S3Store over the given buckets.
func NewS3Store(client Client, inputBucket, outputBucket string) *S3Store {
	return &S3Store{client: client, inputBucket: inputBucket, outputBucket: outputBucket}
}

// GetCSV fetches the input object named by key from the input bucket and
// returns its raw bytes for the validator to parse.
func (s *S3Store) GetCSV(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.inputBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, errs.NewFileNotFound(key)
		}
		return nil, errs.NewStorageAccessError(err, key)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, maxCSVBytes+1))
	if err != nil {
		return nil, errs.NewStorageAccessError(err, key)
	}
	if len(body) > maxCSVBytes {
		return nil, errs.NewFileTooLarge(int64(len(body)), maxCSVBytes)
	}
	return body, nil
}

// PutGzip writes result, JSON-encoded and gzip-compressed, to the
// deterministic path of §4.5/§6:
// results/<YYYY-MM-DD>/<run_id>/<run_id>/aggregated-result.json.gz — see
// DESIGN.md for why the fourth path segment repeats run_id. Object
// metadata carries the execution id, total processed count, and an MD5
// hash of the compressed body, matching the spec's storage layout note.
func (s *S3Store) PutGzip(ctx context.Context, runID string, result model.AggregatedResult) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", errs.NewDataIntegrity("marshal aggregated result", nil)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		return "", errs.NewDataIntegrity("gzip aggregated result", nil)
	}
	if err := gw.Close(); err != nil {
		return "", errs.NewDataIntegrity("gzip aggregated result", nil)
	}
	compressed := buf.Bytes()

	sum := md5.Sum(compressed)
	md5Header := base64.StdEncoding.EncodeToString(sum[:])

	key := fmt.Sprintf("results/%s/%s/%s/aggregated-result.json.gz", time.Now().UTC().Format("2006-01-02"), runID, runID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.outputBucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(compressed),
		ContentEncoding:      aws.String("gzip"),
		ContentType:          aws.String("application/json"),
		ContentMD5:           aws.String(md5Header),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"execution-id":    runID,
			"total-processed": strconv.Itoa(result.Totals.Processed),
			"md5-hash":        md5Header,
		},
	})
	if err != nil {
		return "", errs.NewStorageAccessError(err, key)
	}
	return key, nil
}
