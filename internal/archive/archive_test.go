package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
)

type stubS3 struct {
	input *s3svc.PutObjectInput
	err   error
}

func (s *stubS3) PutObject(_ context.Context, params *s3svc.PutObjectInput, _ ...func(*s3svc.Options)) (*s3svc.PutObjectOutput, error) {
	s.input = params
	return &s3svc.PutObjectOutput{}, s.err
}

func TestPutWritesDatePartitionedJSON(t *testing.T) {
	stub := &stubS3{}
	a := &Archiver{client: stub, bucket: "governance-archive", prefix: "costgov"}

	day := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
	key, err := a.Put(context.Background(), "reports", "weekly", day, map[string]int{"idle_resource_count": 3})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want := "costgov/reports/2026/08/31/weekly.json"
	if key != want {
		t.Errorf("key = %q; want %q", key, want)
	}
	if got := aws.ToString(stub.input.Bucket); got != "governance-archive" {
		t.Errorf("bucket = %q", got)
	}
	if got := aws.ToString(stub.input.ContentType); got != "application/json" {
		t.Errorf("content type = %q", got)
	}

	raw, err := io.ReadAll(stub.input.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var doc map[string]int
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if doc["idle_resource_count"] != 3 {
		t.Errorf("idle_resource_count = %d; want 3", doc["idle_resource_count"])
	}
}

func TestPutWrapsWriteError(t *testing.T) {
	stub := &stubS3{err: errors.New("AccessDenied")}
	a := &Archiver{client: stub, bucket: "governance-archive", prefix: "costgov"}

	_, err := a.Put(context.Background(), "summaries", "cycle", time.Now(), struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, stub.err) {
		t.Errorf("error should wrap the client failure: %v", err)
	}
}
