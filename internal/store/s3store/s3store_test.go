package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	puts    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func TestEmptyBucketIsEmptyCollection(t *testing.T) {
	s := New(newFakeClient(), "home", "housekeep/tasks.json")
	all, err := s.GetAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("GetAll = %+v", all)
	}
}

func TestCRUDPersistsDocument(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := New(fc, "home", "tasks.json")

	a, err := s.Add(ctx, task.New("Feed cat", 5))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Add(ctx, task.New("Clean litter", 4))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}

	if err := s.SetStatus(ctx, a.ID, task.Completed); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	var doc document
	if err := json.Unmarshal(fc.objects["home/tasks.json"], &doc); err != nil {
		t.Fatal(err)
	}
	if doc.NextID != 3 || len(doc.Tasks) != 1 || doc.Tasks[0].Status != task.Completed {
		t.Errorf("document = %+v", doc)
	}
	if doc.Tasks[0].LastCompleted == nil {
		t.Error("completing must stamp last_completed")
	}

	// A fresh store over the same object sees the same state.
	again := New(fc, "home", "tasks.json")
	got, err := again.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Feed cat" {
		t.Errorf("got %+v", got)
	}
	if _, err := again.GetByID(ctx, b.ID); !store.IsNotFound(err) {
		t.Errorf("deleted task err = %v", err)
	}
}

func TestNotFoundDoesNotWrite(t *testing.T) {
	fc := newFakeClient()
	s := New(fc, "home", "tasks.json")
	err := s.Update(context.Background(), task.Task{ID: 7, Name: "x", Priority: 1, Status: task.Active})
	if !store.IsNotFound(err) {
		t.Fatalf("err = %v", err)
	}
	if fc.puts != 0 {
		t.Errorf("puts = %d, want 0", fc.puts)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"503", &smithyhttp.ResponseError{Response: &smithyhttp.Response{Response: &http.Response{StatusCode: 503}}, Err: errors.New("unavailable")}, true},
		{"403", &smithyhttp.ResponseError{Response: &smithyhttp.Response{Response: &http.Response{StatusCode: 403}}, Err: errors.New("forbidden")}, false},
		{"dial", &smithy.OperationError{ServiceID: "S3", OperationName: "GetObject", Err: errors.New("dial tcp: connection refused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeClient()
			fc.err = tt.err
			_, err := New(fc, "home", "tasks.json").GetAll(context.Background())
			if got := store.IsTransient(err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", err, got, tt.want)
			}
		})
	}
}
