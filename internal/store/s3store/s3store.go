// Package s3store keeps the whole task collection as one JSON document in
// an S3 bucket. Every write reads the document, changes it and puts it back.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// Client is the subset of *s3.Client the store uses.
type Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient builds an S3 client from the default AWS credential chain.
// Empty profile or region fall back to the environment.
func NewClient(ctx context.Context, profile, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// document is the JSON object stored under the key.
type document struct {
	NextID int         `json:"next_id"`
	Tasks  []task.Task `json:"tasks"`
}

// Store is a TaskStore over a single S3 object.
type Store struct {
	client Client
	bucket string
	key    string
	now    func() time.Time

	mu sync.Mutex
}

// New returns a Store for s3://bucket/key.
func New(client Client, bucket, key string) *Store {
	return &Store{client: client, bucket: bucket, key: key, now: time.Now}
}

// Ping implements store.Pinger by fetching the document.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load(ctx, "ping")
	return err
}

// GetAll returns every task ordered by ID.
func (s *Store) GetAll(ctx context.Context) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx, "get_all")
	if err != nil {
		return nil, err
	}
	return doc.Tasks, nil
}

// GetByID returns a single task.
func (s *Store) GetByID(ctx context.Context, id int) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx, "get")
	if err != nil {
		return nil, err
	}
	i := doc.index(id)
	if i < 0 {
		return nil, store.NotFound("get", id)
	}
	t := doc.Tasks[i]
	return &t, nil
}

// Add appends t with the next ID.
func (s *Store) Add(ctx context.Context, t task.Task) (task.Task, error) {
	if err := task.Validate(&t); err != nil {
		return task.Task{}, err
	}
	err := s.modify(ctx, "add", 0, func(doc *document) error {
		t.ID = doc.NextID
		doc.NextID++
		task.UpdateTimestamps(&t, s.now())
		doc.Tasks = append(doc.Tasks, t)
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Update replaces an existing task.
func (s *Store) Update(ctx context.Context, t task.Task) error {
	if err := task.Validate(&t); err != nil {
		return err
	}
	return s.modify(ctx, "update", t.ID, func(doc *document) error {
		i := doc.index(t.ID)
		if i < 0 {
			return store.NotFound("update", t.ID)
		}
		t.Created = doc.Tasks[i].Created
		task.UpdateTimestamps(&t, s.now())
		doc.Tasks[i] = t
		return nil
	})
}

// Delete removes a task.
func (s *Store) Delete(ctx context.Context, id int) error {
	return s.modify(ctx, "delete", id, func(doc *document) error {
		i := doc.index(id)
		if i < 0 {
			return store.NotFound("delete", id)
		}
		doc.Tasks = slices.Delete(doc.Tasks, i, i+1)
		return nil
	})
}

// SetStatus writes the status of a task.
func (s *Store) SetStatus(ctx context.Context, id int, st task.Status) error {
	return s.modify(ctx, "set_status", id, func(doc *document) error {
		i := doc.index(id)
		if i < 0 {
			return store.NotFound("set_status", id)
		}
		t := &doc.Tasks[i]
		if st == task.Completed && t.Status != task.Completed {
			t.LastCompleted = date.FromTime(s.now()).Ptr()
		}
		t.Status = st
		task.UpdateTimestamps(t, s.now())
		return nil
	})
}

func (d *document) index(id int) int {
	return slices.IndexFunc(d.Tasks, func(t task.Task) bool { return t.ID == id })
}

func (s *Store) modify(ctx context.Context, op string, id int, fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx, op)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(ctx, op, id, doc)
}

func (s *Store) load(ctx context.Context, op string) (*document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return &document{NextID: 1}, nil
		}
		return nil, wrap(op, 0, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrap(op, 0, err)
	}
	doc := &document{NextID: 1}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, wrap(op, 0, fmt.Errorf("decoding s3://%s/%s: %w", s.bucket, s.key, err))
	}
	slices.SortFunc(doc.Tasks, func(a, b task.Task) int { return a.ID - b.ID })
	return doc, nil
}

func (s *Store) save(ctx context.Context, op string, id int, doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return wrap(op, id, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return wrap(op, id, err)
}

// retryableCodes are S3 error codes that clear without intervention.
var retryableCodes = map[string]bool{
	"SlowDown":           true,
	"ServiceUnavailable": true,
	"InternalError":      true,
	"RequestTimeout":     true,
}

func wrap(op string, id int, err error) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	return &store.Error{Op: op, ID: id, Transient: isTransient(err), Err: err}
}

func isTransient(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && retryableCodes[apiErr.ErrorCode()] {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() >= 500 //nolint:mnd // server-side failure
	}
	return store.Classify(err)
}
