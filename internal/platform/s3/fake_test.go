package s3

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type storedObject struct {
	data     []byte
	modified time.Time
}

// fakeS3 is an in-memory, path-style S3 endpoint.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string]storedObject
	clock   time.Time
	fail    map[string]int // method -> status
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets: map[string]map[string]storedObject{},
		clock:   time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		fail:    map[string]int{},
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if status, ok := f.fail[r.Method]; ok {
		xmlError(w, status, "AccessDenied", "Access Denied")
		return
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	objects, exists := f.buckets[bucket]

	switch {
	case r.Method == http.MethodHead && key == "":
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut && key == "":
		if exists {
			xmlError(w, http.StatusConflict, "BucketAlreadyOwnedByYou", "already owned")
			return
		}
		f.buckets[bucket] = map[string]storedObject{}
		w.WriteHeader(http.StatusOK)

	case !exists:
		xmlError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")

	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.clock = f.clock.Add(time.Minute)
		objects[key] = storedObject{data: body, modified: f.clock}
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && key == "":
		f.list(w, bucket, objects, r.URL.Query().Get("prefix"))

	case r.Method == http.MethodGet:
		obj, ok := objects[key]
		if !ok {
			xmlError(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(obj.data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(obj.data)

	case r.Method == http.MethodDelete:
		delete(objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, bucket string, objects map[string]storedObject, prefix string) {
	var keys []string
	for k := range objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>",
		bucket, prefix, len(keys))
	for _, k := range keys {
		o := objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><LastModified>%s</LastModified><Size>%d</Size></Contents>",
			k, o.modified.Format("2006-01-02T15:04:05.000Z"), len(o.data))
	}
	b.WriteString(`</ListBucketResult>`)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func (f *fakeS3) object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.buckets[bucket][key]
	return o.data, ok
}

func xmlError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, message)
}

// testClient creates a Client backed by fake.
func testClient(t *testing.T, fake http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})
	return &Client{s3: client, region: "us-east-1"}
}
