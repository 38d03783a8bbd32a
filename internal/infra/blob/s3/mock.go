package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	mockBucket   = "mock-bucket"
	mockPageSize = 2
)

// NewMockForTests returns a Store backed by an in-process fake S3 transport
// covering the operations the Store issues.
func NewMockForTests() *Store {
	rt := &mockRoundTripper{objects: make(map[string]mockObject)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(defaultRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIDMOCK", "SECRETMOCK", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return newStore(client, mockBucket)
}

type mockObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

type mockRoundTripper struct {
	mu      sync.Mutex
	objects map[string]mockObject
}

func response(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(strings.NewReader(body)),
		Header:        header,
		ContentLength: int64(len(body)),
	}
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// path-style: /<bucket>/<key>
	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	query := req.URL.Query()

	if req.Method == http.MethodGet && query.Get("list-type") == "2" {
		return m.list(query.Get("prefix"), query.Get("continuation-token")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := m.objects[key]
		if !ok {
			return response(http.StatusNotFound, "", nil), nil
		}
		return response(http.StatusOK, "", obj.header()), nil
	case http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			return response(http.StatusNotFound, "<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>", http.Header{"Content-Type": {"application/xml"}}), nil
		}
		resp := response(http.StatusOK, string(obj.body), obj.header())
		return resp, nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			if body, err = decodeChunked(body); err != nil {
				return nil, err
			}
		}
		metadata := map[string]string{}
		for name, values := range req.Header {
			if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-meta-") && len(values) > 0 {
				metadata[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
			}
		}
		m.objects[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type"), metadata: metadata}
		return response(http.StatusOK, "", http.Header{"ETag": {`"mock-etag"`}}), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return response(http.StatusNoContent, "", nil), nil
	}
	return response(http.StatusNotImplemented, "", nil), nil
}

func (o mockObject) header() http.Header {
	h := http.Header{
		"Content-Length": {strconv.Itoa(len(o.body))},
		"Content-Type":   {o.contentType},
		"ETag":           {`"mock-etag"`},
		"Last-Modified":  {time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
	}
	for k, v := range o.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

// list pages keys mockPageSize at a time; the continuation token is the next offset.
func (m *mockRoundTripper) list(prefix, token string) *http.Response {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start, _ := strconv.Atoi(token)
	end := min(start+mockPageSize, len(keys))

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	if end < len(keys) {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%d</NextContinuationToken>", end)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys[start:end] {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><ETag>&quot;mock-etag&quot;</ETag><LastModified>2025-01-01T00:00:00Z</LastModified></Contents>",
			k, len(m.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return response(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}})
}

// decodeChunked strips aws-chunked framing: <hex-size>[;ext]\r\n<data>\r\n ... 0\r\n<trailers>.
func decodeChunked(b []byte) ([]byte, error) {
	var out bytes.Buffer
	for {
		line, rest, ok := bytes.Cut(b, []byte("\r\n"))
		if !ok {
			return nil, fmt.Errorf("malformed chunk header")
		}
		sizeHex, _, _ := strings.Cut(string(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeHex, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if int64(len(rest)) < size+2 {
			return nil, fmt.Errorf("short chunk")
		}
		out.Write(rest[:size])
		b = rest[size+2:]
	}
}
