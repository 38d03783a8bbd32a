package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	fsStore, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fsStore.Driver() != DriverFilesystem {
		t.Fatalf("expected fs default, got %s", fsStore.Driver())
	}

	memStore, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if memStore.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", memStore.Driver())
	}

	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	s3Store, err := Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "reports", Region: "eu-west-1"}})
	if err != nil {
		t.Fatalf("open s3: %v", err)
	}
	if s3Store.Driver() != DriverS3 {
		t.Fatalf("expected s3 driver, got %s", s3Store.Driver())
	}

	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestSentinelsAreShared(t *testing.T) {
	ctx := context.Background()
	for _, store := range []Store{NewMemory(), NewMockS3ForTests()} {
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), PutOptions{}); err != nil {
			t.Fatalf("%s put: %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected ErrExists, got %v", store.Driver(), err)
		}
		if _, err := store.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", store.Driver(), err)
		}
	}
}
