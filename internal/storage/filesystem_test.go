package storage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	return store
}

func TestFileStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.Put(ctx, "temp/req-1/img-1.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if key != "temp/req-1/img-1.png" {
		t.Fatalf("Put key = %q", key)
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !bytes.Equal(data, []byte("png-bytes")) {
		t.Fatalf("Get = %q", data)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "temp/nope.png")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Get error = %v, want fs.ErrNotExist", err)
	}
}

func TestFileStoreCopyIsRerunnable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "temp/req-1/img-1.png", []byte("png-bytes")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		dst, err := store.Copy(ctx, "temp/req-1/img-1.png", "saved/u1/req-1/img-1.png")
		if err != nil {
			t.Fatalf("Copy #%d returned error: %v", i+1, err)
		}
		if dst != "saved/u1/req-1/img-1.png" {
			t.Fatalf("Copy key = %q", dst)
		}
	}

	data, err := store.Get(ctx, "saved/u1/req-1/img-1.png")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !bytes.Equal(data, []byte("png-bytes")) {
		t.Fatalf("copied contents = %q", data)
	}
}

func TestFileStoreDeleteMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.Delete(context.Background(), "temp/nope.png"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain", key: "temp/a.png", want: "temp/a.png"},
		{name: "leading slash", key: "/temp/a.png", want: "temp/a.png"},
		{name: "dot segment", key: "./temp/a.png", want: "temp/a.png"},
		{name: "traversal", key: "../etc/passwd", wantErr: true},
		{name: "nested traversal", key: "temp/../../etc/passwd", wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sanitizeKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("sanitizeKey(%q) accepted", tc.key)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeKey(%q) error: %v", tc.key, err)
			}
			if got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}
