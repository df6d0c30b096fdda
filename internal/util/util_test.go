package util

import (
	"compress/gzip"
	"io"
	"os"
	"path"
	"testing"
)

func TestOpenMaybeGzip(t *testing.T) {

	dir := t.TempDir()
	content := []byte("reference\tlength\nref_1\t900\n")

	plain := path.Join(dir, "counts.tsv")
	if err := os.WriteFile(plain, content, 0644); err != nil {
		t.Fatal(err)
	}

	compressed := path.Join(dir, "counts.tsv.gz")
	f, err := os.Create(compressed)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{plain, compressed} {
		r, err := OpenMaybeGzip(p)
		if err != nil {
			t.Fatalf("OpenMaybeGzip(%s): %v", p, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if err := r.Close(); err != nil {
			t.Fatalf("close %s: %v", p, err)
		}
		if string(got) != string(content) {
			t.Errorf("%s: got %q, want %q", p, got, content)
		}
	}
}

func TestDirExists(t *testing.T) {

	dir := t.TempDir()
	if !DirExists(dir) {
		t.Errorf("DirExists(%s) = false for an existing directory", dir)
	}
	if DirExists(path.Join(dir, "missing")) {
		t.Error("DirExists reported a missing directory as present")
	}
}
