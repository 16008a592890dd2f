package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "b")
	writeFile(t, dir, "a.MD", "a")
	writeFile(t, dir, "nested/deep/c.pdf", "%PDF")
	writeFile(t, dir, "nested/notes.markdown", "n")
	writeFile(t, dir, "nested/skip.docx", "x")
	writeFile(t, dir, "image.png", "x")

	got, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.MD"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "nested", "deep", "c.pdf"),
		filepath.Join(dir, "nested", "notes.markdown"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, got[i], want[i])
		}
		if !filepath.IsAbs(got[i]) {
			t.Errorf("path %q is not absolute", got[i])
		}
	}
}

func TestDiscover_missingRoot(t *testing.T) {
	got, err := Discover(filepath.Join(t.TempDir(), "absent"), nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no paths, got %v", got)
	}
}

func TestDiscover_fileRoot(t *testing.T) {
	path := writeFile(t, t.TempDir(), "single.txt", "x")
	if _, err := Discover(path, nil); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestDiscover_unreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "public.txt", "p")
	writeFile(t, dir, "private/secret.txt", "s")
	writeFile(t, dir, "zeta/open.md", "o")
	private := filepath.Join(dir, "private")
	if err := os.Chmod(private, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(private, 0o755) })

	core, logs := observer.New(zap.WarnLevel)
	got, err := Discover(dir, zap.New(core))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(dir, "public.txt"),
		filepath.Join(dir, "zeta", "open.md"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, got[i], want[i])
		}
	}
	if logs.FilterMessage("skipping unreadable path").Len() != 1 {
		t.Errorf("expected one warning for the unreadable directory, got %v", logs.All())
	}
}
