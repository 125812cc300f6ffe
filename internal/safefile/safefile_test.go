package safefile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureDir_CreatesNestedAndRejectsSymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "reports", "security")

	created, err := EnsureDir(target, 0o700)
	if err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if created != target {
		t.Fatalf("unexpected created path: got %s want %s", created, target)
	}

	link := filepath.Join(root, "linked")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	if _, err := EnsureDir(link, 0o700); err == nil {
		t.Fatal("expected symlinked directory to be rejected")
	}
}

func TestWriteFileAtomic_RejectsSymlinkTarget(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target.json")
	link := filepath.Join(root, "link.json")
	if err := os.WriteFile(target, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	err := WriteFileAtomic(link, []byte("new"), 0o600)
	if err == nil || !strings.Contains(err.Error(), "symlinked file target") {
		t.Fatalf("expected symlink target to be rejected, got %v", err)
	}
}

func TestWriteFileAtomic_OverwritesRegularFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "latest.json")
	if err := os.WriteFile(target, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("new"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil || string(got) != "new" {
		t.Fatalf("unexpected content: %q %v", got, err)
	}
}

func TestWriteFileOnce_RefusesOverwriteAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "security-scan.json")

	if err := WriteFileOnce(target, []byte("first"), 0o600); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	err := WriteFileOnce(target, []byte("second"), 0o600)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, _ := os.ReadFile(target)
	if string(got) != "first" {
		t.Fatalf("expected original content kept, got %q", got)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".secscan-tmp-") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestWriteFileAtomic_MissingParent(t *testing.T) {
	if err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "x.json"), []byte("x"), 0o600); err == nil {
		t.Fatal("expected missing parent directory to fail")
	}
}
