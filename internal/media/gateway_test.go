package media

import (
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRejectsParentTraversal(t *testing.T) {
	dir := t.TempDir()
	g := &Gateway{Root: dir}

	if _, err := g.resolve("../../etc/passwd"); err == nil {
		t.Error("expected traversal attempt to be rejected")
	}
}

func TestResolveAllowsDescendantPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "42"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "42", "photo.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := &Gateway{Root: dir}
	resolved, err := g.resolve("42/photo.jpg")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(resolved) != "photo.jpg" {
		t.Errorf("resolved = %q", resolved)
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	g := &Gateway{Root: dir}
	if _, err := g.resolve("link.txt"); err == nil {
		t.Error("expected symlink escape to be rejected")
	}
}

func TestResizeToMaxPreservesAspectRatio(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 800, 400))
	out := resizeToMax(src, 200)
	b := out.Bounds()
	if b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("resized = %dx%d, want 200x100", b.Dx(), b.Dy())
	}
}

func TestResizeToMaxNoOpWhenSmaller(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	out := resizeToMax(src, 200)
	if out != image.Image(src) {
		t.Error("expected no-op when image already fits within max")
	}
}
