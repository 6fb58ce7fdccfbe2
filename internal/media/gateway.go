// Package media serves archived media files from disk with path
// traversal prevention and on-demand WebP thumbnail generation.
package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/scope"
)

// allowedThumbSizes are the only sizes the gateway will generate, per
// spec.md §4.10.
var allowedThumbSizes = map[int]struct{}{200: {}, 400: {}}

// Gateway resolves and serves files under Root, enforcing that the
// resolved path never escapes Root and that non-avatar paths are scoped
// to the caller's visible chats.
type Gateway struct {
	Root string
}

// New builds a gateway rooted at root (an absolute, canonical path).
func New(root string) (*Gateway, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("canonicalize media root: %w", err)
	}
	if canonical == "" {
		canonical = abs
	}
	return &Gateway{Root: canonical}, nil
}

// resolve returns the absolute path for the request path p joined under
// Root, after checking that its symlink-resolved form does not escape
// Root (".." segments, symlink escapes). Returns an error for any such
// attempt.
func (g *Gateway) resolve(p string) (string, error) {
	joined := filepath.Join(g.Root, filepath.FromSlash(p))

	// filepath.Join already cleans ".." segments relative to Root, but a
	// symlink inside Root can still point outside it, so re-resolve and
	// re-check after the join.
	canonical := joined
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		canonical = resolved
	}

	rel, err := filepath.Rel(g.Root, canonical)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes media root")
	}
	return joined, nil
}

// Serve handles GET /media/{path}, enforcing scope for non-avatar
// requests and optionally serving/generating a thumbnail when a size
// query parameter is present.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, requestPath string, callerScope *[]int64) {
	resolved, err := g.resolve(requestPath)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	firstSegment := strings.SplitN(strings.TrimPrefix(requestPath, "/"), "/", 2)[0]
	if firstSegment != "avatars" {
		chatID, convErr := strconv.ParseInt(firstSegment, 10, 64)
		if convErr == nil && !scope.Contains(callerScope, chatID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	if sizeParam := r.URL.Query().Get("size"); sizeParam != "" {
		size, convErr := strconv.Atoi(sizeParam)
		if convErr != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		g.serveThumbnail(w, r, resolved, requestPath, size)
		return
	}

	if _, statErr := os.Stat(resolved); statErr != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, resolved)
}

func (g *Gateway) serveThumbnail(w http.ResponseWriter, r *http.Request, sourcePath, requestPath string, size int) {
	if _, ok := allowedThumbSizes[size]; !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	dir, stem := filepath.Split(requestPath)
	ext := filepath.Ext(stem)
	stemNoExt := strings.TrimSuffix(stem, ext)
	thumbPath := filepath.Join(g.Root, ".thumbs", strconv.Itoa(size), dir, stemNoExt+".webp")

	if _, err := os.Stat(thumbPath); err == nil {
		http.ServeFile(w, r, thumbPath)
		return
	}

	if err := g.generateThumbnail(sourcePath, thumbPath, size); err != nil {
		log.Warn().Err(err).Str("source", sourcePath).Msg("media: thumbnail generation failed")
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, thumbPath)
}

// generateThumbnail decodes sourcePath as an image, resizes preserving
// aspect ratio to a max dimension of size, encodes as WebP at quality 80,
// and caches the result at destPath.
func (g *Gateway) generateThumbnail(sourcePath, destPath string, size int) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode image (non-image source types return 404): %w", err)
	}

	resized := resizeToMax(img, size)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}

	tmp := destPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create thumbnail file: %w", err)
	}
	if err := nativewebp.Encode(out, resized, &nativewebp.Options{Quality: 80}); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode webp: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, destPath)
}

// resizeToMax scales img so its largest dimension is max, preserving
// aspect ratio, using simple nearest-neighbor sampling (no third-party
// resize library is wired in; this keeps the media gateway dependency
// surface to decode + nativewebp encode only).
func resizeToMax(img image.Image, max int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= max && h <= max {
		return img
	}

	var newW, newH int
	if w > h {
		newW = max
		newH = h * max / w
	} else {
		newH = max
		newW = w * max / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		srcY := y * h / newH
		for x := 0; x < newW; x++ {
			srcX := x * w / newW
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
