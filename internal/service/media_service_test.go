package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestUploadStoresImageWithDimensions(t *testing.T) {
	gdb := setupServiceTestDB(t)
	tenant := createTestTenant(t, gdb, "acme")
	dir := t.TempDir()
	svc := NewMediaService(gdb, MediaOptions{Dir: dir, URLPath: "/uploads/"})

	asset, err := svc.Upload(tenant.ID, MediaUpload{FileName: "../../etc/Logo.PNG", Alt: "<b>Logo</b>", Body: bytes.NewReader(pngBytes(t, 4, 3))})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if asset.MimeType != "image/png" || asset.Width != 4 || asset.Height != 3 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.FileName != "Logo.PNG" || asset.Alt != "Logo" {
		t.Fatalf("expected sanitized names, got %q / %q", asset.FileName, asset.Alt)
	}
	if !strings.HasPrefix(asset.URL, "/uploads/") || !strings.HasSuffix(asset.URL, ".png") {
		t.Fatalf("unexpected url: %s", asset.URL)
	}
	stored := filepath.Join(dir, filepath.FromSlash(asset.StoredName))
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	if err := svc.Delete(tenant.ID, asset.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := os.Stat(stored); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file to be removed, got %v", err)
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	gdb := setupServiceTestDB(t)
	tenant := createTestTenant(t, gdb, "acme")
	svc := NewMediaService(gdb, MediaOptions{Dir: t.TempDir(), MaxBytes: 1024})

	cases := []struct {
		name string
		file MediaUpload
		want error
	}{
		{"empty", MediaUpload{FileName: "a.png", Body: bytes.NewReader(nil)}, ErrMediaEmpty},
		{"large", MediaUpload{FileName: "a.png", Body: bytes.NewReader(make([]byte, 2048))}, ErrMediaTooLarge},
		{"text", MediaUpload{FileName: "a.txt", Body: strings.NewReader("plain words")}, ErrMediaType},
		{"exe", MediaUpload{FileName: "a.png", Body: bytes.NewReader([]byte("MZ\x90\x00\x03\x00\x00\x00"))}, ErrMediaType},
		{"svg-script", MediaUpload{FileName: "x.svg", Body: strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)}, ErrMediaUnsafeImage},
		{"svg-handler", MediaUpload{FileName: "x.svg", Body: strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg" onload="x()"></svg>`)}, ErrMediaUnsafeImage},
	}
	for _, tc := range cases {
		if _, err := svc.Upload(tenant.ID, tc.file); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	svg, err := svc.Upload(tenant.ID, MediaUpload{FileName: "icon.svg", Body: strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"><circle r="4"/></svg>`)})
	if err != nil {
		t.Fatalf("safe svg should be accepted: %v", err)
	}
	if svg.MimeType != "image/svg+xml" {
		t.Fatalf("unexpected mime type: %s", svg.MimeType)
	}
}

func TestDeleteMediaInUse(t *testing.T) {
	gdb := setupServiceTestDB(t)
	tenant := createTestTenant(t, gdb, "acme")
	other := createTestTenant(t, gdb, "other")
	svc := NewMediaService(gdb, MediaOptions{Dir: t.TempDir()})

	asset, err := svc.Upload(tenant.ID, MediaUpload{FileName: "cover.png", Body: bytes.NewReader(pngBytes(t, 2, 2))})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	posts := NewBlogPostService(gdb)
	post, err := posts.Create(tenant.ID, BlogPostInput{Slug: "covered", Locale: "en", Title: "Covered", CoverMediaID: &asset.ID})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := posts.Create(other.ID, BlogPostInput{Slug: "stolen", Locale: "en", Title: "Stolen", CoverMediaID: &asset.ID}); !errors.Is(err, ErrMediaReference) {
		t.Fatalf("expected foreign media to be rejected, got %v", err)
	}

	if err := svc.Delete(tenant.ID, asset.ID); !errors.Is(err, ErrMediaInUse) {
		t.Fatalf("expected ErrMediaInUse, got %v", err)
	}
	if err := svc.Delete(other.ID, asset.ID); !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("expected ErrMediaNotFound across tenants, got %v", err)
	}

	if err := posts.Delete(tenant.ID, post.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if err := svc.Delete(tenant.ID, asset.ID); err != nil {
		t.Fatalf("Delete after detaching returned error: %v", err)
	}
}

func TestSanitizeFileNameKeepsValidUTF8(t *testing.T) {
	name := "x" + strings.Repeat("ü", 150) + ".png"
	got := sanitizeFileName("../uploads/" + name)
	if len(got) > 255 || !utf8.ValidString(got) {
		t.Fatalf("expected at most 255 bytes of valid UTF-8, got %d bytes valid=%v", len(got), utf8.ValidString(got))
	}
	if !strings.HasPrefix(got, "xü") {
		t.Fatalf("expected directory to be stripped, got %q", got)
	}
}
