package dataset

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeTree creates files (relative, forward-slash paths) under root.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(f), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"a.jpg", true},
		{"a.JPG", true},
		{"a.jpeg", true},
		{"a.Png", true},
		{"a.gif", false},
		{"a.txt", false},
		{"jpg", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsImage(tc.name); got != tc.expected {
				t.Errorf("IsImage(%q) = %v, expected %v", tc.name, got, tc.expected)
			}
		})
	}
}

func TestScan_LabelsInFirstSeenOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"monet/b.png", "monet/a.JPG", "monet/notes.txt",
		"vanGogh/x.jpeg",
		"empty/readme.md",
		"loose.jpg",
		"monet/.hidden.jpg",
	)

	res, err := Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPaths := []string{"monet/a.JPG", "monet/b.png", "vanGogh/x.jpeg"}
	var gotPaths []string
	for _, it := range res.Items {
		gotPaths = append(gotPaths, it.Path)
	}
	if !reflect.DeepEqual(gotPaths, wantPaths) {
		t.Errorf("expected paths %v, got %v", wantPaths, gotPaths)
	}

	if res.Labels["monet"] != 1 || res.Labels["vanGogh"] != 2 {
		t.Errorf("unexpected labels %v", res.Labels)
	}
	if _, ok := res.Labels["empty"]; ok {
		t.Error("author without images must not get a label")
	}
	if !reflect.DeepEqual(res.Authors, []string{"monet", "vanGogh"}) {
		t.Errorf("unexpected authors %v", res.Authors)
	}
	for _, it := range res.Items {
		if it.ClassID != res.Labels[it.Author] {
			t.Errorf("item %s has class id %d, label map says %d", it.Path, it.ClassID, res.Labels[it.Author])
		}
	}
}

func TestScan_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		if _, err := Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected error for missing root")
		}
	})

	t.Run("no images", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, "monet/readme.txt")
		_, err := Scan(root)
		if !errors.Is(err, ErrNoImages) {
			t.Errorf("expected ErrNoImages, got %v", err)
		}
	})
}

func itemsFor(author string, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{Path: fmt.Sprintf("%s/%03d.jpg", author, i), Author: author}
	}
	return items
}

func TestSample_Bounds(t *testing.T) {
	var items []Item
	items = append(items, itemsFor("vanGogh", 3)...)
	items = append(items, itemsFor("monet", 50)...)

	out := Sample(items, 28, 42)

	counts := CountByAuthor(out)
	if counts["vanGogh"] != 3 {
		t.Errorf("expected all 3 vanGogh images, got %d", counts["vanGogh"])
	}
	if counts["monet"] != 28 {
		t.Errorf("expected 28 monet images, got %d", counts["monet"])
	}

	seen := make(map[string]bool)
	for _, it := range out {
		if seen[it.Path] {
			t.Errorf("duplicate sample %s", it.Path)
		}
		seen[it.Path] = true
	}

	// Grouped by sorted author.
	if out[0].Author != "monet" || out[len(out)-1].Author != "vanGogh" {
		t.Errorf("expected monet group first and vanGogh last, got %s ... %s", out[0].Author, out[len(out)-1].Author)
	}
}

func TestSample_Deterministic(t *testing.T) {
	items := itemsFor("degas", 40)

	a := Sample(items, 10, 42)
	b := Sample(items, 10, 42)
	c := Sample(items, 10, 7)

	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical samples for identical seeds")
	}
	if reflect.DeepEqual(a, c) {
		t.Error("expected different samples for different seeds")
	}
}

func TestSample_NonPositiveKeepsAll(t *testing.T) {
	items := itemsFor("degas", 5)

	if out := Sample(items, 0, 42); len(out) != 5 {
		t.Errorf("expected 5 items, got %d", len(out))
	}
}

func TestNormalizeAuthor(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"vanGogh", "vangogh"},
		{"Van-Gogh", "vangogh"},
		{"van_gogh", "vangogh"},
		{"Gérôme", "gerome"},
	}

	for _, tc := range tests {
		if got := NormalizeAuthor(tc.in); got != tc.expected {
			t.Errorf("NormalizeAuthor(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}

func TestMatchAuthors(t *testing.T) {
	authors := []string{"Cezanne", "VanGogh", "Monet"}

	got := MatchAuthors("van gogh", authors)
	if !reflect.DeepEqual(got, []string{"VanGogh"}) {
		t.Errorf("unexpected match %v", got)
	}
	if got := MatchAuthors("Cézanne", authors); len(got) != 1 {
		t.Errorf("expected diacritic-insensitive match, got %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	decomposed := "Ge\u0301rome/a.jpg"
	if got := NormalizePath(decomposed); got != "G\u00e9rome/a.jpg" {
		t.Errorf("expected NFC path, got %q", got)
	}
	if got := NormalizePath(`monet\a.jpg`); got != "monet/a.jpg" {
		t.Errorf("expected forward slashes, got %q", got)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPrepare_ZipFlattensNestedTraining(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "dataset.zip")
	writeZip(t, archive, map[string]string{
		"training/training/monet/a.jpg":   "a",
		"training/training/vanGogh/b.jpg": "b",
		"__MACOSX/._a.jpg":                "junk",
	})
	dest := filepath.Join(tmp, "data")

	res, err := Prepare(context.Background(), PrepareOptions{Archive: archive, Dest: dest})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Files != 2 {
		t.Errorf("expected 2 files, got %d", res.Files)
	}
	if res.Flattened != "training/training" {
		t.Errorf("expected flattened 'training/training', got '%s'", res.Flattened)
	}

	scan, err := Scan(dest)
	if err != nil {
		t.Fatalf("scan after prepare: %v", err)
	}
	if len(scan.Items) != 2 {
		t.Errorf("expected 2 images, got %d", len(scan.Items))
	}
	if _, err := os.Stat(filepath.Join(dest, "training")); !os.IsNotExist(err) {
		t.Error("expected training directory to be removed")
	}
}

func TestPrepare_CopySourceWithSingleTrainingLevel(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "download")
	writeTree(t, src, "training/degas/a.png", "training/degas/b.png")
	dest := filepath.Join(tmp, "data")
	// Stale content is replaced.
	writeTree(t, dest, "degas/old.png")

	res, err := Prepare(context.Background(), PrepareOptions{Source: src, Dest: dest})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Flattened != "training" {
		t.Errorf("expected flattened 'training', got '%s'", res.Flattened)
	}
	if _, err := os.Stat(filepath.Join(dest, "degas", "a.png")); err != nil {
		t.Errorf("expected degas/a.png in destination: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "degas", "old.png")); !os.IsNotExist(err) {
		t.Error("expected stale file to be replaced")
	}
}

func TestPrepare_Errors(t *testing.T) {
	tmp := t.TempDir()

	tests := []struct {
		name string
		opts PrepareOptions
	}{
		{"nothing", PrepareOptions{Dest: tmp}},
		{"both", PrepareOptions{Archive: "a.zip", Source: "dir", Dest: tmp}},
		{"no dest", PrepareOptions{Source: tmp}},
		{"missing archive", PrepareOptions{Archive: filepath.Join(tmp, "missing.zip"), Dest: filepath.Join(tmp, "out1")}},
		{"missing source", PrepareOptions{Source: filepath.Join(tmp, "missing"), Dest: filepath.Join(tmp, "out2")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Prepare(context.Background(), tc.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPrepare_RejectsEscapingEntries(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "evil.zip")
	writeZip(t, archive, map[string]string{"../evil.jpg": "x"})

	_, err := Prepare(context.Background(), PrepareOptions{Archive: archive, Dest: filepath.Join(tmp, "data")})
	if err == nil {
		t.Error("expected error for escaping entry")
	}
	if _, statErr := os.Stat(filepath.Join(tmp, "evil.jpg")); !os.IsNotExist(statErr) {
		t.Error("escaping entry must not be written")
	}
}
