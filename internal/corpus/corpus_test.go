package corpus

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleRecords() []ImageRecord {
	return []ImageRecord{
		{Path: "vanGogh/a.jpg", Author: "vanGogh", ClassID: 1, ClusterID: 0, X: 1.5, Y: -2.25},
		{Path: "monet/b.png", Author: "monet", ClassID: 2, ClusterID: 1, X: 0, Y: 3},
	}
}

func TestImageRecord_URLAndClassName(t *testing.T) {
	r := ImageRecord{Path: "vanGogh/a.jpg", Author: "vanGogh"}

	if r.ImageURL() != "data/vanGogh/a.jpg" {
		t.Errorf("expected image url 'data/vanGogh/a.jpg', got '%s'", r.ImageURL())
	}
	if r.ClassName() != "vanGogh" {
		t.Errorf("expected class name 'vanGogh', got '%s'", r.ClassName())
	}
}

func TestImageRecord_URLEscapesSegments(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"monet/a#b.jpg", "data/monet/a%23b.jpg"},
		{"monet/a?b.jpg", "data/monet/a%3Fb.jpg"},
		{"van Gogh/c d.jpg", "data/van%20Gogh/c%20d.jpg"},
		{"degas/100%.png", "data/degas/100%25.png"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if got := (ImageRecord{Path: tc.path}).ImageURL(); got != tc.expected {
				t.Errorf("expected '%s', got '%s'", tc.expected, got)
			}
		})
	}
}

func TestWriteFeatures_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFeatures(&buf, sampleRecords()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "image_path,x,y,class_name,labels,author,cluster_id" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "vanGogh/a.jpg,1.5,-2.25,vanGogh,1,vanGogh,0" {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestReadFeatures_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := sampleRecords()
	if err := WriteFeatures(&buf, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := ReadFeatures(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Path != want[i].Path || got[i].Author != want[i].Author ||
			got[i].ClassID != want[i].ClassID || got[i].ClusterID != want[i].ClusterID ||
			got[i].X != want[i].X || got[i].Y != want[i].Y {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestReadFeatures_ColumnsByName(t *testing.T) {
	// Older files have no cluster_id and a different column order.
	input := "image_path,author,class_name,labels,x,y\nmonet/b.png,monet,monet,2,0.5,0.25\n"

	got, err := ReadFeatures(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].ClassID != 2 || got[0].X != 0.5 || got[0].Y != 0.25 || got[0].ClusterID != 0 {
		t.Errorf("unexpected record %+v", got[0])
	}
}

func TestReadFeatures_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing column", "image_path,x,author\na.jpg,1,me\n"},
		{"bad float", "image_path,x,y,author\na.jpg,one,2,me\n"},
		{"short row", "image_path,x,y,author\na.jpg,1,2\n"},
		{"nan x", "image_path,x,y,author\na.jpg,NaN,2,me\n"},
		{"inf y", "image_path,x,y,author\na.jpg,1,+Inf,me\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadFeatures(strings.NewReader(tc.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadFeatures_NonFiniteReportsLine(t *testing.T) {
	input := "image_path,x,y,author\na.jpg,1,2,me\nb.jpg,NaN,2,me\n"

	_, err := ReadFeatures(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected error on line 3, got %v", err)
	}
}

func TestWriteFeatures_RejectsNonFinite(t *testing.T) {
	records := sampleRecords()
	records[1].Y = math.Inf(-1)

	var buf bytes.Buffer
	if err := WriteFeatures(&buf, records); err == nil {
		t.Error("expected error for non-finite coordinates")
	}
}

func TestVectorStore_KeepsInsertionOrder(t *testing.T) {
	s := NewVectorStore()
	s.Add("z.jpg", []float32{1})
	s.Add("a.jpg", []float32{2})
	s.Add("m.jpg", []float32{3})
	s.Add("a.jpg", []float32{4})

	if s.Len() != 3 {
		t.Fatalf("expected 3 vectors, got %d", s.Len())
	}
	paths := s.Paths()
	if paths[0] != "z.jpg" || paths[1] != "a.jpg" || paths[2] != "m.jpg" {
		t.Errorf("unexpected order %v", paths)
	}
	v, _ := s.Get("a.jpg")
	if v[0] != 4 {
		t.Errorf("expected replaced vector, got %v", v)
	}
}

func TestVectorStore_JSONPreservesOrder(t *testing.T) {
	s := NewVectorStore()
	s.Add("z.jpg", []float32{1, 2})
	s.Add("a.jpg", []float32{0.5, -1})

	data, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"z.jpg":[1,2],"a.jpg":[0.5,-1]}` {
		t.Errorf("unexpected JSON %s", data)
	}

	decoded := NewVectorStore()
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, _ := decoded.At(0); p != "z.jpg" {
		t.Errorf("expected first path 'z.jpg', got '%s'", p)
	}
	if decoded.Dim() != 2 {
		t.Errorf("expected dim 2, got %d", decoded.Dim())
	}
}

func TestVectorStore_UnmarshalRejectsArray(t *testing.T) {
	s := NewVectorStore()
	if err := s.UnmarshalJSON([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestSaveLoadArtifacts(t *testing.T) {
	dir := t.TempDir()
	featuresPath := filepath.Join(dir, "nested", "features.csv")
	vectorsPath := filepath.Join(dir, "vectors.json")
	manifestPath := filepath.Join(dir, "manifest.json")

	if err := SaveFeatures(featuresPath, sampleRecords()); err != nil {
		t.Fatalf("SaveFeatures: %v", err)
	}
	store := NewVectorStore()
	store.Add("vanGogh/a.jpg", []float32{1, 0})
	store.Add("monet/b.png", []float32{0, 1})
	if err := SaveVectors(vectorsPath, store); err != nil {
		t.Fatalf("SaveVectors: %v", err)
	}
	m := NewManifest(42, 28, "dct", 2)
	m.Authors = []string{"monet", "vanGogh"}
	if err := SaveManifest(manifestPath, m); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	records, err := LoadFeatures(featuresPath)
	if err != nil {
		t.Fatalf("LoadFeatures: %v", err)
	}
	vectors, err := LoadVectors(vectorsPath)
	if err != nil {
		t.Fatalf("LoadVectors: %v", err)
	}
	loaded, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	c := &Corpus{Records: records, Vectors: vectors, Manifest: loaded}
	if err := c.Validate(); err != nil {
		t.Errorf("expected valid corpus, got %v", err)
	}
	if loaded.RunID != m.RunID {
		t.Errorf("expected run id %s, got %s", m.RunID, loaded.RunID)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestWriteArtifacts_FailureKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	features := filepath.Join(dir, "features.csv")
	vectors := filepath.Join(dir, "vectors.json")
	if err := os.WriteFile(features, []byte("old features"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(vectors, []byte("old vectors"), 0644); err != nil {
		t.Fatal(err)
	}

	err := WriteArtifacts(
		FeaturesArtifact(features, sampleRecords()),
		Artifact{Path: vectors, Write: func(w io.Writer) error {
			return errors.New("encode failed")
		}},
	)
	if err == nil {
		t.Fatal("expected error")
	}

	for path, want := range map[string]string{features: "old features", vectors: "old vectors"} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s was replaced: %q", filepath.Base(path), got)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected temporary files to be removed, found %d entries", len(entries))
	}
}

func TestSaveVectors_RejectsNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")
	s := NewVectorStore()
	s.Add("a.jpg", []float32{float32(math.NaN())})

	if err := SaveVectors(path, s); err == nil {
		t.Error("expected error for NaN vector")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected no vectors file to be written")
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestCorpusValidate_Mismatch(t *testing.T) {
	store := NewVectorStore()
	store.Add("vanGogh/a.jpg", []float32{1})
	store.Add("other.jpg", []float32{1})

	c := &Corpus{Records: sampleRecords(), Vectors: store}
	if err := c.Validate(); err == nil {
		t.Error("expected mismatch error")
	}
}

func TestNewManifest_UniqueRunIDs(t *testing.T) {
	a := NewManifest(1, 1, "x", 1)
	b := NewManifest(1, 1, "x", 1)

	if a.RunID == "" || a.RunID == b.RunID {
		t.Errorf("expected distinct non-empty run ids, got %q and %q", a.RunID, b.RunID)
	}
}

func TestPoints(t *testing.T) {
	pts := Points(sampleRecords())
	if len(pts) != len(sampleRecords()) {
		t.Fatalf("expected %d points, got %d", len(sampleRecords()), len(pts))
	}
	p := pts[0]
	if p.ImageURL != "data/"+p.ImagePath || p.ClassName != p.Author {
		t.Errorf("unexpected point %+v", p)
	}

	if empty := Points(nil); empty == nil {
		t.Error("expected non-nil slice for no records")
	}
}
