package corpus

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// FeatureColumns is the header of the features CSV.
var FeatureColumns = []string{"image_path", "x", "y", "class_name", "labels", "author", "cluster_id"}

// WriteFeatures writes the tabular records (without embeddings) to w.
func WriteFeatures(w io.Writer, records []ImageRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FeatureColumns); err != nil {
		return err
	}
	for _, r := range records {
		if !finite(r.X) || !finite(r.Y) {
			return fmt.Errorf("record %s has non-finite coordinates (%v, %v)", r.Path, r.X, r.Y)
		}
		row := []string{
			r.Path,
			strconv.FormatFloat(r.X, 'g', -1, 64),
			strconv.FormatFloat(r.Y, 'g', -1, 64),
			r.ClassName(),
			strconv.Itoa(r.ClassID),
			r.Author,
			strconv.Itoa(r.ClusterID),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFeatures parses a features CSV. Columns are located by header name, so
// files without a cluster_id column load with every cluster set to 0.
func ReadFeatures(r io.Reader) ([]ImageRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("features file is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"image_path", "x", "y", "author"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("features file is missing column %q", required)
		}
	}
	cr.FieldsPerRecord = len(header)

	var records []ImageRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := ImageRecord{
			Path:   row[col["image_path"]],
			Author: row[col["author"]],
		}
		if rec.X, err = strconv.ParseFloat(row[col["x"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid x: %w", line, err)
		}
		if rec.Y, err = strconv.ParseFloat(row[col["y"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid y: %w", line, err)
		}
		if !finite(rec.X) || !finite(rec.Y) {
			return nil, fmt.Errorf("line %d: non-finite coordinates (%v, %v)", line, rec.X, rec.Y)
		}
		if i, ok := col["labels"]; ok {
			if rec.ClassID, err = strconv.Atoi(row[i]); err != nil {
				return nil, fmt.Errorf("line %d: invalid labels: %w", line, err)
			}
		}
		if i, ok := col["cluster_id"]; ok && row[i] != "" {
			if rec.ClusterID, err = strconv.Atoi(row[i]); err != nil {
				return nil, fmt.Errorf("line %d: invalid cluster_id: %w", line, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// FeaturesArtifact describes the features CSV at path.
func FeaturesArtifact(path string, records []ImageRecord) Artifact {
	return Artifact{Path: path, Write: func(w io.Writer) error {
		return WriteFeatures(w, records)
	}}
}

// SaveFeatures writes the features CSV to path.
func SaveFeatures(path string, records []ImageRecord) error {
	return WriteArtifacts(FeaturesArtifact(path, records))
}

// LoadFeatures reads the features CSV at path.
func LoadFeatures(path string) ([]ImageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadFeatures(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// VectorsArtifact describes the vectors JSON at path.
func VectorsArtifact(path string, store *VectorStore) Artifact {
	return Artifact{Path: path, Write: func(w io.Writer) error {
		data, err := store.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}}
}

// SaveVectors writes the vector store as a JSON object to path.
func SaveVectors(path string, store *VectorStore) error {
	return WriteArtifacts(VectorsArtifact(path, store))
}

// LoadVectors reads a vector store written by SaveVectors.
func LoadVectors(path string) (*VectorStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	store := NewVectorStore()
	if err := store.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// ManifestArtifact describes the run manifest at path, as indented JSON.
func ManifestArtifact(path string, m *Manifest) Artifact {
	return Artifact{Path: path, Write: func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}}
}

// SaveManifest writes the run manifest as indented JSON.
func SaveManifest(path string, m *Manifest) error {
	return WriteArtifacts(ManifestArtifact(path, m))
}

// LoadManifest reads a run manifest. A missing file is reported with an error
// matching os.ErrNotExist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Artifact is one file of a persisted snapshot.
type Artifact struct {
	Path  string
	Write func(io.Writer) error
}

// WriteArtifacts writes every artifact to a temporary file next to its
// target and renames them into place only once all of them were written.
// If any write fails, no target is touched.
func WriteArtifacts(artifacts ...Artifact) error {
	staged := make([]string, 0, len(artifacts))
	defer func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}()

	for _, a := range artifacts {
		tmp, err := stage(a)
		if err != nil {
			return err
		}
		staged = append(staged, tmp)
	}

	for i, a := range artifacts {
		if err := os.Rename(staged[i], a.Path); err != nil {
			return fmt.Errorf("failed to replace %s: %w", a.Path, err)
		}
	}
	return nil
}

// stage writes a to a temporary file in its target directory and returns
// the temporary name.
func stage(a Artifact) (string, error) {
	dir := filepath.Dir(a.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(a.Path)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := a.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", a.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", a.Path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return tmpName, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
