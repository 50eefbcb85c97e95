package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VectorStore maps image paths to embeddings and remembers insertion order.
// The order survives JSON round trips and is the tie-break order for
// nearest-neighbour ranking.
type VectorStore struct {
	paths   []string
	vectors [][]float32
	index   map[string]int
}

func NewVectorStore() *VectorStore {
	return &VectorStore{index: make(map[string]int)}
}

// Add stores vec under path. Re-adding a path replaces its vector in place.
func (s *VectorStore) Add(path string, vec []float32) {
	if i, ok := s.index[path]; ok {
		s.vectors[i] = vec
		return
	}
	s.index[path] = len(s.paths)
	s.paths = append(s.paths, path)
	s.vectors = append(s.vectors, vec)
}

func (s *VectorStore) Get(path string) ([]float32, bool) {
	i, ok := s.index[path]
	if !ok {
		return nil, false
	}
	return s.vectors[i], true
}

func (s *VectorStore) Len() int {
	return len(s.paths)
}

// At returns the i-th entry in insertion order.
func (s *VectorStore) At(i int) (string, []float32) {
	return s.paths[i], s.vectors[i]
}

// Paths returns a copy of the stored paths in insertion order.
func (s *VectorStore) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Dim returns the dimension of the first vector, or 0 for an empty store.
func (s *VectorStore) Dim() int {
	if len(s.vectors) == 0 {
		return 0
	}
	return len(s.vectors[0])
}

// MarshalJSON encodes the store as a JSON object keyed by path, in insertion order.
func (s *VectorStore) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s.paths {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.vectors[i])
		if err != nil {
			return nil, fmt.Errorf("vector %s: %w", p, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keyed by path, keeping the key order of
// the document.
func (s *VectorStore) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("vector store must be a JSON object")
	}

	fresh := NewVectorStore()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		path, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var vec []float32
		if err := dec.Decode(&vec); err != nil {
			return fmt.Errorf("vector %s: %w", path, err)
		}
		fresh.Add(path, vec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = *fresh
	return nil
}
