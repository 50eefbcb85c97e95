// Package dataset locates the labelled painting collection on disk: it
// materialises the directory-per-author tree, enumerates images and draws the
// per-author sample that gets indexed.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/artmap/internal/constants"
)

// ErrNoImages is returned by Scan when the root holds no recognised images.
var ErrNoImages = errors.New("no images found")

// Item is one image found by Scan.
type Item struct {
	Path    string // author-dir/filename, forward slashes
	Author  string
	ClassID int
}

// ScanResult is the unsampled content of a dataset root.
type ScanResult struct {
	Items []Item
	// Labels maps author to its 1-based class id in first-seen order.
	Labels map[string]int
	// Authors lists authors with at least one image, in class id order.
	Authors []string
}

// IsImage reports whether name has one of the accepted image extensions.
// The comparison is case-insensitive.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(constants.ImageExtensions, ext)
}

// Scan enumerates root/<author>/<image> in sorted order. Non-directory
// entries at the top level, hidden files and files with other extensions are
// ignored. Authors without images receive no label.
func Scan(root string) (*ScanResult, error) {
	authorDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset root: %w", err)
	}

	result := &ScanResult{Labels: make(map[string]int)}
	for _, dir := range authorDirs {
		if !dir.IsDir() {
			continue
		}
		author := dir.Name()

		files, err := os.ReadDir(filepath.Join(root, author))
		if err != nil {
			return nil, fmt.Errorf("failed to read author directory %s: %w", author, err)
		}

		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".") || !IsImage(f.Name()) {
				continue
			}
			id, ok := result.Labels[author]
			if !ok {
				id = len(result.Labels) + 1
				result.Labels[author] = id
				result.Authors = append(result.Authors, author)
			}
			result.Items = append(result.Items, Item{
				Path:    author + "/" + f.Name(),
				Author:  author,
				ClassID: id,
			})
		}
	}

	if len(result.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoImages)
	}
	return result, nil
}

// CountByAuthor returns the number of items per author.
func CountByAuthor(items []Item) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Author]++
	}
	return counts
}
