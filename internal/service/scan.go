package service

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/raphaelgruber/texmtlx/internal/models"
	"github.com/raphaelgruber/texmtlx/internal/parser"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
)

// Scanner finds texture files and groups them into material sets.
type Scanner struct {
	fs  billy.Filesystem
	tax *taxonomy.Taxonomy
}

// NewScanner creates a scanner over fs using tax for classification.
func NewScanner(fs billy.Filesystem, tax *taxonomy.Taxonomy) *Scanner {
	return &Scanner{fs: fs, tax: tax}
}

// ScanResult summarizes a scan.
type ScanResult struct {
	Sets         map[string]*models.MaterialTextureSet
	FilesSeen    int
	Classified   int
	Unclassified []string
}

// CollectFiles lists candidate texture files in dir: allow-listed extension
// and at least one underscore in the name. Subfolders are included when
// recursive is set. Results are sorted.
func (s *Scanner) CollectFiles(dir string, recursive bool) ([]string, error) {
	info, err := s.fs.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var files []string
	if err := s.collect(dir, recursive, &files); err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func (s *Scanner) collect(dir string, recursive bool, files *[]string) error {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		p := filepath.ToSlash(s.fs.Join(dir, e.Name()))
		if e.IsDir() {
			if recursive {
				if err := s.collect(p, recursive, files); err != nil {
					return err
				}
			}
			continue
		}
		if !s.tax.AllowsExtension(filepath.Ext(e.Name())) || !strings.Contains(e.Name(), "_") {
			continue
		}
		*files = append(*files, p)
	}
	return nil
}

// HasTextures reports whether dir directly contains at least one candidate
// texture file.
func (s *Scanner) HasTextures(dir string) bool {
	files, err := s.CollectFiles(dir, false)
	return err == nil && len(files) > 0
}

// Scan collects, classifies and groups the textures of each directory, then
// unions the per-directory sets. Unclassifiable files are dropped.
func (s *Scanner) Scan(dirs []string, recursive bool) (*ScanResult, error) {
	result := &ScanResult{Sets: make(map[string]*models.MaterialTextureSet)}

	for _, dir := range dirs {
		files, err := s.CollectFiles(dir, recursive)
		if err != nil {
			return nil, err
		}
		result.FilesSeen += len(files)

		classified := make([]models.ClassifiedTexture, 0, len(files))
		for _, f := range files {
			ct, ok := parser.Classify(s.tax, f)
			if !ok {
				slog.Debug("skipping unclassifiable file", "file", f)
				result.Unclassified = append(result.Unclassified, f)
				continue
			}
			classified = append(classified, ct)
		}
		result.Classified += len(classified)

		MergeSets(result.Sets, BuildSets(classified))
		slog.Info("scanned directory", "dir", dir, "files", len(files), "classified", len(classified))
	}

	return result, nil
}
