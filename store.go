package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DatasetStore lists and opens the CSV files in the datasets directory.
// The filesystem is abstracted so tests can run against a memory fs.
type DatasetStore struct {
	fs  afero.Fs
	dir string
}

func NewDatasetStore(fs afero.Fs, dir string) *DatasetStore {
	return &DatasetStore{fs: fs, dir: dir}
}

// List returns the CSV file names in the datasets directory, sorted.
func (s *DatasetStore) List() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading datasets dir %s: %w", s.dir, err)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(info.Name()), ".csv") {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Newest returns the most recently modified CSV file name.
func (s *DatasetStore) Newest() (string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return "", fmt.Errorf("reading datasets dir %s: %w", s.dir, err)
	}
	newest := ""
	var newestMod int64
	for _, info := range infos {
		if info.IsDir() || !strings.EqualFold(filepath.Ext(info.Name()), ".csv") {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = info.Name(), mod
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no CSV files in %s", s.dir)
	}
	return newest, nil
}

// Open opens a dataset by bare file name. Names with path separators are
// rejected so callers cannot escape the datasets directory.
func (s *DatasetStore) Open(name string) (io.ReadCloser, error) {
	if name != filepath.Base(name) || name == "." || name == "" {
		return nil, &LoadError{Dataset: name, Reason: "invalid dataset name"}
	}
	f, err := s.fs.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, &LoadError{Dataset: name, Reason: "cannot open dataset", Err: err}
	}
	return f, nil
}
