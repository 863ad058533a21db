package codec

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteDocIDs writes the did -> external doc-id string mapping as a JSON
// array in did order.
func WriteDocIDs(path string, docIDs []string) error {
	b, err := json.Marshal(docIDs)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

// ReadDocIDs reads the doc-id table written by WriteDocIDs.
func ReadDocIDs(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	ok = true
	return nil
}
