package builder

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// writeDocsMap writes a doc_id -> did reverse-lookup JSON object
// alongside the usual outputs, for callers that need O(1) external-id
// lookup without scanning index_native_docids.json. Enabled by
// PLAGIO_META_DOCS_MAP or WithDocsMap; not consulted by engine or
// aggregator.
func writeDocsMap(path string, docIDs []string) error {
	m := make(map[string]uint32, len(docIDs))
	for did, id := range docIDs {
		m[id] = uint32(did)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(name)
		}
	}()
	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(name, path); err != nil {
		return err
	}
	ok = true
	return nil
}
