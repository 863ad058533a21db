package codec

import (
	"encoding/json"
	"os"
)

// BuildConfig echoes the shingle/build parameters a shard was built with,
// so the engine and any offline analysis can confirm compatibility without
// re-deriving them from the binary index.
type BuildConfig struct {
	K       int `json:"k"`
	Stride  int `json:"stride"`
	Version int `json:"version"`
}

// BuildStats records what the builder did, for observability and for
// diagnosing a skipped-heavy corpus; it is not consulted by the engine.
type BuildStats struct {
	LinesRead       int64 `json:"lines_read"`
	DocsIndexed     int64 `json:"docs_indexed"`
	DocsSkippedJSON int64 `json:"docs_skipped_malformed_json"`
	DocsSkippedField int64 `json:"docs_skipped_missing_field"`
	DocsSkippedEmpty int64 `json:"docs_skipped_empty_text"`
	DocsSkippedShort int64 `json:"docs_skipped_too_few_tokens"`
	UniqueHashes    int64 `json:"unique_hashes"`
	Postings        int64 `json:"postings"`
	Workers         int   `json:"workers"`
	RunFiles        int   `json:"run_files"`
	MergePasses     int   `json:"merge_passes"`
	WallClockMillis int64 `json:"wall_clock_millis"`
}

// Meta is the full contents of index_native_meta.json.
type Meta struct {
	Config BuildConfig `json:"config"`
	Stats  BuildStats  `json:"stats"`
}

// WriteMeta writes the build meta file atomically.
func WriteMeta(path string, m Meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

// ReadMeta reads the build meta file.
func ReadMeta(path string) (Meta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}
