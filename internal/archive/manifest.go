package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ManifestName is the manifest member inside a zip dump.
const ManifestName = "manifest.json"

// FormatMarker tags archives produced by this engine.
const FormatMarker = "1"

// Manifest records a dump's provenance and the module versions
// installed at backup time. It is informational: restore reports
// mismatches but never fails because of them.
type Manifest struct {
	Marker       string            `json:"dump_format"`
	DBName       string            `json:"db_name"`
	Version      string            `json:"version"`
	VersionInfo  []any             `json:"version_info"`
	MajorVersion string            `json:"major_version"`
	PGVersion    string            `json:"pg_version"`
	Modules      map[string]string `json:"modules"`
}

// WriteManifest stores the manifest as manifest.json in dir.
func WriteManifest(dir string, m *Manifest) error {
	payload, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestName), payload, 0o640)
}

// ReadManifest parses a manifest payload.
func ReadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
