package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/spiralsim/internal/analysis"
)

type ExportData struct {
	Metadata *RunMetadata   `json:"metadata"`
	Stats    analysis.Table `json:"stats"`
}

// ExportJSON writes a run's metadata and statistics as one JSON document.
func (s *Store) ExportJSON(w io.Writer, name string) error {
	meta, err := s.Load(name)
	if err != nil {
		return err
	}
	table, err := s.LoadStats(name)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Metadata: meta, Stats: table})
}
