package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hyperifyio/goschedule/internal/schedule"
)

// sourceInfo records what a run downloaded, for the manifest sidecar.
type sourceInfo struct {
	URL    string
	SHA256 string
	Bytes  int
	Tables int
}

// manifest is a compact record of one run that aids reproducibility.
type manifest struct {
	RunID       string    `json:"run_id"`
	Line        string    `json:"linea"`
	SourceURL   string    `json:"source_url"`
	SHA256      string    `json:"sha256"`
	Bytes       int       `json:"bytes"`
	Tables      int       `json:"tables"`
	Sentidos    int       `json:"sentidos"`
	Rows        int       `json:"rows"`
	ExtractedAt string    `json:"fecha_extraccion"`
	GeneratedAt time.Time `json:"generated_at"`
}

func computeSHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func buildManifest(runID string, src sourceInfo, rec *schedule.Record, now time.Time) manifest {
	return manifest{
		RunID:       runID,
		Line:        rec.Line,
		SourceURL:   src.URL,
		SHA256:      src.SHA256,
		Bytes:       src.Bytes,
		Tables:      src.Tables,
		Sentidos:    len(rec.Sentidos),
		Rows:        rec.RowCount(),
		ExtractedAt: rec.ExtractedAt,
		GeneratedAt: now.UTC(),
	}
}

func marshalManifestJSON(m manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// deriveManifestSidecarPath returns a sidecar JSON path next to the record file.
func deriveManifestSidecarPath(outputPath string) string {
	return outputPath + ".manifest.json"
}
