package app

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/rs/zerolog"

    "github.com/hyperifyio/goschedule/internal/render"
    "github.com/hyperifyio/goschedule/internal/schedule"
)

// writeArtifacts writes the optional local copies of a run's result: the
// record as indented JSON with a manifest sidecar, and a PDF rendering.
func (a *App) writeArtifacts(ctx context.Context, rec *schedule.Record) error {
    logger := zerolog.Ctx(ctx)
    if p := strings.TrimSpace(a.cfg.OutputJSONPath); p != "" {
        if err := writeRecordJSON(p, rec); err != nil {
            return fmt.Errorf("write record json: %w", err)
        }
        m := buildManifest(a.runID, a.source, rec, a.now())
        data, err := marshalManifestJSON(m)
        if err != nil {
            return fmt.Errorf("manifest: %w", err)
        }
        if err := writeFile(deriveManifestSidecarPath(p), data); err != nil {
            return fmt.Errorf("write manifest: %w", err)
        }
        logger.Info().Str("path", p).Msg("wrote record JSON")
    }
    if p := strings.TrimSpace(a.cfg.OutputPDFPath); p != "" {
        if err := ensureParent(p); err != nil {
            return err
        }
        if err := render.WriteRecordFile(p, rec); err != nil {
            return fmt.Errorf("write record pdf: %w", err)
        }
        logger.Info().Str("path", p).Msg("wrote schedule PDF")
    }
    return nil
}

// writeRecordJSON writes the same JSON that is delivered, indented for
// reading. Non-ASCII text stays unescaped.
func writeRecordJSON(path string, rec *schedule.Record) error {
    raw, err := schedule.Encode(rec)
    if err != nil { return err }
    var buf bytes.Buffer
    if err := json.Indent(&buf, raw, "", "  "); err != nil { return err }
    buf.WriteByte('\n')
    return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
    if err := ensureParent(path); err != nil { return err }
    return os.WriteFile(path, data, 0o644)
}

func ensureParent(path string) error {
    dir := filepath.Dir(path)
    if dir == "." || dir == "" { return nil }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    return nil
}
