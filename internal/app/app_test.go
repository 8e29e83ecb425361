package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/goschedule/internal/deliver"
	"github.com/hyperifyio/goschedule/internal/render"
	"github.com/hyperifyio/goschedule/internal/schedule"
)

type stubExtractor struct {
	tables []schedule.RawTable
	err    error
	got    []byte
}

func (s *stubExtractor) ExtractTables(_ context.Context, document []byte) ([]schedule.RawTable, error) {
	s.got = document
	return s.tables, s.err
}

type recordingSender struct {
	calls int
	line  string
	rec   *schedule.Record
	err   error
}

func (s *recordingSender) Send(_ context.Context, line string, rec *schedule.Record) (*deliver.Result, error) {
	s.calls++
	s.line = line
	s.rec = rec
	if s.err != nil {
		return nil, s.err
	}
	return &deliver.Result{StatusCode: 200, Body: "ok"}, nil
}

func pdfServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(source string) Config {
	cfg := DefaultConfig()
	cfg.SourceURL = source
	cfg.Endpoint = "http://127.0.0.1:1/guardar.php"
	cfg.DownloadTimeout = 5 * time.Second
	cfg.DeliveryTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg Config, ex *stubExtractor, snd *recordingSender) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)
	if ex != nil {
		a.extractor = ex
	}
	if snd != nil {
		a.sender = snd
	}
	a.now = func() time.Time { return time.Date(2025, 9, 16, 7, 30, 0, 0, time.Local) }
	return a
}

func TestNew_RequiresEndpointUnlessDryRun(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without endpoint")
	}
	cfg.DryRun = true
	if _, err := New(context.Background(), cfg); err != nil {
		t.Fatalf("dry run should not need an endpoint: %v", err)
	}
}

func TestRun_FetchFailureSendsNothing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	snd := &recordingSender{}
	a := newTestApp(t, testConfig(srv.URL+"/L111L.pdf"), &stubExtractor{}, snd)
	err := a.Run(context.Background())
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if snd.calls != 0 {
		t.Fatalf("nothing should be sent after a failed download")
	}
	if ExitCode(err) != 2 {
		t.Fatalf("exit code %d, want 2", ExitCode(err))
	}
}

func TestRun_DeliversSurvivingTables(t *testing.T) {
	srv := pdfServer(t, []byte("%PDF-1.4 stub"))
	ex := &stubExtractor{tables: []schedule.RawTable{
		{{"Hora"}},
		{{"Salida", "Destino"}, {"08:00", "Motril"}, {"09:00"}},
	}}
	snd := &recordingSender{}
	a := newTestApp(t, testConfig(srv.URL+"/L111L.pdf"), ex, snd)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(ex.got) != "%PDF-1.4 stub" {
		t.Fatalf("extractor got %q", ex.got)
	}
	if snd.calls != 1 || snd.line != "L-111" {
		t.Fatalf("unexpected delivery calls=%d line=%q", snd.calls, snd.line)
	}
	rec := snd.rec
	if rec.ExtractedAt != "2025-09-16 07:30:00" {
		t.Fatalf("fecha_extraccion=%q", rec.ExtractedAt)
	}
	if len(rec.Sentidos) != 1 || rec.Sentidos[0].Table != 2 || len(rec.Sentidos[0].Horarios) != 1 {
		t.Fatalf("unexpected sentidos: %+v", rec.Sentidos)
	}
	if v, _ := rec.Sentidos[0].Horarios[0].Get("Destino"); v != "Motril" {
		t.Fatalf("Destino=%q", v)
	}
}

func TestRun_EmptyExtraction(t *testing.T) {
	srv := pdfServer(t, []byte("%PDF-1.4 stub"))
	cases := []struct {
		name string
		ex   *stubExtractor
	}{
		{"no tables", &stubExtractor{}},
		{"no usable rows", &stubExtractor{tables: []schedule.RawTable{{{"A", "B"}, {"1"}}}}},
		{"unreadable", &stubExtractor{err: errors.New("broken xref")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snd := &recordingSender{}
			a := newTestApp(t, testConfig(srv.URL), tc.ex, snd)
			err := a.Run(context.Background())
			if !errors.Is(err, ErrEmptyExtraction) {
				t.Fatalf("expected ErrEmptyExtraction, got %v", err)
			}
			if snd.calls != 0 {
				t.Fatalf("nothing should be sent")
			}
			if ExitCode(err) != 3 {
				t.Fatalf("exit code %d, want 3", ExitCode(err))
			}
		})
	}
}

func TestRun_DeliveryFailure(t *testing.T) {
	srv := pdfServer(t, []byte("%PDF-1.4 stub"))
	ex := &stubExtractor{tables: []schedule.RawTable{{{"A", "B"}, {"1", "2"}}}}
	snd := &recordingSender{err: &deliver.StatusError{Code: 500, Body: "error"}}
	a := newTestApp(t, testConfig(srv.URL), ex, snd)

	err := a.Run(context.Background())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	var se *deliver.StatusError
	if !errors.As(err, &se) || se.Code != 500 {
		t.Fatalf("status error not preserved: %v", err)
	}
	if ExitCode(err) != 4 {
		t.Fatalf("exit code %d, want 4", ExitCode(err))
	}
}

func TestRun_DryRunWritesArtifacts(t *testing.T) {
	srv := pdfServer(t, []byte("%PDF-1.4 stub"))
	dir := t.TempDir()
	cfg := testConfig(srv.URL)
	cfg.Endpoint = ""
	cfg.DryRun = true
	cfg.OutputJSONPath = filepath.Join(dir, "out", "record.json")
	cfg.OutputPDFPath = filepath.Join(dir, "out", "record.pdf")
	ex := &stubExtractor{tables: []schedule.RawTable{{{"Salida", "Destino"}, {"08:00", "Almuñécar"}}}}
	a := newTestApp(t, cfg, ex, nil)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := os.ReadFile(cfg.OutputJSONPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if !bytes.Contains(b, []byte("Almuñécar")) {
		t.Fatalf("non-ASCII text should be written verbatim: %s", b)
	}
	rec, err := schedule.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Line != "L-111" || rec.RowCount() != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}

	mb, err := os.ReadFile(deriveManifestSidecarPath(cfg.OutputJSONPath))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(mb, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if m.RunID != a.RunID() || m.SourceURL != srv.URL || m.Bytes != len("%PDF-1.4 stub") || m.Rows != 1 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if m.SHA256 != computeSHA256Hex([]byte("%PDF-1.4 stub")) {
		t.Fatalf("manifest digest mismatch")
	}

	pb, err := os.ReadFile(cfg.OutputPDFPath)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(pb, []byte("%PDF")) {
		t.Fatalf("rendered output is not a PDF")
	}
}

func TestRun_DiscoversPDFFromIndexPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/horarios/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body>
<a href="L110L.pdf">Linea L-110</a>
<a href="/files/L111L.pdf">Linea L-111</a>
</body></html>`))
	})
	mux.HandleFunc("/files/L111L.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 L111"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL + "/horarios/")
	cfg.Discover = true
	ex := &stubExtractor{tables: []schedule.RawTable{{{"A", "B"}, {"1", "2"}}}}
	snd := &recordingSender{}
	a := newTestApp(t, cfg, ex, snd)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(ex.got) != "%PDF-1.4 L111" {
		t.Fatalf("extractor got %q", ex.got)
	}
	if a.source.URL != srv.URL+"/files/L111L.pdf" {
		t.Fatalf("source url %q", a.source.URL)
	}
}

func TestRun_HTMLWithoutDiscoveryFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	snd := &recordingSender{}
	a := newTestApp(t, testConfig(srv.URL), &stubExtractor{}, snd)
	if err := a.Run(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

// Renders a timetable PDF, serves it, extracts it with the real extractor and
// checks what the endpoint receives.
func TestRun_EndToEnd(t *testing.T) {
	var doc bytes.Buffer
	if err := render.WriteTables(&doc, "L-111", []render.Section{
		{Title: "Ida", Table: schedule.RawTable{
			{"Salida", "Parada", "Destino"},
			{"07:00", "Centro", "Motril"},
			{"08:30", "", "Salobrena"},
		}},
		{Title: "Vuelta", Table: schedule.RawTable{
			{"Salida", "Llegada"},
			{"18:00", "18:45"},
		}},
	}); err != nil {
		t.Fatalf("render: %v", err)
	}
	src := pdfServer(t, doc.Bytes())

	var line string
	var rec *schedule.Record
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		var err error
		line, _, rec, err = deliver.DecodePayload(r.PostForm)
		if err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte("guardado"))
	}))
	defer endpoint.Close()

	cfg := testConfig(src.URL + "/L111L.pdf")
	cfg.Endpoint = endpoint.URL
	a := newTestApp(t, cfg, nil, nil)
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if line != "L-111" || rec == nil {
		t.Fatalf("endpoint got line=%q rec=%v", line, rec)
	}
	if len(rec.Sentidos) != 2 {
		t.Fatalf("expected 2 sentidos, got %+v", rec.Sentidos)
	}
	// The row with a blank Parada cell has two values for three labels.
	if rec.Sentidos[0].Table != 1 || len(rec.Sentidos[0].Horarios) != 1 {
		t.Fatalf("unexpected first sentido %+v", rec.Sentidos[0])
	}
	if v, _ := rec.Sentidos[1].Horarios[0].Get("Llegada"); v != "18:45" {
		t.Fatalf("Llegada=%q", v)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("config"), 1},
		{ErrFetchFailed, 2},
		{ErrEmptyExtraction, 3},
		{ErrDeliveryFailed, 4},
		{errors.Join(ErrFetchFailed, context.Canceled), 130},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v)=%d, want %d", tc.err, got, tc.want)
		}
	}
}
