package service

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// liveViewServer exposes the monitor's derived state as JSON for ad-hoc
// inspection. It is read-only; mutation authority stays with the files.
type liveViewServer struct {
	logger  zerolog.Logger
	monitor *Monitor
	server  *http.Server
	ln      net.Listener
}

type liveStateResponse struct {
	Files       []liveFile `json:"files"`
	GeneratedAt time.Time  `json:"generated_at"`
}

type liveFile struct {
	Path      string                 `json:"path"`
	Valid     bool                   `json:"valid"`
	Lines     int                    `json:"lines,omitempty"`
	Words     int                    `json:"words,omitempty"`
	Chars     int                    `json:"chars,omitempty"`
	Sections  []liveSection          `json:"sections,omitempty"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
	UpdatedAt *time.Time             `json:"updated_at,omitempty"`
}

type liveSection struct {
	Title     string `json:"title"`
	Level     int    `json:"level"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Words     int    `json:"words"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newLiveViewServer(listen string, mon *Monitor, logger zerolog.Logger) (*liveViewServer, error) {
	mux := http.NewServeMux()
	server := &liveViewServer{logger: logger, monitor: mon}
	mux.HandleFunc("/state", server.handleState)
	mux.HandleFunc("/healthz", server.handleHealthz)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: mux}
	server.server = srv
	server.ln = ln

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("live view server stopped")
		}
	}()

	logger.Info().Str("listen", ln.Addr().String()).Msg("live view started")
	return server, nil
}

func (s *liveViewServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	paths := s.monitor.Paths()
	files := make([]liveFile, 0, len(paths))
	for _, path := range paths {
		files = append(files, s.toLiveFile(path))
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	resp := liveStateResponse{Files: files, GeneratedAt: time.Now()}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("encode live view state")
	}
}

func (s *liveViewServer) toLiveFile(path string) liveFile {
	res, ok := s.monitor.manager.Stored(fileKey(path))
	if !ok || !res.Valid {
		return liveFile{Path: path}
	}
	doc := res.Value
	sections := make([]liveSection, 0, len(doc.Sections))
	for _, section := range doc.Sections {
		sections = append(sections, liveSection{
			Title:     section.Title,
			Level:     section.Level,
			StartLine: section.StartLine,
			EndLine:   section.EndLine,
			Words:     section.Words,
		})
	}
	var metrics map[string]interface{}
	if len(doc.Metrics) > 0 {
		metrics = make(map[string]interface{}, len(doc.Metrics))
		for name, value := range doc.Metrics {
			metrics[name] = value.Data
		}
	}
	return liveFile{
		Path:      path,
		Valid:     true,
		Lines:     doc.Lines,
		Words:     doc.Words,
		Chars:     doc.Chars,
		Sections:  sections,
		Metrics:   metrics,
		UpdatedAt: timePtr(res.UpdatedAt),
	}
}

func (s *liveViewServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *liveViewServer) close() {
	if s.server != nil {
		_ = s.server.Close()
	}
}
