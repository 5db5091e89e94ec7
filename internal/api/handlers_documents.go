package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jfowler/readaloud/internal/parser"
)

// handleUpload accepts a document file, extracts and paginates its text,
// detects the document language and opens a reading session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	p, err := parser.ForFile(filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if pdfp, ok := p.(*parser.PDFParser); ok {
		pdfp.FallbackPdftotext = s.cfg.PDFFallbackPdftotext
	}

	limited := io.LimitReader(file, s.cfg.MaxUploadBytes+1)
	doc, err := p.Parse(limited, filename)
	if err != nil {
		jsonError(w, "failed to parse document: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	pages := make([]string, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		cleaned := parser.CleanText(page)
		if cleaned != "" {
			pages = append(pages, cleaned)
		}
	}
	fullText := parser.CleanText(doc.Text)
	if len(pages) == 0 {
		pages = parser.Paginate(fullText, s.cfg.PageChars)
	}
	if len(pages) == 0 {
		jsonError(w, "document contains no readable text", http.StatusUnprocessableEntity)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = doc.Title
	}

	det := s.resolver.Detect(fullText)

	sess, err := s.sessions.Create(title, fullText, pages, det)
	if err != nil {
		jsonError(w, "failed to create session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("document uploaded",
		"session_id", sess.ID,
		"filename", filename,
		"pages", len(pages),
		"language", det.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"sessionId":        sess.ID,
		"title":            sess.Title,
		"pageCount":        len(sess.Pages),
		"detectedLanguage": sess.Language,
	})
}

// handleListDocuments lists all live sessions.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": s.sessions.List()})
}

// handleGetDocument returns one session's metadata and page text.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	doc, ok := s.sessions.Get(sessionID)
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sessionId":        doc.ID,
		"title":            doc.Title,
		"pageCount":        len(doc.Pages),
		"pages":            doc.Pages,
		"detectedLanguage": doc.Language,
	})
}

// handleDeleteDocument stops any active streams and tears the session down.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	stopped := s.sessions.StopStreams(sessionID)
	if !s.sessions.Remove(sessionID) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"deleted":        true,
		"streamsStopped": stopped,
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
