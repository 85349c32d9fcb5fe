/*
 * MIT License
 *
 * Copyright (c) 2026 The netspeed Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/phoneinv/netspeed/internal/state"
)

// defaultPreviewLimit bounds previews when the client names no limit.
const defaultPreviewLimit = 100

// handleListFiles returns every discovered netspeed file, current first.
func (s *Server) handleListFiles(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.svc.Files.List()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, entries)
}

// handleFileInfo reports on the current export, falling back to the newest
// rotation when no current file exists.
func (s *Server) handleFileInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := s.svc.Files.CurrentInfo()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, info)
}

// handlePreview returns up to limit normalized rows of one file. An empty
// filename selects the current export; loc filters by 3- or 5-character
// location code.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPreviewLimit)
	if err != nil || limit < 0 {
		s.writeError(w, fmt.Sprintf("invalid limit: %q", r.URL.Query().Get("limit")), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	preview, err := s.svc.Files.PreviewFile(limit, q.Get("filename"), q.Get("loc"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, preview)
}

// handleColumns lists the canonical columns for UI configuration.
func (s *Server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.svc.Files.Columns())
}

// handleDownload serves one netspeed file verbatim. Name validation lives in
// the file service; anything it rejects reads as not found.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	path, err := s.svc.Files.ResolveDownload(filename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

// handleReindex triggers a full rebuild and returns its task id. Also serves
// /api/search/index/all.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	id := s.svc.Ingest.TriggerRebuild(r.Context(), "api")
	s.writeJSON(w, map[string]string{"task_id": id})
}

// handleReindexCurrent triggers a current-file-only reindex.
func (s *Server) handleReindexCurrent(w http.ResponseWriter, r *http.Request) {
	id := s.svc.Ingest.TriggerReindexCurrent(r.Context())
	s.writeJSON(w, map[string]string{"task_id": id})
}

// handleIndexStatus returns the persisted progress document, with stale
// running tasks already reclassified.
func (s *Server) handleIndexStatus(w http.ResponseWriter, _ *http.Request) {
	doc, err := s.svc.Ingest.Status()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, doc)
}

// handleTaskStatus reports on one ingest task by id. Only the task currently
// holding the write side is visible; anything else is gone.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]
	doc, err := s.svc.Ingest.Status()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	a := doc.Active
	if a == nil || a.TaskID != taskID {
		s.writeError(w, fmt.Sprintf("task %s not found", taskID), http.StatusNotFound)
		return
	}

	resp := map[string]any{"status": a.Status}
	switch a.Status {
	case state.StatusRunning:
		resp["progress"] = map[string]any{
			"current_file":      a.CurrentFile,
			"index":             a.Index,
			"total_files":       a.TotalFiles,
			"documents_indexed": a.DocumentsIndexed,
		}
	case state.StatusCompleted:
		resp["result"] = map[string]any{
			"total_files":       a.TotalFiles,
			"documents_indexed": a.DocumentsIndexed,
		}
	default:
		if a.Error != "" {
			resp["error"] = a.Error
		}
	}
	s.writeJSON(w, resp)
}
