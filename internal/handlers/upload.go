package handlers

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"med-reminder-go/internal/models"
	"med-reminder-go/internal/parser"
)

const maxUploadBytes = 8 << 20 // 8 MiB

var toneExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".ogg": true,
	".m4a": true,
}

// ToneUploadHandler stores an alarm tone and returns its served path.
func (h *Handler) ToneUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "upload too large or malformed", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("tone")
	if err != nil {
		http.Error(w, "tone file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !toneExtensions[ext] {
		http.Error(w, "tone must be an audio file (mp3, wav, ogg, m4a)", http.StatusBadRequest)
		return
	}

	name := uuid.NewString() + ext
	if err := h.saveUpload(file, name); err != nil {
		log.Println("Failed to store tone:", err)
		http.Error(w, "Failed to store tone", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"tone": name,
		"url":  "/uploads/" + name,
	})
}

// ReportUploadHandler stores a medical report and returns a shallow text
// analysis: every medication line the prescription parser recognizes.
func (h *Handler) ReportUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "upload too large or malformed", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("report")
	if err != nil {
		http.Error(w, "report file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	if err := h.saveUpload(file, name); err != nil {
		log.Println("Failed to store report:", err)
		http.Error(w, "Failed to store report", http.StatusInternalServerError)
		return
	}

	var medications []models.Prescription
	if _, err := file.Seek(0, io.SeekStart); err == nil {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			p, err := parser.Parse(scanner.Text())
			if err != nil {
				continue
			}
			medications = append(medications, p)
		}
	}
	if medications == nil {
		medications = []models.Prescription{}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"file":        "/uploads/" + name,
		"medications": medications,
		"summary":     fmt.Sprintf("%d medication line(s) recognized", len(medications)),
		"disclaimer":  "Automated text scan, not medical advice.",
	})
}

func (h *Handler) saveUpload(src io.Reader, name string) error {
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(h.UploadDir, name))
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return err
	}
	return nil
}
