package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cardreader/internal/export"
	"cardreader/internal/logger"
	"cardreader/internal/ocr"
	"cardreader/internal/session"
	"cardreader/pkg/models"
)

// maxUploadBytes leaves room for multipart framing around a maximum-size image.
const maxUploadBytes = ocr.MaxFileSizeBytes + 1<<20

type scanResponse struct {
	SessionID       string               `json:"session_id"`
	Contact         models.ContactRecord `json:"contact"`
	RawText         string               `json:"raw_text"`
	CompletedFields []string             `json:"completed_fields,omitempty"`
}

type sessionResponse struct {
	SessionID  string                `json:"session_id"`
	Contact    *models.ContactRecord `json:"contact"`
	RawText    string                `json:"raw_text,omitempty"`
	DeleteMode bool                  `json:"delete_mode"`
}

type indexedContact struct {
	Index int `json:"index"`
	models.SavedContact
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scanCard reads the uploaded "image", runs OCR and extraction and keeps the
// result as the session's draft. With complete=true empty fields are sent to
// the completion service when one is configured.
func (s *Server) scanCard(w http.ResponseWriter, r *http.Request, state session.State) session.State {
	log := logger.WithContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, r, ocr.ErrImageTooLarge)
			return state
		}
		writeError(w, http.StatusBadRequest, `Upload the card as multipart form field "image"`)
		return state
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, r, fmt.Errorf("read upload: %w", err))
		return state
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ScanTimeout)
	defer cancel()

	text, err := s.deps.OCR.ProcessImage(ctx, bytes.NewReader(s.deps.Preprocessor.Process(image)))
	if err != nil {
		writeErr(w, r, err)
		return state
	}

	contact := s.deps.Extractor.ExtractAllFields(text)

	var completed []string
	if s.deps.Completer != nil && wantsCompletion(r) {
		filled, fields, err := s.deps.Completer.Complete(ctx, text, contact)
		if err != nil {
			log.Warn().Err(err).Msg("Field completion failed, keeping extracted fields")
		} else {
			contact, completed = filled, fields
		}
	}

	log.Info().
		Str("file", header.Filename).
		Int("bytes", len(image)).
		Str("name", contact.Name).
		Msg("Card scanned")

	state.Draft = &contact
	state.RawText = text
	state.Image = image

	writeJSON(w, http.StatusOK, scanResponse{
		SessionID:       state.ID,
		Contact:         contact,
		RawText:         text,
		CompletedFields: completed,
	})
	return state
}

func wantsCompletion(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.FormValue("complete"))
	return v
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, state session.State) session.State {
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:  state.ID,
		Contact:    state.Draft,
		RawText:    state.RawText,
		DeleteMode: state.DeleteMode,
	})
	return state
}

// updateDraft replaces the draft with the reviewed contact from the body.
func (s *Server) updateDraft(w http.ResponseWriter, r *http.Request, state session.State) session.State {
	if !state.HasDraft() {
		writeError(w, http.StatusConflict, "No scanned card in this session")
		return state
	}

	contact, err := decodeContact(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return state
	}

	state.Draft = &contact
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:  state.ID,
		Contact:    state.Draft,
		RawText:    state.RawText,
		DeleteMode: state.DeleteMode,
	})
	return state
}

func (s *Server) setDeleteMode(w http.ResponseWriter, r *http.Request, state session.State) session.State {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `Expected {"enabled": true|false}`)
		return state
	}

	state.DeleteMode = *body.Enabled
	writeJSON(w, http.StatusOK, map[string]bool{"delete_mode": state.DeleteMode})
	return state
}

// saveContact stores the session draft (or the contact in the body, when
// one is sent) together with the scanned image and clears the draft.
func (s *Server) saveContact(w http.ResponseWriter, r *http.Request, state session.State) session.State {
	if !state.HasDraft() {
		writeError(w, http.StatusConflict, "No scanned card in this session")
		return state
	}

	contact := *state.Draft
	if r.ContentLength != 0 {
		edited, err := decodeContact(r.Body)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err.Error())
			return state
		}
		if err == nil {
			contact = edited
		}
	}

	saved, index, err := s.deps.Store.Append(contact, state.Image)
	if err != nil {
		writeErr(w, r, err)
		return state
	}

	state.ClearDraft()
	writeJSON(w, http.StatusCreated, indexedContact{Index: index, SavedContact: saved})
	return state
}

func decodeContact(body io.Reader) (models.ContactRecord, error) {
	var contact models.ContactRecord
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&contact); err != nil {
		if errors.Is(err, io.EOF) {
			return contact, err
		}
		return contact, fmt.Errorf("invalid contact JSON: %v", err)
	}
	return trimContact(contact), nil
}

func trimContact(c models.ContactRecord) models.ContactRecord {
	for _, f := range []*string{&c.Name, &c.Email, &c.Phone, &c.Website, &c.Company, &c.Designation, &c.Address} {
		*f = strings.TrimSpace(*f)
	}
	return c
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.deps.Store.Load()
	if err != nil {
		writeErr(w, r, err)
		return
	}

	list := make([]indexedContact, len(contacts))
	for i, c := range contacts {
		list[i] = indexedContact{Index: i, SavedContact: c}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contacts": list})
}

func (s *Server) contactStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Store.Stats()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Store.CSV()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	attachment(w, "text/csv", "visiting_cards.csv")
	_, _ = w.Write(data)
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.deps.Store.Load()
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, contacts); err != nil {
		writeErr(w, r, err)
		return
	}
	attachment(w, export.XLSXMIMEType, "visiting_cards.xlsx")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) exportVCards(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.deps.Store.Load()
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteVCards(&buf, contacts); err != nil {
		writeErr(w, r, err)
		return
	}
	attachment(w, export.VCardMIMEType, "visiting_cards.vcf")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) contactVCard(w http.ResponseWriter, r *http.Request) {
	index, _ := strconv.Atoi(mux.Vars(r)["index"])

	contact, err := s.deps.Store.Get(index)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	attachment(w, export.VCardMIMEType, export.VCardFilename(contact.ContactRecord))
	_, _ = io.WriteString(w, export.VCard(contact.ContactRecord))
}

// contactImage downloads the saved card image of a row.
func (s *Server) contactImage(w http.ResponseWriter, r *http.Request) {
	index, _ := strconv.Atoi(mux.Vars(r)["index"])

	f, _, err := s.deps.Store.OpenImage(index)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// deleteContact removes a saved row; the session must be in delete mode.
func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request, state session.State) session.State {
	if !state.DeleteMode {
		writeError(w, http.StatusConflict, "Enable delete mode before deleting contacts")
		return state
	}

	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	removed, err := s.deps.Store.Delete(index)
	if err != nil {
		writeErr(w, r, err)
		return state
	}

	writeJSON(w, http.StatusOK, indexedContact{Index: index, SavedContact: removed})
	return state
}

func (s *Server) pushContacts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pusher == nil {
		writeError(w, http.StatusNotImplemented, "Google Sheets sync is not configured")
		return
	}

	contacts, err := s.deps.Store.Load()
	if err != nil {
		writeErr(w, r, err)
		return
	}

	result, err := s.deps.Pusher.Push(r.Context(), s.deps.SheetName, contacts)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
