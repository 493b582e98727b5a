package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardreader/internal/ocr"
	"cardreader/internal/server"
	"cardreader/internal/sheets"
	"cardreader/internal/store"
	"cardreader/pkg/models"
)

const johnSmithCard = "John Smith\nSenior Manager\nAcme Solutions Pvt Ltd\njohn.smith@acmesolutions.com\n+91 9876543210\n12 MG Road, Sector 5, Bangalore 560001"

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) ProcessImage(ctx context.Context, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return f.text, f.err
}

func (f *fakeOCR) ProcessImageWithMetadata(ctx context.Context, r io.Reader) (*ocr.OCRResult, error) {
	text, err := f.ProcessImage(ctx, r)
	if err != nil {
		return nil, err
	}
	return &ocr.OCRResult{Text: text, Backend: "fake"}, nil
}

func (f *fakeOCR) Close() error { return nil }

type fakeCompleter struct{}

func (fakeCompleter) Complete(ctx context.Context, raw string, rec models.ContactRecord) (models.ContactRecord, []string, error) {
	rec.Address = "Completed Address 560001"
	return rec, []string{"address"}, nil
}

type fakePusher struct {
	sheet string
	got   []models.SavedContact
}

func (p *fakePusher) Push(ctx context.Context, sheet string, contacts []models.SavedContact) (sheets.PushResult, error) {
	p.sheet = sheet
	p.got = contacts
	return sheets.PushResult{Appended: len(contacts)}, nil
}

type harness struct {
	t       *testing.T
	handler http.Handler
	store   *store.Store
	session string
}

func newHarness(t *testing.T, deps server.Deps) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cards"))
	require.NoError(t, err)
	deps.Store = st
	if deps.OCR == nil {
		deps.OCR = &fakeOCR{text: johnSmithCard}
	}
	srv := server.New(deps, server.DefaultOptions(":0"))
	return &harness{t: t, handler: srv.Router(), store: st}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	if h.session != "" {
		req.Header.Set(server.SessionHeader, h.session)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if id := rec.Header().Get(server.SessionHeader); id != "" {
		h.session = id
	}
	return rec
}

func (h *harness) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.do(req)
}

func (h *harness) upload(fields map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()

	var img bytes.Buffer
	require.NoError(h.t, imaging.Encode(&img, imaging.New(60, 30, color.White), imaging.PNG))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "card.png")
	require.NoError(h.t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(h.t, err)
	for k, v := range fields {
		require.NoError(h.t, mw.WriteField(k, v))
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cards", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestScanReviewSaveDelete(t *testing.T) {
	h := newHarness(t, server.Deps{})

	// scan
	rec := h.upload(nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scanned struct {
		SessionID string               `json:"session_id"`
		Contact   models.ContactRecord `json:"contact"`
		RawText   string               `json:"raw_text"`
	}
	decode(t, rec, &scanned)
	assert.Equal(t, h.session, scanned.SessionID)
	assert.Equal(t, "John Smith", scanned.Contact.Name)
	assert.Equal(t, "john.smith@acmesolutions.com", scanned.Contact.Email)
	assert.Equal(t, johnSmithCard, scanned.RawText)

	// review
	rec = h.request(http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess struct {
		Contact    *models.ContactRecord `json:"contact"`
		DeleteMode bool                  `json:"delete_mode"`
	}
	decode(t, rec, &sess)
	require.NotNil(t, sess.Contact)
	assert.Equal(t, "Senior Manager", sess.Contact.Designation)

	edited := scanned.Contact
	edited.Name = "  Johnny Smith "
	rec = h.request(http.MethodPut, "/api/v1/session/contact", edited)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// save
	rec = h.request(http.MethodPost, "/api/v1/contacts", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var saved struct {
		Index     int    `json:"index"`
		Name      string `json:"name"`
		ImagePath string `json:"image_path"`
	}
	decode(t, rec, &saved)
	assert.Equal(t, 0, saved.Index)
	assert.Equal(t, "Johnny Smith", saved.Name)
	assert.Equal(t, "card_1.png", filepath.Base(saved.ImagePath))

	// the draft is gone once saved
	rec = h.request(http.MethodPost, "/api/v1/contacts", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.request(http.MethodGet, "/api/v1/contacts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Contacts []struct {
			Index int    `json:"index"`
			Name  string `json:"name"`
		} `json:"contacts"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Contacts, 1)
	assert.Equal(t, "Johnny Smith", list.Contacts[0].Name)

	rec = h.request(http.MethodGet, "/api/v1/contacts/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Stats
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.WithEmail)

	rec = h.request(http.MethodGet, "/api/v1/contacts/0/vcard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/vcard", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "johnny_smith.vcf")
	assert.Contains(t, rec.Body.String(), "FN:Johnny Smith\r\n")

	// delete needs delete mode
	rec = h.request(http.MethodDelete, "/api/v1/contacts/0", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.request(http.MethodPut, "/api/v1/session/delete-mode", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.request(http.MethodDelete, "/api/v1/contacts/3", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.request(http.MethodDelete, "/api/v1/contacts/0", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	contacts, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestScan_Errors(t *testing.T) {
	h := newHarness(t, server.Deps{OCR: &fakeOCR{err: ocr.WrapOCRError("ProcessImage", ocr.ErrEmptyDocument, "")}})

	rec := h.upload(nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "No text found in the image")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cards", strings.NewReader("no form"))
	rec = h.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// nothing was scanned, so there is nothing to edit
	rec = h.request(http.MethodPut, "/api/v1/session/contact", models.ContactRecord{Name: "X"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScan_WithCompletion(t *testing.T) {
	h := newHarness(t, server.Deps{Completer: fakeCompleter{}})

	rec := h.upload(map[string]string{"complete": "true"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var scanned struct {
		Contact         models.ContactRecord `json:"contact"`
		CompletedFields []string             `json:"completed_fields"`
	}
	decode(t, rec, &scanned)
	assert.Equal(t, "Completed Address 560001", scanned.Contact.Address)
	assert.Equal(t, []string{"address"}, scanned.CompletedFields)

	// without the flag the completer is not used
	rec = h.upload(nil)
	decode(t, rec, &scanned)
	assert.NotEqual(t, "Completed Address 560001", scanned.Contact.Address)
}

func TestSession_Cookie(t *testing.T) {
	h := newHarness(t, server.Deps{})

	rec := h.upload(nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, server.SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var sess struct {
		SessionID string                `json:"session_id"`
		Contact   *models.ContactRecord `json:"contact"`
	}
	decode(t, rec, &sess)
	assert.Equal(t, cookies[0].Value, sess.SessionID)
	require.NotNil(t, sess.Contact)
	assert.Equal(t, "John Smith", sess.Contact.Name)

	// a different visitor has its own empty session
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	decode(t, rec, &sess)
	assert.NotEqual(t, cookies[0].Value, sess.SessionID)
	assert.Nil(t, sess.Contact)
}

func TestExports(t *testing.T) {
	h := newHarness(t, server.Deps{})
	require.Equal(t, http.StatusOK, h.upload(nil).Code)
	require.Equal(t, http.StatusCreated, h.request(http.MethodPost, "/api/v1/contacts", nil).Code)

	rec := h.request(http.MethodGet, "/api/v1/contacts/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Name,Email,Phone,Designation,Company,Website,Address,Image_Path\n"))

	rec = h.request(http.MethodGet, "/api/v1/contacts/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	rec = h.request(http.MethodGet, "/api/v1/contacts/export.vcf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "BEGIN:VCARD"))

	rec = h.request(http.MethodGet, "/api/v1/contacts/5/vcard", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContactImage(t *testing.T) {
	h := newHarness(t, server.Deps{})
	require.Equal(t, http.StatusOK, h.upload(nil).Code)
	require.Equal(t, http.StatusCreated, h.request(http.MethodPost, "/api/v1/contacts", nil).Code)

	rec := h.request(http.MethodGet, "/api/v1/contacts/0/image", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="card_1.png"`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = h.request(http.MethodGet, "/api/v1/contacts/3/image", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	saved, err := h.store.Get(0)
	require.NoError(t, err)
	require.NoError(t, os.Remove(saved.ImagePath))
	rec = h.request(http.MethodGet, "/api/v1/contacts/0/image", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No card image")
}

func TestPush(t *testing.T) {
	h := newHarness(t, server.Deps{})
	rec := h.request(http.MethodPost, "/api/v1/contacts/push", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	pusher := &fakePusher{}
	h = newHarness(t, server.Deps{Pusher: pusher, SheetName: "Contacts"})
	require.Equal(t, http.StatusOK, h.upload(nil).Code)
	require.Equal(t, http.StatusCreated, h.request(http.MethodPost, "/api/v1/contacts", nil).Code)

	rec = h.request(http.MethodPost, "/api/v1/contacts/push", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result sheets.PushResult
	decode(t, rec, &result)
	assert.Equal(t, 1, result.Appended)
	assert.Equal(t, "Contacts", pusher.sheet)
	require.Len(t, pusher.got, 1)
	assert.Equal(t, "John Smith", pusher.got[0].Name)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, server.Deps{})
	rec := h.request(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
