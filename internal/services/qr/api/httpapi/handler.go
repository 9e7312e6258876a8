// Package httpapi serves the browser-facing QR endpoints: sheet listing,
// creation and download, identifier resolution and the binding form.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
	"github.com/louisbranch/homelabqr/internal/platform/httpx"
	"github.com/louisbranch/homelabqr/internal/services/qr/resolve"
	"github.com/louisbranch/homelabqr/internal/services/qr/sheets"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
)

const tracerName = "github.com/louisbranch/homelabqr/internal/services/qr/api/httpapi"

// maxFormBytes bounds the binding form body.
const maxFormBytes = 64 << 10

// Form field names of the binding form.
const (
	FieldRedirectURL = "redirect-url"
	FieldPassword    = "password"
)

// SheetService is the sheet behaviour the handlers need.
type SheetService interface {
	Create(ctx context.Context) (storage.Sheet, error)
	Get(ctx context.Context, sheetID string) (storage.Sheet, error)
	List(ctx context.Context) ([]storage.Sheet, error)
	Render(ctx context.Context, w io.Writer, sheet storage.Sheet) error
}

// Resolver is the resolution behaviour the handlers need.
type Resolver interface {
	Resolve(ctx context.Context, id string) (resolve.Resolution, error)
	Bind(ctx context.Context, req resolve.BindRequest) (resolve.Resolution, error)
}

// Config wires the handler.
type Config struct {
	Sheets   SheetService
	Resolver Resolver
	// Logger defaults to log.Default.
	Logger *log.Logger
}

type handlers struct {
	sheets   SheetService
	resolver Resolver
	logger   *log.Logger
}

// NewHandler builds the root handler with request ids, logging, tracing and
// panic recovery applied.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Sheets == nil {
		return nil, fmt.Errorf("httpapi: sheet service is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("httpapi: resolver is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &handlers{sheets: cfg.Sheets, resolver: cfg.Resolver, logger: logger}

	mux := http.NewServeMux()
	registerRoutes(mux, h)
	return httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RecoverPanic(logger),
		httpx.RequestLogger(logger),
		httpx.Trace(tracerName),
	), nil
}

func registerRoutes(mux *http.ServeMux, h *handlers) {
	mux.HandleFunc(http.MethodGet+" /{$}", h.handleListSheets)
	mux.HandleFunc(http.MethodGet+" /healthz", h.handleHealth)
	mux.HandleFunc(http.MethodGet+" /n", h.handleNewSheet)
	mux.HandleFunc(http.MethodGet+" /s/{sheetID}", h.handleSheetPDF)
	mux.HandleFunc(http.MethodGet+" /e/{id}", h.handleBindForm)
	mux.HandleFunc(http.MethodPost+" /e/{id}", h.handleBind)
	mux.HandleFunc(http.MethodGet+" /{id}", h.handleResolve)
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *handlers) handleListSheets(w http.ResponseWriter, r *http.Request) {
	list, err := h.sheets.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePage(w, r, http.StatusOK, sheetListPage(list))
}

func (h *handlers) handleNewSheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.sheets.Create(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/s/"+url.PathEscape(sheet.ID), http.StatusFound)
}

func (h *handlers) handleSheetPDF(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.sheets.Get(r.Context(), r.PathValue("sheetID"))
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			h.writePage(w, r, http.StatusNotFound, messagePage("Not found", "Sheet not found"))
			return
		}
		h.writeError(w, r, err)
		return
	}
	out := &pdfResponse{w: w, fileName: sheets.FileName(sheet.ID)}
	if err := h.sheets.Render(r.Context(), out, sheet); err != nil {
		if out.started {
			// The status line is already on the wire; usually the client went away.
			h.logger.Printf("write sheet %s: %v", sheet.ID, err)
			return
		}
		h.writeError(w, r, err)
	}
}

func (h *handlers) handleResolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolver.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidIdentifier) {
			h.writePage(w, r, http.StatusNotFound, messagePage("Not found", apperrors.CodeNotFound.UserMessage()))
			return
		}
		h.writeError(w, r, err)
		return
	}
	if res.State == resolve.Bound {
		http.Redirect(w, r, res.Target, http.StatusFound)
		return
	}
	http.Redirect(w, r, "/e/"+url.PathEscape(res.ID), http.StatusFound)
}

func (h *handlers) handleBindForm(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolver.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidIdentifier) {
			h.writePage(w, r, http.StatusNotFound, messagePage("Not found", apperrors.CodeNotFound.UserMessage()))
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writePage(w, r, http.StatusOK, bindFormPage(bindFormData{
		ID:            res.ID,
		CurrentTarget: res.Target,
		Target:        res.Target,
	}))
}

func (h *handlers) handleBind(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.writePage(w, r, http.StatusBadRequest, messagePage("Bad request", "Could not read form"))
		return
	}
	id := r.PathValue("id")
	target := r.PostFormValue(FieldRedirectURL)
	res, err := h.resolver.Bind(r.Context(), resolve.BindRequest{
		ID:         id,
		Target:     target,
		Credential: r.PostFormValue(FieldPassword),
	})
	if err != nil {
		code := apperrors.CodeOf(err)
		if code == apperrors.CodeUnknown {
			h.writeError(w, r, err)
			return
		}
		h.writePage(w, r, code.HTTPStatus(), bindFormPage(bindFormData{
			ID:      id,
			Target:  target,
			Message: code.UserMessage(),
		}))
		return
	}
	h.writePage(w, r, http.StatusOK, boundPage(res.ID, res.Target))
}

// writeError maps err to a status and a short message page. Unclassified
// errors are logged and reported as 500.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Printf("request failed method=%s path=%s code=%s err=%v", r.Method, r.URL.Path, code, err)
	}
	h.writePage(w, r, status, messagePage(http.StatusText(status), code.UserMessage()))
}

// writePage renders into a buffer first so a template failure can still
// produce a clean 500.
func (h *handlers) writePage(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		h.logger.Printf("render page path=%s err=%v", r.URL.Path, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// pdfResponse sets download headers on the first write, so a render that
// fails before producing output can still answer with an error page.
type pdfResponse struct {
	w        http.ResponseWriter
	fileName string
	started  bool
}

func (p *pdfResponse) Write(b []byte) (int, error) {
	if !p.started {
		p.started = true
		header := p.w.Header()
		header.Set("Content-Type", "application/pdf")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.fileName))
		p.w.WriteHeader(http.StatusOK)
	}
	return p.w.Write(b)
}
