package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/middleware"
	"github.com/AnTengye/quotepo/model"
	"github.com/AnTengye/quotepo/pkg/logger"
	"github.com/AnTengye/quotepo/pkg/metrics"
	"github.com/AnTengye/quotepo/pkg/sheet"
	"github.com/AnTengye/quotepo/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type OrderHandler struct {
	maxUploadBytes int64
	readers        *semaphore.Weighted
	builder        *service.OrderBuilder
	xero           *service.XeroService
	archive        service.QuoteArchive
	store          *service.SessionStore
	metrics        *metrics.Metrics
}

// NewOrderHandler wires the upload and submission endpoints. archive may be
// nil, in which case uploads are not archived.
func NewOrderHandler(cfg *config.Config, xero *service.XeroService, archive service.QuoteArchive, store *service.SessionStore) *OrderHandler {
	return &OrderHandler{
		maxUploadBytes: int64(cfg.Server.MaxUploadSizeMB) << 20,
		readers:        semaphore.NewWeighted(int64(max(cfg.Server.MaxConcurrentReads, 1))),
		builder:        service.NewOrderBuilder(&cfg.Order, xero),
		xero:           xero,
		archive:        archive,
		store:          store,
		metrics:        metrics.Default(),
	}
}

// UploadForm renders the spreadsheet upload form
func (h *OrderHandler) UploadForm(c *gin.Context) {
	sess := h.store.Get(middleware.GetSessionID(c))

	data := gin.H{"Authorized": sess.Authenticated()}
	if sess != nil {
		data["TenantName"] = sess.TenantName
	}
	c.HTML(http.StatusOK, "upload.html", data)
}

// Upload reads the quote spreadsheet, builds the purchase order and keeps it
// as the session's pending order
func (h *OrderHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.GetSessionID(c)

	sess := h.store.Get(sessionID)
	if !sess.Authenticated() {
		renderError(c, service.ErrNotAuthenticated)
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "Error: file exceeds %d bytes", tooLarge.Limit)
			return
		}
		c.String(http.StatusBadRequest, "Error: no file provided")
		return
	}
	defer file.Close()

	if !sheet.Supported(header.Filename) {
		c.String(http.StatusBadRequest, "Error: only .xls and .xlsx files are allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		renderError(c, fmt.Errorf("%w: %v", service.ErrSpreadsheetRead, err))
		return
	}

	grid, err := h.readSheet(ctx, data, header.Filename)
	if err != nil {
		logger.Warn(ctx, "spreadsheet rejected", "filename", header.Filename, "error", err)
		renderError(c, err)
		return
	}

	creds := service.Credentials{AccessToken: sess.AccessToken, TenantID: sess.TenantID}
	po, err := h.builder.BuildFromGrid(ctx, creds, grid)
	if err != nil {
		logger.Warn(ctx, "failed to build purchase order", "filename", header.Filename, "error", err)
		renderError(c, err)
		return
	}

	h.store.SetPendingOrder(sessionID, po)
	h.metrics.IncOrder("built")
	h.archiveUpload(c, sess, filepath.Base(header.Filename), data, po)

	logger.Info(ctx, "purchase order built",
		"filename", header.Filename,
		"line_items", len(po.LineItems),
		"contact", po.Contact.Name,
		"currency", po.CurrencyCode,
	)

	pretty, err := json.MarshalIndent(po, "", "  ")
	if err != nil {
		renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "preview.html", gin.H{
		"Filename": header.Filename,
		"Order":    string(pretty),
	})
}

// readSheet parses data, waiting for a free reader slot first
func (h *OrderHandler) readSheet(ctx context.Context, data []byte, filename string) (*sheet.Grid, error) {
	if err := h.readers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.readers.Release(1)

	return sheet.Read(bytes.NewReader(data), filename)
}

// archiveUpload stores the upload and its order. Failures are only logged.
func (h *OrderHandler) archiveUpload(c *gin.Context, sess *model.Session, filename string, data []byte, po *model.PurchaseOrder) {
	if h.archive == nil {
		return
	}

	prefix := fmt.Sprintf("%s/%s/%s", sess.TenantID, sess.ID, uuid.New().String())
	if err := h.archive.Archive(c.Request.Context(), prefix, filename, data, po); err != nil {
		logger.Warn(c.Request.Context(), "failed to archive quote", "prefix", prefix, "error", err)
		return
	}
	logger.Debug(c.Request.Context(), "quote archived", "prefix", prefix)
}

// Send submits the session's pending order
func (h *OrderHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.GetSessionID(c)

	sess := h.store.Get(sessionID)
	if sess == nil || sess.PendingOrder == nil {
		renderError(c, service.ErrNoPendingOrder)
		return
	}
	if !sess.Authenticated() {
		renderError(c, service.ErrNotAuthenticated)
		return
	}

	creds := service.Credentials{AccessToken: sess.AccessToken, TenantID: sess.TenantID}
	body, err := h.xero.SubmitPurchaseOrder(ctx, creds, sess.PendingOrder)
	if err != nil {
		h.metrics.IncOrder("rejected")
		logger.Error(ctx, "purchase order rejected", "error", err)
		renderError(c, err)
		return
	}

	h.store.ClearPendingOrder(sessionID)
	h.metrics.IncOrder("sent")
	logger.Info(ctx, "purchase order sent", "reference", sess.PendingOrder.Reference)

	c.HTML(http.StatusOK, "message.html", Page{
		Title:    "Purchase order sent",
		Body:     body,
		Link:     "/upload",
		LinkText: "Upload another quote",
	})
}

// Order returns the pending order as JSON
func (h *OrderHandler) Order(c *gin.Context) {
	sess := h.store.Get(middleware.GetSessionID(c))
	if sess == nil || sess.PendingOrder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrNoPendingOrder.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.PendingOrder)
}
