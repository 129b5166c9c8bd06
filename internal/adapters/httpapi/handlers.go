package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/predictstats/internal/adapters/storage"
	"github.com/alejandrodnm/predictstats/internal/domain"
	"github.com/alejandrodnm/predictstats/internal/ports"
	"github.com/alejandrodnm/predictstats/internal/scheduler"
)

// --- health ---

type HealthHandler struct {
	Runner Trigger
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
}

func (h *HealthHandler) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.Runner != nil {
		resp["running"] = h.Runner.Running()
		if next := h.Runner.Next(); !next.IsZero() {
			resp["nextRun"] = domain.FormatTimestamp(next)
		}
		if last, ok := h.Runner.Last(); ok {
			resp["lastStatus"] = last.Status
		}
	}
	c.JSON(http.StatusOK, resp)
}

// --- data ---

// DataHandler sirve los blobs del pipeline al dashboard. Solo las keys
// configuradas son legibles.
type DataHandler struct {
	Store ports.BlobStore
	Keys  []string
}

func (h *DataHandler) Register(r *gin.Engine) {
	r.GET("/data/:key", h.get)
	r.GET("/api/blobs", h.list)
}

func (h *DataHandler) get(c *gin.Context) {
	key := c.Param("key")
	if !slices.Contains(h.Keys, key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown key"})
		return
	}
	data, found, err := h.Store.Get(c.Request.Context(), key)
	if err != nil {
		slog.Warn("blob read failed", "key", key, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blob read failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not generated yet"})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, storage.ContentType(key), data)
}

func (h *DataHandler) list(c *gin.Context) {
	lister, ok := h.Store.(ports.BlobLister)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "store cannot list"})
		return
	}
	infos, err := lister.List(c.Request.Context())
	if err != nil {
		slog.Warn("blob list failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blob list failed"})
		return
	}
	out := make([]ports.BlobInfo, 0, len(infos))
	for _, info := range infos {
		if slices.Contains(h.Keys, info.Key) {
			out = append(out, info)
		}
	}
	c.JSON(http.StatusOK, gin.H{"blobs": out})
}

// --- runs ---

type RunHandler struct {
	Runner Trigger
}

func (h *RunHandler) Register(r *gin.Engine) {
	r.POST("/api/run", h.run)
	r.GET("/api/last-run", h.last)
}

// run dispara una ejecución y espera a que termine. La ejecución no depende
// de la conexión: si el cliente corta, los blobs se escriben igual y el tope
// lo pone el timeout del runner.
func (h *RunHandler) run(c *gin.Context) {
	res, err := h.Runner.Trigger(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, scheduler.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "run already in progress"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if res.Status == domain.RunFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

func (h *RunHandler) last(c *gin.Context) {
	res, ok := h.Runner.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
		return
	}
	c.JSON(http.StatusOK, res)
}
