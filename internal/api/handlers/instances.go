package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/modpit/craftd/internal/console"
	"github.com/modpit/craftd/internal/fetch"
	"github.com/modpit/craftd/internal/instance"
	"github.com/modpit/craftd/internal/logging"
	"github.com/modpit/craftd/internal/metrics"
	"github.com/modpit/craftd/internal/resolver"
)

// InstanceHandler exposes the provisioning and supervision operations.
type InstanceHandler struct {
	provisioner  *instance.Provisioner
	supervisor   *instance.Supervisor
	registry     *instance.Registry
	instancesDir string
	upgrader     websocket.Upgrader
}

// NewInstanceHandler creates an InstanceHandler.
func NewInstanceHandler(prov *instance.Provisioner, sup *instance.Supervisor, reg *instance.Registry, instancesDir string) *InstanceHandler {
	return &InstanceHandler{
		provisioner:  prov,
		supervisor:   sup,
		registry:     reg,
		instancesDir: instancesDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ProvisionRequest is the JSON body for instance creation.
type ProvisionRequest struct {
	Name      string            `json:"name" binding:"required"`
	Type      string            `json:"type" binding:"required"`
	Version   string            `json:"version" binding:"required"`
	Loader    string            `json:"loader"`
	Installer string            `json:"installer"`
	MinRAM    string            `json:"min_ram"`
	MaxRAM    string            `json:"max_ram"`
	Port      int               `json:"port"`
	Env       map[string]string `json:"env"`
}

// StartRequest is the JSON body for a start call.
type StartRequest struct {
	Env map[string]string `json:"env"`
}

// Provision creates or re-provisions an instance.
func (h *InstanceHandler) Provision(c *gin.Context) {
	var req ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := h.provisioner.Provision(c.Request.Context(), instance.ProvisionRequest{
		Name:      req.Name,
		Type:      req.Type,
		Version:   req.Version,
		Loader:    req.Loader,
		Installer: req.Installer,
		MinRAM:    req.MinRAM,
		MaxRAM:    req.MaxRAM,
		Port:      req.Port,
		Env:       req.Env,
	})
	if err != nil {
		metrics.ProvisionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		h.renderError(c, err)
		return
	}

	metrics.ProvisionsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.DownloadsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.DownloadBytes.Add(float64(meta.ArtifactSize))

	c.JSON(http.StatusCreated, meta)
}

// Start launches the named instance.
func (h *InstanceHandler) Start(c *gin.Context) {
	// The body is optional; chunked requests report ContentLength -1, so
	// attempt the bind and treat a clean EOF as an absent body.
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.supervisor.Start(c.Param("name"), req.Env)
	if err != nil {
		metrics.StartsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		h.renderError(c, err)
		return
	}

	metrics.StartsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	c.JSON(http.StatusOK, result)
}

// Stop terminates the named instance. Missing instances report status
// "unknown" rather than an error; stop is expected to be speculative.
func (h *InstanceHandler) Stop(c *gin.Context) {
	result, err := h.supervisor.Stop(c.Param("name"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	metrics.StopsTotal.WithLabelValues(result.Method).Inc()
	c.JSON(http.StatusOK, result)
}

// Restart stops then starts the named instance.
func (h *InstanceHandler) Restart(c *gin.Context) {
	result, err := h.supervisor.Restart(c.Param("name"), nil)
	if err != nil {
		metrics.StartsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		h.renderError(c, err)
		return
	}

	metrics.StartsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	c.JSON(http.StatusOK, result)
}

// List returns summaries for every instance under the root.
func (h *InstanceHandler) List(c *gin.Context) {
	summaries, err := h.registry.List()
	if err != nil {
		h.renderError(c, err)
		return
	}

	running := 0
	for _, s := range summaries {
		if s.Running {
			running++
		}
	}
	metrics.RunningInstances.Set(float64(running))

	c.JSON(http.StatusOK, summaries)
}

// Get returns one instance summary.
func (h *InstanceHandler) Get(c *gin.Context) {
	summary, err := h.registry.Get(c.Param("name"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Console upgrades to a websocket and streams the instance's console log.
func (h *InstanceHandler) Console(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.registry.Get(name); err != nil {
		h.renderError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.L().Warn("websocket upgrade failed", "name", name, "error", err)
		return
	}
	defer conn.Close()

	// The hijacked request context never cancels, so a read pump is the
	// only way to notice the client going away while the log is quiet.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	follower := console.NewFollower(filepath.Join(h.instancesDir, name, instance.ConsoleLog))
	err = follower.Follow(ctx, func(line []byte) error {
		return conn.WriteMessage(websocket.TextMessage, line)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.L().Debug("console stream ended", "name", name, "error", err)
	}
}

// renderError maps the error taxonomy to HTTP status codes so callers can
// tell input errors from retryable faults from environment faults.
func (h *InstanceHandler) renderError(c *gin.Context, err error) {
	var dlErr *fetch.DownloadError

	switch {
	case errors.Is(err, instance.ErrInvalidName),
		errors.Is(err, resolver.ErrUnknownDistribution):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, instance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &dlErr):
		metrics.DownloadsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		status := http.StatusBadGateway
		if dlErr.Kind == fetch.KindRateLimited {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": err.Error(), "kind": string(dlErr.Kind)})
	default:
		logging.L().Error("internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
