package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vkrizan/insights-host-inventory/internal/inventory"
	"github.com/vkrizan/insights-host-inventory/internal/middleware"
	"github.com/vkrizan/insights-host-inventory/internal/model"
	"github.com/vkrizan/insights-host-inventory/pkg/logger"
	"github.com/vkrizan/insights-host-inventory/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TagOperationRequest is the body of POST /api/hosts/:host_id_list/tags.
type TagOperationRequest struct {
	Operation string `json:"operation" validate:"required,oneof=apply remove"`
	Tag       string `json:"tag" validate:"required"`
}

// HostHandler exposes the reconciliation core over HTTP.
type HostHandler struct {
	service *inventory.Service
}

// NewHostHandler creates a HostHandler on top of the core service.
func NewHostHandler(service *inventory.Service) *HostHandler {
	return &HostHandler{service: service}
}

// CreateOrUpdateHost handles POST /api/hosts. A submission that matches
// no known host creates one (201); a submission matching an existing host
// is merged into it (200). Either way the response echoes the persisted
// record.
func (h *HostHandler) CreateOrUpdateHost(c echo.Context) error {
	log := logger.FromContext(c)
	account := requestAccount(c)

	var sub model.HostSubmission
	if err := c.Bind(&sub); err != nil {
		log.Warn("Failed to bind host submission", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "Invalid request data",
			"detail": "Request body is not valid JSON",
		})
	}
	if err := c.Validate(&sub); err != nil {
		log.Warn("Host submission failed validation", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	host, isNew, err := h.service.CreateOrUpdate(account, &sub)
	if err != nil {
		return h.errorResponse(c, err)
	}

	operation := "update"
	status := http.StatusOK
	if isNew {
		operation = "create"
		status = http.StatusCreated
		go h.updateHostCount(account)
	}
	prometheus.RecordHostOperation(operation)

	log.Info("Host submission processed",
		zap.String("host_id", host.ID),
		zap.String("operation", operation))
	return c.JSON(status, host)
}

// ListHosts handles GET /api/hosts with optional tag and display_name
// filters. Repeated tag parameters compose per the configured tag filter
// mode; display_name matches as a case-sensitive substring.
func (h *HostHandler) ListHosts(c echo.Context) error {
	account := requestAccount(c)
	prometheus.RecordHostOperation("list")

	filter := inventory.Filter{
		Tags:        c.QueryParams()["tag"],
		DisplayName: c.QueryParam("display_name"),
	}

	hosts, err := h.service.Query(account, filter)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":   len(hosts),
		"results": hosts,
	})
}

// GetHosts handles GET /api/hosts/:host_id_list where the parameter is a
// comma separated ID list. A single unknown ID yields 404; in a list of
// several, unknown IDs are simply absent from the results.
func (h *HostHandler) GetHosts(c echo.Context) error {
	account := requestAccount(c)
	prometheus.RecordHostOperation("get")

	hosts, err := h.service.Get(account, hostIDList(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":   len(hosts),
		"results": hosts,
	})
}

// PatchFacts handles PATCH /api/hosts/:host_id_list/facts/:namespace,
// shallow-merging the body into the namespace of each referenced host.
func (h *HostHandler) PatchFacts(c echo.Context) error {
	return h.editFacts(c, "facts_patch", h.service.PatchFacts)
}

// ReplaceFacts handles PUT /api/hosts/:host_id_list/facts/:namespace,
// replacing the namespace's facts wholesale on each referenced host.
func (h *HostHandler) ReplaceFacts(c echo.Context) error {
	return h.editFacts(c, "facts_replace", h.service.ReplaceFacts)
}

func (h *HostHandler) editFacts(c echo.Context, operation string, edit func(string, []string, string, map[string]interface{}) ([]string, error)) error {
	log := logger.FromContext(c)
	account := requestAccount(c)
	prometheus.RecordHostOperation(operation)

	var facts map[string]interface{}
	if err := c.Bind(&facts); err != nil {
		log.Warn("Failed to bind fact mapping", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "Invalid request data",
			"detail": "Request body is not valid JSON",
		})
	}

	updated, err := edit(account, hostIDList(c), c.Param("namespace"), facts)
	if err != nil {
		return h.errorResponse(c, err)
	}

	log.Info("Host facts edited",
		zap.String("operation", operation),
		zap.String("namespace", c.Param("namespace")),
		zap.Int("updated", len(updated)))
	return c.JSON(http.StatusOK, echo.Map{"updated": updated})
}

// TagOperation handles POST /api/hosts/:host_id_list/tags, applying or
// removing a single tag on each referenced host.
func (h *HostHandler) TagOperation(c echo.Context) error {
	log := logger.FromContext(c)
	account := requestAccount(c)

	var req TagOperationRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to bind tag operation", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "Invalid request data",
			"detail": "Request body is not valid JSON",
		})
	}
	if err := c.Validate(&req); err != nil {
		log.Warn("Tag operation failed validation", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	prometheus.RecordHostOperation("tag_" + req.Operation)

	var updated []string
	var err error
	switch req.Operation {
	case "apply":
		updated, err = h.service.ApplyTag(account, hostIDList(c), req.Tag)
	case "remove":
		updated, err = h.service.RemoveTag(account, hostIDList(c), req.Tag)
	}
	if err != nil {
		return h.errorResponse(c, err)
	}

	log.Info("Host tags edited",
		zap.String("operation", req.Operation),
		zap.String("tag", req.Tag),
		zap.Int("updated", len(updated)))
	return c.JSON(http.StatusOK, echo.Map{"updated": updated})
}

// errorResponse maps core errors onto transport status codes.
func (h *HostHandler) errorResponse(c echo.Context, err error) error {
	log := logger.FromContext(c)

	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
	case errors.Is(err, inventory.ErrAmbiguousIdentity):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, inventory.ErrHostNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Host not found"})
	default:
		log.Error("Host operation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}
}

// updateHostCount refreshes the hosts-per-account gauge.
func (h *HostHandler) updateHostCount(account string) {
	count, err := h.service.CountByAccount(account)
	if err != nil {
		return
	}
	prometheus.UpdateHostsPerAccount(account, int(count))
}

func requestAccount(c echo.Context) string {
	account, _ := c.Get(middleware.AccountKey).(string)
	return account
}

func hostIDList(c echo.Context) []string {
	return strings.Split(c.Param("host_id_list"), ",")
}
