package handover

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/domain/priority"
	"github.com/handover/handover/internal/domain/refine"
	"github.com/handover/handover/internal/platform/vault"
)

// Handler exposes the pipeline and the vault over HTTP. LocalOnly is
// the opaque privacy-profile gate owned by an external policy
// evaluator: when false, vault writes are refused outright.
type Handler struct {
	svc        *Service
	vault      *vault.Vault
	localOnly  bool
	defaultTTL time.Duration
}

func NewHandler(svc *Service, v *vault.Vault, localOnly bool, defaultTTL time.Duration) *Handler {
	return &Handler{svc: svc, vault: v, localOnly: localOnly, defaultTTL: defaultTTL}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/handover/process", h.ProcessSession)
	api.POST("/handover/refine/:sessionId", h.RefineSession)
	api.POST("/vault/:sessionId/raw", h.SaveRaw)
	api.GET("/vault/:sessionId/raw", h.LoadRaw)
	api.POST("/vault/:sessionId/result", h.SaveResult)
	api.GET("/vault/:sessionId/result", h.LoadResult)
	api.DELETE("/vault/:sessionId", h.ShredSession)
	api.POST("/vault/purge", h.PurgeExpired)
}

// ProcessRequest is the pipeline input: the raw transcript segments
// plus per-run options.
type ProcessRequest struct {
	SessionID string                 `json:"sessionId"`
	DutyType  string                 `json:"dutyType"`
	STTEngine string                 `json:"sttEngine"`
	Segments  []normalize.RawSegment `json:"segments"`
}

func (h *Handler) ProcessSession(c echo.Context) error {
	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	result := h.svc.Process(req.SessionID, req.STTEngine, priority.DutyType(req.DutyType), req.Segments)
	return c.JSON(http.StatusOK, result)
}

// RefineRequest carries a previously produced result together with the
// untrusted patch from the refine adapter.
type RefineRequest struct {
	Result HandoverSessionResult `json:"result"`
	Patch  json.RawMessage       `json:"patch"`
}

func (h *Handler) RefineSession(c echo.Context) error {
	var req RefineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Result.SessionID = c.Param("sessionId")

	aliases := make([]string, 0, len(req.Result.Patients))
	for _, p := range req.Result.Patients {
		aliases = append(aliases, p.Alias)
	}

	summaries, err := refine.Validate(req.Patch, aliases)
	if err != nil {
		// Invalid patches are discarded whole, the result stays as-is.
		return c.JSON(http.StatusOK, map[string]any{
			"applied": false,
			"reason":  err.Error(),
			"result":  req.Result,
		})
	}

	refined := h.svc.ApplyRefinement(req.Result, summaries)
	return c.JSON(http.StatusOK, map[string]any{
		"applied": true,
		"result":  refined,
	})
}

// SaveRawRequest is the vault write body.
type SaveRawRequest struct {
	Segments []normalize.RawSegment `json:"segments"`
	TTLMs    int64                  `json:"ttlMs"`
}

func (h *Handler) SaveRaw(c echo.Context) error {
	if !h.localOnly {
		return c.JSON(http.StatusForbidden, map[string]any{
			"saved":  false,
			"reason": "privacy profile forbids vault writes",
		})
	}
	var req SaveRawRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ttl := h.defaultTTL
	if req.TTLMs > 0 {
		ttl = time.Duration(req.TTLMs) * time.Millisecond
	}
	saved := h.vault.SaveRawSegments(c.Request().Context(), c.Param("sessionId"), req.Segments, ttl)
	status := http.StatusOK
	if !saved {
		status = http.StatusInsufficientStorage
	}
	return c.JSON(status, map[string]any{"saved": saved})
}

func (h *Handler) LoadRaw(c echo.Context) error {
	segments := h.vault.LoadRawSegments(c.Request().Context(), c.Param("sessionId"))
	if segments == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no recoverable record for session")
	}
	return c.JSON(http.StatusOK, map[string]any{"segments": segments})
}

// SaveResultRequest persists a sanitized structured result.
type SaveResultRequest struct {
	Result HandoverSessionResult `json:"result"`
	TTLMs  int64                 `json:"ttlMs"`
}

func (h *Handler) SaveResult(c echo.Context) error {
	if !h.localOnly {
		return c.JSON(http.StatusForbidden, map[string]any{
			"saved":  false,
			"reason": "privacy profile forbids vault writes",
		})
	}
	var req SaveResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.Result.Safety.PersistAllowed {
		return c.JSON(http.StatusForbidden, map[string]any{
			"saved":  false,
			"reason": "result is not cleared for persistence (residual PHI)",
		})
	}
	// The payload arrives over the wire, so the safety flag alone is not
	// trusted: the result is swept again and a residual hit refuses the
	// write no matter what the client asserted.
	cleaned, _, residual := SanitizeStructuredSession(req.Result)
	if len(residual) > 0 {
		return c.JSON(http.StatusForbidden, map[string]any{
			"saved":  false,
			"reason": "result is not cleared for persistence (residual PHI)",
		})
	}
	payload, err := json.Marshal(cleaned)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ttl := h.defaultTTL
	if req.TTLMs > 0 {
		ttl = time.Duration(req.TTLMs) * time.Millisecond
	}
	saved := h.vault.SaveStructuredResult(c.Request().Context(), c.Param("sessionId"), payload, ttl)
	status := http.StatusOK
	if !saved {
		status = http.StatusInsufficientStorage
	}
	return c.JSON(status, map[string]any{"saved": saved})
}

func (h *Handler) LoadResult(c echo.Context) error {
	payload := h.vault.LoadStructuredResult(c.Request().Context(), c.Param("sessionId"))
	if payload == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no recoverable record for session")
	}
	var result HandoverSessionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no recoverable record for session")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ShredSession(c echo.Context) error {
	h.vault.CryptoShredSession(c.Request().Context(), c.Param("sessionId"))
	return c.JSON(http.StatusOK, map[string]any{"shredded": true})
}

func (h *Handler) PurgeExpired(c echo.Context) error {
	count := h.vault.PurgeExpired(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{"purged": count})
}
