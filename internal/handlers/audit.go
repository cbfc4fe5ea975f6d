package handlers

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/services"
	"github.com/steelforge/erpauth/pkg/response"
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) (*AuditHandler, error) {
	if svc == nil {
		return nil, errors.New("audit handler: service is required")
	}
	return &AuditHandler{svc: svc}, nil
}

// GET /api/audit?actor_id=&action=&result=&since=&until=&page=&page_size=
func (h *AuditHandler) List(c *gin.Context) {
	opts := services.AuditListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
		Filters: services.AuditFilters{
			ActorID:  strings.TrimSpace(c.Query("actor_id")),
			Action:   strings.TrimSpace(c.Query("action")),
			Result:   strings.TrimSpace(c.Query("result")),
			Resource: strings.TrimSpace(c.Query("resource")),
		},
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if since := parseTimeQuery(c, "since"); since != nil {
		opts.Filters.Since = since
	}
	if until := parseTimeQuery(c, "until"); until != nil {
		opts.Filters.Until = until
	}

	logs, total, err := h.svc.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	pages := int(total) / opts.PageSize
	if int(total)%opts.PageSize != 0 {
		pages++
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{
		Page:       opts.Page,
		PerPage:    opts.PageSize,
		Total:      total,
		TotalPages: pages,
	})
}

// GET /api/audit/export streams matching audit logs as CSV. The same filters
// as List apply; pagination is replaced by a hard page-size ceiling per batch.
func (h *AuditHandler) Export(c *gin.Context) {
	filters := services.AuditFilters{
		ActorID:  strings.TrimSpace(c.Query("actor_id")),
		Action:   strings.TrimSpace(c.Query("action")),
		Result:   strings.TrimSpace(c.Query("result")),
		Resource: strings.TrimSpace(c.Query("resource")),
	}
	if since := parseTimeQuery(c, "since"); since != nil {
		filters.Since = since
	}
	if until := parseTimeQuery(c, "until"); until != nil {
		filters.Until = until
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="audit_logs.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "actor_id", "action", "resource", "result", "ip_address", "created_at", "metadata"})

	for page := 1; ; page++ {
		logs, _, err := h.svc.List(requestContext(c), services.AuditListOptions{
			Page:     page,
			PageSize: 200,
			Filters:  filters,
		})
		if err != nil {
			// Headers are already out; truncate the stream.
			_ = c.Error(err)
			break
		}
		for _, log := range logs {
			_ = w.Write([]string{
				log.ID,
				log.ActorID,
				log.Action,
				log.Resource,
				log.Result,
				log.IPAddress,
				log.CreatedAt.UTC().Format(time.RFC3339),
				log.Metadata,
			})
		}
		if len(logs) < 200 {
			break
		}
	}
	w.Flush()
}

func parseTimeQuery(c *gin.Context, key string) *time.Time {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}
