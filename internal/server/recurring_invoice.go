package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/leasebook/internal/observability/logger"
	recurringdomain "github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"github.com/smallbiznis/leasebook/pkg/db/pagination"
	"go.uber.org/zap"
)

func (s *Server) CreateRecurringInvoice(c *gin.Context) {
	var req recurringdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tmpl, err := s.recurringSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": tmpl})
}

func (s *Server) ListRecurringInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		IsActive string `form:"is_active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isActive, err := parseOptionalBool(query.IsActive)
	if err != nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "invalid is_active"))
		return
	}

	resp, err := s.recurringSvc.List(c.Request.Context(), recurringdomain.ListRequest{
		Pagination: query.Pagination,
		IsActive:   isActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Templates,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetRecurringInvoice(c *gin.Context) {
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tmpl, err := s.recurringSvc.Get(c.Request.Context(), id.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

func (s *Server) UpdateRecurringInvoice(c *gin.Context) {
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recurringdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tmpl, err := s.recurringSvc.Update(c.Request.Context(), id.String(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

func (s *Server) PauseRecurringInvoice(c *gin.Context) {
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tmpl, err := s.recurringSvc.Pause(c.Request.Context(), id.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

func (s *Server) ResumeRecurringInvoice(c *gin.Context) {
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tmpl, err := s.recurringSvc.Resume(c.Request.Context(), id.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

// GenerateRecurringInvoice materializes the current period on demand. A skipped
// template answers 200 with a null invoice.
func (s *Server) GenerateRecurringInvoice(c *gin.Context) {
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	// Get scopes the template to the calling landlord before the unscoped Generate.
	tmpl, err := s.recurringSvc.Get(ctx, id.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.recurringSvc.Generate(ctx, tmpl.ID)
	if err != nil {
		logger.FromContext(ctx).Warn("manual recurring invoice generation failed",
			zap.String("recurring_template_id", tmpl.ID.String()),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    inv,
		"skipped": inv == nil,
	})
}

func (s *Server) RunRecurringInvoices(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		result recurringdomain.BatchResult
		err    error
	)
	if s.scheduler != nil {
		result, err = s.scheduler.Sweep(ctx)
	} else {
		result, err = s.recurringSvc.ProcessDue(ctx)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if result.Errors == nil {
		result.Errors = []recurringdomain.ItemError{}
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
