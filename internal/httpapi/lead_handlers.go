package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"crm-backend/internal/leads"

	"github.com/gin-gonic/gin"
)

type createLeadRequest struct {
	FRN         string `json:"frn" binding:"required,max=255"`
	CompanyName string `json:"company_name" binding:"required,max=255"`

	ContactEmail *string `json:"contact_email" binding:"omitempty,max=255"`
	ContactPhone *string `json:"contact_phone" binding:"omitempty,max=255"`
	ServiceType  *string `json:"service_type" binding:"omitempty,max=255"`
	Website      *string `json:"website" binding:"omitempty,max=255"`
	Notes        *string `json:"notes" binding:"omitempty,max=10000"`

	PipelineStatus     string  `json:"pipelineStatus"`
	AssignedEmployeeID *string `json:"assignedEmployeeId"`
}

type importResponse struct {
	Message string `json:"message"`
	leads.IngestResult
}

func (h Handlers) ListLeads(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	skip, ok := queryInt(c, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	out, err := h.Leads.List(c.Request.Context(), p, leads.ListFilter{
		Status:     leads.PipelineStatus(c.Query("status")),
		Search:     c.Query("search"),
		AssignedTo: c.Query("assignedTo"),
		Offset:     skip,
		Limit:      limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CreateLead(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	l, err := h.Leads.Create(c.Request.Context(), p, leads.CreateInput{
		FRN:                req.FRN,
		CompanyName:        req.CompanyName,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		ServiceType:        req.ServiceType,
		Website:            req.Website,
		Notes:              req.Notes,
		PipelineStatus:     req.PipelineStatus,
		AssignedEmployeeID: req.AssignedEmployeeID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h Handlers) GetLead(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	l, err := h.Leads.Get(c.Request.Context(), p, c.Param("lead_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// UpdateLead serves both PUT and PATCH; absent keys are left untouched either way.
func (h Handlers) UpdateLead(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var patch leads.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeBindError(c, err)
		return
	}
	l, err := h.Leads.Update(c.Request.Context(), p, c.Param("lead_id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// ClaimLead takes the lead id from the path or from the lead_id query parameter.
func (h Handlers) ClaimLead(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id := c.Param("lead_id")
	if id == "" {
		id = c.Query("lead_id")
	}
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id is required", "kind": string(leads.KindValidation)})
		return
	}
	l, err := h.Leads.Claim(c.Request.Context(), p, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// ExportLeads streams every lead as CSV (default) or XLSX.
func (h Handlers) ExportLeads(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "xlsx" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx", "kind": string(leads.KindValidation)})
		return
	}

	all, err := h.Leads.Export(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = leads.WriteXLSX(&buf, all)
	} else {
		err = leads.WriteCSV(&buf, all)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	name := fmt.Sprintf("leads_export_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// ImportLeads accepts a multipart "file" field or a raw text/csv body.
func (h Handlers) ImportLeads(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	data, err := h.readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("upload exceeds %d bytes", h.MaxUploadBytes),
				"kind":  string(leads.KindValidation),
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(leads.KindValidation)})
		return
	}

	res, err := h.Leads.Ingest(c.Request.Context(), p, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, importResponse{Message: "CSV processing complete", IngestResult: res})
}

func (h Handlers) readUpload(c *gin.Context) ([]byte, error) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return io.ReadAll(c.Request.Body)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("multipart field \"file\" is required")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		return nil, errors.New("file must be a CSV")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
