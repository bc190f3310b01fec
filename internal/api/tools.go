package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/models"
	"github.com/ivzakh/termkeeper/internal/repository"
)

type toolDescriptor struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

var toolCatalogue = []toolDescriptor{
	{
		Name:        "get_transactions",
		Description: "List a user's records, soonest deadline first.",
		Parameters: map[string]string{
			"owner_id": "required, telegram user id",
			"status":   "optional, one of active/completed/cancelled",
			"priority": "optional, one of normal/high/critical",
			"limit":    "optional, max rows (default 100)",
		},
	},
	{
		Name:        "add_transaction",
		Description: "Create a record and schedule its deadline reminders.",
		Parameters: map[string]string{
			"owner_id":    "required, telegram user id",
			"title":       "required",
			"type":        "optional, type name (default Other)",
			"end_date":    "optional, YYYY-MM-DD",
			"priority":    "optional, normal/high/critical (default normal)",
			"description": "optional",
		},
	},
	{
		Name:        "analyze_transactions",
		Description: "Ask the AI for an urgency analysis of a user's records.",
		Parameters: map[string]string{
			"owner_id": "required, telegram user id",
			"question": "optional, a specific question about the records",
		},
	},
}

func (s *Server) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": toolCatalogue})
}

type toolRequest struct {
	OwnerID     int64  `json:"owner_id"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Limit       int    `json:"limit"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
	Question    string `json:"question"`
}

func (s *Server) handleExecuteTool(c *gin.Context) {
	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.OwnerID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	switch c.Param("name") {
	case "get_transactions":
		s.toolGetTransactions(c, req)
	case "add_transaction":
		s.toolAddTransaction(c, req)
	case "analyze_transactions":
		s.toolAnalyzeTransactions(c, req)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown tool %q", c.Param("name"))})
	}
}

func (s *Server) toolGetTransactions(c *gin.Context, req toolRequest) {
	filter := repository.ListFilter{OwnerID: &req.OwnerID, Limit: req.Limit}
	if req.Status != "" {
		status := models.Status(req.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", req.Status)})
			return
		}
		filter.Status = &status
	}
	if req.Priority != "" {
		priority := models.Priority(req.Priority)
		if !priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid priority %q", req.Priority)})
			return
		}
		filter.Priority = &priority
	}

	records, err := s.records.List(c.Request.Context(), filter)
	if err != nil {
		s.log.WithError(err).Error("get_transactions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}
	if records == nil {
		records = []*models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": records})
}

func (s *Server) toolAddTransaction(c *gin.Context, req toolRequest) {
	ctx := c.Request.Context()

	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	typeName := req.Type
	if typeName == "" {
		typeName = "Other"
	}
	recordType, err := s.types.GetByName(ctx, typeName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown type %q", typeName)})
			return
		}
		s.log.WithError(err).Error("add_transaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}

	priority := models.PriorityNormal
	if req.Priority != "" {
		priority = models.Priority(req.Priority)
		if !priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid priority %q", req.Priority)})
			return
		}
	}

	record := &models.Transaction{
		TypeID:      recordType.TypeID,
		UserID:      req.OwnerID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
	}
	if req.EndDate != "" {
		endDate, err := clock.ParseDate(req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t := endDate.Time()
		record.EndDate = &t
	}

	// The owner may not have talked to the bot yet; satisfy the
	// foreign key with a bare profile.
	if _, err := s.users.Upsert(ctx, req.OwnerID, "", ""); err != nil {
		s.log.WithError(err).Error("add_transaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}

	if err := s.records.Create(ctx, record); err != nil {
		if repository.IsConstraintViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.log.WithError(err).Error("add_transaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}

	if s.notifier != nil {
		s.notifier.Notify()
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": record})
}

func (s *Server) toolAnalyzeTransactions(c *gin.Context, req toolRequest) {
	if s.ai == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI analysis is not configured"})
		return
	}

	records, err := s.records.List(c.Request.Context(), repository.ListFilter{OwnerID: &req.OwnerID})
	if err != nil {
		s.log.WithError(err).Error("analyze_transactions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{"analysis": "No records to analyze."})
		return
	}

	analysis, err := s.ai.Analyze(c.Request.Context(), summarizeRecords(records), req.Question)
	if err != nil {
		s.log.WithError(err).Error("analyze_transactions failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI backend error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func summarizeRecords(records []*models.Transaction) string {
	var b strings.Builder
	b.WriteString("Records:\n")
	for _, r := range records {
		endDate := "no end date"
		if r.EndDate != nil {
			endDate = "ends " + r.EndDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "- #%d %q, status %s, priority %s, %s\n",
			r.TransactionID, r.Title, r.Status, r.Priority, endDate)
	}
	return b.String()
}
