// Package api exposes the read-only dashboard and the API-key-gated
// tool surface for external AI clients.
package api

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ivzakh/termkeeper/internal/ai"
	"github.com/ivzakh/termkeeper/internal/models"
	"github.com/ivzakh/termkeeper/internal/repository"
)

// Notifier wakes the dispatch loop after a write creates new
// notifications.
type Notifier interface {
	Notify()
}

type Server struct {
	engine   *gin.Engine
	users    *repository.UserRepository
	types    *repository.TransactionTypeRepository
	records  *repository.TransactionRepository
	ai       *ai.Client
	notifier Notifier
	apiKey   string
	log      *logrus.Logger
}

type Deps struct {
	Users    *repository.UserRepository
	Types    *repository.TransactionTypeRepository
	Records  *repository.TransactionRepository
	AI       *ai.Client
	Notifier Notifier
	APIKey   string
	Log      *logrus.Logger
}

func New(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		users:    deps.Users,
		types:    deps.Types,
		records:  deps.Records,
		ai:       deps.AI,
		notifier: deps.Notifier,
		apiKey:   deps.APIKey,
		log:      deps.Log,
	}

	s.engine.Use(gin.Recovery())
	s.engine.SetHTMLTemplate(template.Must(template.New("dashboard").Parse(dashboardHTML)))

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/", s.handleDashboard)

	tools := s.engine.Group("/api", s.apiKeyMiddleware())
	{
		tools.GET("/tools", s.handleListTools)
		tools.POST("/tools/:name", s.handleExecuteTool)
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(port int) error {
	return s.engine.Run(fmt.Sprintf(":%d", port))
}

func (s *Server) apiKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "tool API is not configured"})
			return
		}
		if c.GetHeader("X-API-Key") != s.apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDashboard(c *gin.Context) {
	stats, err := s.records.Statistics(c.Request.Context(), nil)
	if err != nil {
		s.log.WithError(err).Error("failed to load statistics")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	active := models.StatusActive
	records, err := s.records.List(c.Request.Context(), repository.ListFilter{Status: &active, Limit: 50})
	if err != nil {
		s.log.WithError(err).Error("failed to list records")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	c.HTML(http.StatusOK, "dashboard", gin.H{
		"Stats":   stats,
		"Records": records,
	})
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>TermKeeper</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #f4f4f4; }
.cards { display: flex; gap: 1em; margin-bottom: 2em; }
.card { border: 1px solid #ccc; border-radius: 6px; padding: 1em 1.5em; }
.card b { font-size: 1.6em; display: block; }
</style>
</head>
<body>
<h1>TermKeeper</h1>
<div class="cards">
  <div class="card"><b>{{.Stats.Total}}</b> records</div>
  <div class="card"><b>{{.Stats.DueWithinWeek}}</b> due within 7 days</div>
  <div class="card"><b>{{.Stats.PendingNotifications}}</b> pending reminders</div>
</div>
<h2>Upcoming records</h2>
<table>
<tr><th>ID</th><th>Title</th><th>Priority</th><th>Status</th><th>End date</th></tr>
{{range .Records}}
<tr>
  <td>{{.TransactionID}}</td>
  <td>{{.Title}}</td>
  <td>{{.Priority}}</td>
  <td>{{.Status}}</td>
  <td>{{if .EndDate}}{{.EndDate.Format "2006-01-02"}}{{else}}—{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>`
