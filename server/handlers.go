package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/effect/wsgateway"
)

type perceptRequest struct {
	// Kind is "message" (default) or "interrupt".
	Kind     string         `json:"kind"`
	Text     string         `json:"text" binding:"required"`
	Role     string         `json:"role"`
	Data     map[string]any `json:"data"`
	Priority bool           `json:"priority"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.eng.Names()})
}

func (s *Server) clientConfig(c *gin.Context) {
	cfg, err := s.eng.ClientConfig(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) pushPercept(c *gin.Context) {
	var req perceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var kind core.PerceptKind
	switch req.Kind {
	case "", string(core.PerceptMessage):
		kind = core.PerceptMessage
	case string(core.PerceptInterrupt):
		kind = core.PerceptInterrupt
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported percept kind " + req.Kind})
		return
	}

	p := core.NewPercept(kind, req.Text)
	if req.Role != "" {
		p.Role = req.Role
	}
	p.Data = req.Data

	name := c.Param("name")
	push := s.eng.Push
	if req.Priority {
		push = s.eng.PushFirst
	}
	if err := push(name, p); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Debug("server.percept", "agent", name, "kind", kind, "priority", req.Priority)
	c.JSON(http.StatusAccepted, gin.H{"id": p.ID})
}

// rpc upgrades to the effect gateway of the named agent.
func (s *Server) rpc(c *gin.Context) {
	name := c.Param("name")
	if h, ok := s.gateways.Load(name); ok {
		h.(http.Handler).ServeHTTP(c.Writer, c.Request)
		return
	}

	host, err := s.eng.Host(name)
	if err != nil {
		s.fail(c, err)
		return
	}
	h, _ := s.gateways.LoadOrStore(name, wsgateway.Handler(host, func(o *wsgateway.HandlerOptions) {
		o.Logger = s.logger
	}))
	h.(http.Handler).ServeHTTP(c.Writer, c.Request)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindValidation:
		status = http.StatusBadRequest
	case core.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("server.error", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
