package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/receipt-studio/internal/editor"
)

func (s *Server) handleListTemplates(c *gin.Context) {
	respond(c, http.StatusOK, "", gin.H{"templates": s.deps.Catalog.List()})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	id := c.Param("id")
	tmpl, err := s.deps.Catalog.Get(id)
	if err != nil {
		fail(c, err)
		return
	}
	doc, err := s.deps.Catalog.Document(id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"template": tmpl, "document": doc})
}

func (s *Server) handlePalette(c *gin.Context) {
	respond(c, http.StatusOK, "", gin.H{"sections": editor.Palette(), "ops": editor.Ops()})
}
