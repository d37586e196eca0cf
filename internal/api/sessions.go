package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/receipt-studio/internal/command"
	"github.com/thereceipt/receipt-studio/internal/editor"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/renderer"
	"github.com/thereceipt/receipt-studio/internal/session"
	"github.com/thereceipt/receipt-studio/pkg/apperror"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

const maxDocumentBytes = 4 << 20

type sessionView struct {
	ID         string                  `json:"id"`
	TemplateID string                  `json:"template_id"`
	Source     session.Source          `json:"source"`
	Revision   uint64                  `json:"revision"`
	Dirty      bool                    `json:"dirty"`
	Exporting  bool                    `json:"exporting"`
	Document   *receiptformat.Document `json:"document,omitempty"`
}

func viewOf(s *session.Session, withDoc bool) sessionView {
	v := sessionView{
		ID:         s.ID(),
		TemplateID: s.TemplateID(),
		Source:     s.Source(),
		Revision:   s.Revision(),
		Dirty:      s.Dirty(),
		Exporting:  s.Exporting(),
	}
	if withDoc {
		doc := s.Document()
		v.Document = &doc
	}
	return v
}

type artifactView struct {
	ID       string        `json:"id"`
	Format   export.Format `json:"format"`
	Bytes    int           `json:"bytes"`
	WidthMM  float64       `json:"width_mm"`
	HeightMM float64       `json:"height_mm"`
	Pages    int           `json:"pages"`
	Revision uint64        `json:"revision"`
}

func artifactOf(a *session.Artifact) artifactView {
	return artifactView{
		ID:       a.ID,
		Format:   a.Format,
		Bytes:    len(a.Data),
		WidthMM:  a.WidthMM,
		HeightMM: a.HeightMM,
		Pages:    a.Pages,
		Revision: a.Revision,
	}
}

// session loads the session named in the path. Sessions owned by a user
// are invisible to everyone else.
func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if owner := sess.UserID(); owner != "" && owner != c.GetString(ctxUserID) {
		fail(c, session.ErrSessionNotFound)
		return nil, false
	}
	return sess, true
}

func clientID(c *gin.Context) string {
	if id := c.GetHeader(headerClientID); id != "" {
		return id
	}
	if id := c.Query("client_id"); id != "" {
		return id
	}
	if id := c.GetString(ctxUserID); id != "" {
		return id
	}
	return c.ClientIP()
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abort(c, apperror.NewBadRequestError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) handleOpenSession(c *gin.Context) {
	var req struct {
		TemplateID string `json:"template_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sess, err := s.deps.Sessions.Open(c.Request.Context(), session.Options{
		ClientID:   clientID(c),
		UserID:     c.GetString(ctxUserID),
		TemplateID: req.TemplateID,
	})
	if err != nil {
		fail(c, err)
		return
	}

	created(c, "Session opened", viewOf(sess, true))
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "", viewOf(sess, true))
}

func (s *Server) handleCloseSession(c *gin.Context) {
	if _, ok := s.session(c); !ok {
		return
	}
	if err := s.deps.Sessions.Close(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mutated answers every successful edit with the new revision and document.
func mutated(c *gin.Context, sess *session.Session) {
	respond(c, http.StatusOK, "", viewOf(sess, true))
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var patch editor.SettingsPatch
	if !bindJSON(c, &patch) {
		return
	}
	if err := sess.UpdateSettings(patch); err != nil {
		fail(c, err)
		return
	}
	mutated(c, sess)
}

func (s *Server) handleRename(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := sess.Rename(req.Name); err != nil {
		fail(c, err)
		return
	}
	mutated(c, sess)
}

func (s *Server) handleAddSection(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req struct {
		Type  receiptformat.SectionType `json:"type" binding:"required"`
		After string                    `json:"after"`
	}
	if !bindJSON(c, &req) {
		return
	}
	sec, err := sess.AddSection(req.Type, req.After)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, "Section added", gin.H{"section": sec, "session": viewOf(sess, true)})
}

func (s *Server) handleUpdateSection(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes))
	if err != nil {
		abort(c, apperror.NewBadRequestError("failed to read request body"))
		return
	}
	patch, err := editor.Decode(body)
	if err != nil {
		fail(c, err)
		return
	}
	if err := sess.UpdateSection(c.Param("sid"), patch); err != nil {
		fail(c, err)
		return
	}
	mutated(c, sess)
}

func (s *Server) handleRemoveSection(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.RemoveSection(c.Param("sid")); err != nil {
		fail(c, err)
		return
	}
	mutated(c, sess)
}

func (s *Server) handleDuplicateSection(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sec, err := sess.DuplicateSection(c.Param("sid"))
	if err != nil {
		fail(c, err)
		return
	}
	created(c, "Section duplicated", gin.H{"section": sec, "session": viewOf(sess, true)})
}

func (s *Server) handleReorderSections(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req struct {
		From *int `json:"from" binding:"required"`
		To   *int `json:"to" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := sess.ReorderSections(*req.From, *req.To); err != nil {
		fail(c, err)
		return
	}
	mutated(c, sess)
}

func (s *Server) handleReset(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.ResetToTemplate()
	mutated(c, sess)
}

func (s *Server) handleExportJSON(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	data, err := sess.ExportJSON()
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, sess.TemplateID()))
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) handleImportJSON(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes))
	if err != nil {
		abort(c, apperror.NewBadRequestError("failed to read request body"))
		return
	}
	if err := sess.ImportJSON(data); err != nil {
		fail(c, err)
		return
	}
	mutated(c, sess)
}

func (s *Server) handlePreview(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	doc := sess.Document()
	tree, err := renderer.Build(&doc)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("X-Revision", strconv.FormatUint(sess.Revision(), 10))
	switch c.DefaultQuery("format", "html") {
	case "text":
		c.String(http.StatusOK, renderer.Plain(tree, 0))
	case "html":
		page, err := renderer.HTML(tree, doc.Name)
		if err != nil {
			fail(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	default:
		abort(c, apperror.NewBadRequestError("format must be html or text"))
	}
}

func (s *Server) handleExport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		abort(c, apperror.NewBadRequestError(err.Error()))
		return
	}
	art, err := sess.Export(c.Request.Context(), format)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, "Export ready", artifactOf(art))
}

func (s *Server) handleGetArtifact(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	art := sess.ArtifactByID(c.Param("aid"))
	if art == nil {
		abort(c, apperror.NewNotFoundError("Artifact"))
		return
	}
	respond(c, http.StatusOK, "", artifactOf(art))
}

// handleDownload charges for and returns the export bytes.
func (s *Server) handleDownload(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		abort(c, apperror.NewBadRequestError(err.Error()))
		return
	}

	art, txn, err := sess.Download(c.Request.Context(), format)
	if err != nil {
		fail(c, err)
		return
	}

	if txn != nil {
		c.Header("X-Credits-Balance", strconv.FormatInt(txn.BalanceAfter, 10))
		c.Header("X-Transaction-ID", txn.ID.String())
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, sess.TemplateID(), art.Format))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

func (s *Server) handleSave(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	rec, err := sess.Save(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Receipt saved", savedView{
		ID:         rec.ID.String(),
		TemplateID: rec.TemplateID,
		Name:       rec.Name,
		UpdatedAt:  rec.UpdatedAt,
	})
}

func (s *Server) handlePrint(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.Print(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, "Sent to printer", nil)
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	result := command.NewExecutor(sess).Execute(c.Request.Context(), req.Command)
	if !result.Success {
		if result.Err != nil {
			appErr := toAppError(result.Err)
			if appErr.Code != http.StatusInternalServerError {
				c.JSON(appErr.Code, result)
				return
			}
		}
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
