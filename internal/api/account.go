package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/receipt-studio/internal/credits"
	"github.com/thereceipt/receipt-studio/pkg/apperror"
)

const maxWebhookBytes = 64 << 10

type savedView struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Name       string    `json:"name"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Server) handleListSaved(c *gin.Context) {
	if s.deps.Saved == nil {
		respond(c, http.StatusOK, "", gin.H{"receipts": []savedView{}})
		return
	}
	recs, err := s.deps.Saved.List(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]savedView, len(recs))
	for i, r := range recs {
		out[i] = savedView{ID: r.ID.String(), TemplateID: r.TemplateID, Name: r.Name, UpdatedAt: r.UpdatedAt}
	}
	respond(c, http.StatusOK, "", gin.H{"receipts": out})
}

func (s *Server) handleDeleteSaved(c *gin.Context) {
	if s.deps.Saved == nil {
		abort(c, apperror.NewNotFoundError("Saved receipt"))
		return
	}
	if err := s.deps.Saved.Delete(c.Request.Context(), c.GetString(ctxUserID), c.Param("template_id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBalance(c *gin.Context) {
	if s.deps.Credits == nil {
		respond(c, http.StatusOK, "", gin.H{"balance": 0, "download_cost": 0})
		return
	}
	acct, err := s.deps.Credits.Balance(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"balance":            acct.Balance,
		"subscribed":         acct.Subscribed(time.Now()),
		"subscription_until": acct.SubscriptionUntil,
		"download_cost":      s.deps.Credits.DownloadCost(),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.deps.Credits == nil {
		respond(c, http.StatusOK, "", gin.H{"transactions": []struct{}{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txns, err := s.deps.Credits.History(c.Request.Context(), c.GetString(ctxUserID), limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"transactions": txns})
}

func (s *Server) handlePaymentWebhook(c *gin.Context) {
	if s.deps.Credits == nil {
		abort(c, apperror.NewNotFoundError("Webhook"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		abort(c, apperror.NewBadRequestError("failed to read request body"))
		return
	}

	res, err := s.deps.Credits.HandleWebhook(c.Request.Context(), body, c.GetHeader(credits.SignatureHeader))
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "", gin.H{
		"event_id": res.Event.ID,
		"applied":  res.Applied,
		"balance":  res.Balance,
	})
}
