package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/store"
)

// exportState is guarded by Session.mu.
type exportState struct {
	seq      uint64
	cancel   context.CancelCauseFunc
	artifact *Artifact
}

// Artifact is the last finished export, held until the next one replaces it
// or the session ends.
type Artifact struct {
	*export.Artifact
	ID       string // opaque handle for the display URL
	Revision uint64 // document revision it was rendered from
}

// Export renders the current document. Only one export runs per session: a
// new call cancels the one in flight, which returns ErrExportSuperseded.
func (s *Session) Export(ctx context.Context, format export.Format) (*Artifact, error) {
	if s.deps.Exporter == nil {
		return nil, export.ErrUnsupported
	}

	s.mu.Lock()
	if s.export.cancel != nil {
		s.export.cancel(ErrExportSuperseded)
	}
	s.export.seq++
	seq := s.export.seq
	ctx, cancel := context.WithCancelCause(ctx)
	s.export.cancel = cancel
	doc := s.doc.Clone()
	rev := s.revision
	s.lastUsed = time.Now()
	s.mu.Unlock()

	art, err := s.deps.Exporter.Export(ctx, &doc, format)
	superseded := errors.Is(context.Cause(ctx), ErrExportSuperseded)
	cancel(nil)

	s.mu.Lock()
	if seq == s.export.seq {
		s.export.cancel = nil
	} else {
		superseded = true
	}
	if superseded {
		s.mu.Unlock()
		s.finished(format, ErrExportSuperseded)
		return nil, ErrExportSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("export failed", "format", format, "error", err)
		s.finished(format, err)
		return nil, err
	}

	held := &Artifact{Artifact: art, ID: uuid.NewString(), Revision: rev}
	s.export.artifact = held
	s.mu.Unlock()

	s.finished(format, nil)
	return held, nil
}

// GeneratePDF is Export with the PDF format.
func (s *Session) GeneratePDF(ctx context.Context) (*Artifact, error) {
	return s.Export(ctx, export.FormatPDF)
}

func (s *Session) finished(format export.Format, err error) {
	events.Publish(s.deps.Bus, events.ExportFinishedTopic, events.ExportFinished{
		SessionID: s.id,
		Format:    string(format),
		Err:       err,
	})
}

// Exporting reports whether an export is in flight.
func (s *Session) Exporting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export.cancel != nil
}

// Artifact returns the last finished export, or nil.
func (s *Session) Artifact() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export.artifact
}

// ArtifactByID returns the held artifact when id matches it.
func (s *Session) ArtifactByID(id string) *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.export.artifact == nil || s.export.artifact.ID != id {
		return nil
	}
	return s.export.artifact
}

func (s *Session) cancelExport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.export.cancel != nil {
		s.export.cancel(context.Canceled)
		s.export.cancel = nil
	}
	s.export.artifact = nil
}

// Download returns an artifact of the current document and charges for
// it. The held artifact is reused when it is current. Rendering happens
// before the charge, so a failed export costs nothing; a refused charge
// returns credits.ErrInsufficientCredits and no artifact.
func (s *Session) Download(ctx context.Context, format export.Format) (*Artifact, *store.CreditTransaction, error) {
	if s.deps.Credits != nil && s.opts.UserID == "" {
		return nil, nil, ErrAnonymous
	}

	s.mu.Lock()
	art := s.export.artifact
	current := art != nil && art.Revision == s.revision && art.Format == format
	s.mu.Unlock()

	if !current {
		var err error
		if art, err = s.Export(ctx, format); err != nil {
			return nil, nil, err
		}
	}

	if s.deps.Credits == nil {
		return art, nil, nil
	}
	txn, err := s.deps.Credits.Charge(ctx, s.opts.UserID, s.opts.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("receipt downloaded", "user_id", s.opts.UserID, "format", format, "kind", txn.Kind)
	return art, txn, nil
}
