// Package session owns the live receipt document of an editing session.
// Every mutation goes through a Session; drafts are written after edits
// settle and exports are single-flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/thereceipt/receipt-studio/internal/draft"
	"github.com/thereceipt/receipt-studio/internal/editor"
	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/printer"
	"github.com/thereceipt/receipt-studio/internal/sectionlist"
	"github.com/thereceipt/receipt-studio/internal/store"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// DefaultDebounce is the quiet period before a draft is written.
const DefaultDebounce = 500 * time.Millisecond

var (
	ErrSectionNotFound  = sectionlist.ErrNotFound
	ErrExportSuperseded = errors.New("export superseded by a newer request")
	ErrAnonymous        = errors.New("operation requires a signed-in user")
	ErrNoSavedStore     = errors.New("saving is not configured")
	ErrNoPrinter        = errors.New("no printer configured")
	ErrSaveFailed       = errors.New("failed to save receipt")
)

// Source tells where the live document was loaded from.
type Source string

const (
	SourceTemplate Source = "template"
	SourceDraft    Source = "draft"
	SourceSaved    Source = "saved"
)

// Templates supplies template seed documents.
type Templates interface {
	Document(id string) (*receiptformat.Document, error)
}

// Exporter renders documents into artifacts.
type Exporter interface {
	Export(ctx context.Context, doc *receiptformat.Document, format export.Format) (*export.Artifact, error)
}

// Charger takes payment for a download.
type Charger interface {
	Charge(ctx context.Context, userID, templateID string) (*store.CreditTransaction, error)
}

// Printer prints a rendered receipt image.
type Printer interface {
	Print(ctx context.Context, img image.Image) error
}

// Rasterizer draws a document for a print head.
type Rasterizer interface {
	Image(doc *receiptformat.Document) (image.Image, error)
}

// Deps are the collaborators a session uses. Drafts and Templates are
// required; the rest may be nil, disabling the features that need them.
type Deps struct {
	Templates  Templates
	Drafts     draft.Store
	Saved      store.ReceiptRepository
	Exporter   Exporter
	Credits    Charger
	Printer    Printer
	Rasterizer Rasterizer
	Bus        *events.Bus
	Logger     *slog.Logger
}

// Options identifies a session.
type Options struct {
	ID         string
	ClientID   string // browser or device instance; scopes drafts
	UserID     string // empty for anonymous sessions
	TemplateID string
	Debounce   time.Duration
}

// Session is the single owner of one live document.
type Session struct {
	id     string
	opts   Options
	key    draft.Key
	deps   Deps
	logger *slog.Logger

	mu        sync.Mutex
	doc       receiptformat.Document
	template  receiptformat.Document
	source    Source
	revision  uint64
	persisted uint64
	lastUsed  time.Time

	debounce *Debouncer

	export exportState
}

// Open starts a session for opts.TemplateID. A stored draft or saved copy
// replaces the template defaults; when both exist the newer one wins.
func Open(ctx context.Context, opts Options, deps Deps) (*Session, error) {
	if deps.Templates == nil || deps.Drafts == nil {
		return nil, errors.New("session requires templates and a draft store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	tmpl, err := deps.Templates.Document(opts.TemplateID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       opts.ID,
		opts:     opts,
		key:      draft.Key{ClientID: opts.ClientID, TemplateID: opts.TemplateID},
		deps:     deps,
		logger:   logger.With("session_id", opts.ID, "template_id", opts.TemplateID),
		template: tmpl.Clone(),
		doc:      tmpl.Clone(),
		source:   SourceTemplate,
		lastUsed: time.Now(),
	}
	s.debounce = NewDebouncer(opts.Debounce, s.persist)
	s.restore(ctx)

	return s, nil
}

// restore applies the draft or saved copy, whichever is newer.
func (s *Session) restore(ctx context.Context) {
	var (
		best   *receiptformat.Document
		bestAt time.Time
	)

	if entry, err := s.deps.Drafts.Load(ctx, s.key); err == nil {
		if doc, err := entry.Decode(); err == nil {
			best, bestAt, s.source = doc, entry.SavedAt, SourceDraft
			s.revision, s.persisted = entry.Revision, entry.Revision
		} else {
			// Drafts below the stored revision would be dropped as stale, so
			// carry its revision forward and clear the slot.
			s.logger.Warn("ignoring invalid draft", "revision", entry.Revision, "error", err)
			s.revision, s.persisted = entry.Revision, entry.Revision
			if err := s.deps.Drafts.Delete(ctx, s.key); err != nil {
				s.logger.Warn("failed to delete invalid draft", "error", err)
			}
		}
	} else if !errors.Is(err, draft.ErrNotFound) {
		s.logger.Warn("failed to load draft", "error", err)
	}

	if s.deps.Saved != nil && s.opts.UserID != "" {
		rec, err := s.deps.Saved.Get(ctx, s.opts.UserID, s.opts.TemplateID)
		switch {
		case err == nil:
			doc, perr := receiptformat.Parse(rec.Document)
			if perr != nil {
				s.logger.Warn("ignoring invalid saved receipt", "error", perr)
			} else if best == nil || !rec.UpdatedAt.Before(bestAt) {
				best, s.source = doc, SourceSaved
			}
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("failed to load saved receipt", "error", err)
		}
	}

	if best != nil {
		best.TemplateID = s.opts.TemplateID
		s.doc = *best
	}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) UserID() string     { return s.opts.UserID }
func (s *Session) TemplateID() string { return s.opts.TemplateID }

// Source reports where the document was loaded from.
func (s *Session) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Document returns a copy of the live document.
func (s *Session) Document() receiptformat.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Revision increases by one with every applied mutation.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// LastUsed is when the session was last read or changed.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// mutate applies fn to a copy of the document and commits it only if the
// result validates. On error the live document is unchanged.
func (s *Session) mutate(fn func(doc *receiptformat.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := receiptformat.Validate(&next); err != nil {
		return err
	}

	s.doc = next
	s.revision++
	s.lastUsed = time.Now()
	s.debounce.Trigger()
	return nil
}

// UpdateSettings changes the document settings named by p.
func (s *Session) UpdateSettings(p editor.SettingsPatch) error {
	return s.mutate(func(doc *receiptformat.Document) error {
		doc.Settings = p.Apply(doc.Settings)
		return nil
	})
}

// Rename sets the document name.
func (s *Session) Rename(name string) error {
	return s.mutate(func(doc *receiptformat.Document) error {
		doc.Name = name
		return nil
	})
}

// UpdateSection applies p to the section with id. Other sections are
// untouched.
func (s *Session) UpdateSection(id string, p editor.Patch) error {
	return s.mutate(func(doc *receiptformat.Document) error {
		i := doc.FindSection(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSectionNotFound, id)
		}
		body, err := p.Apply(doc.Sections[i].Body)
		if err != nil {
			return err
		}
		doc.Sections[i].Body = body
		return nil
	})
}

// AddSection inserts a default section of type t after afterID, or at the
// end when afterID is empty.
func (s *Session) AddSection(t receiptformat.SectionType, afterID string) (receiptformat.Section, error) {
	if _, err := receiptformat.ParseSectionType(string(t)); err != nil {
		return receiptformat.Section{}, err
	}

	sec := receiptformat.NewSection(t)
	err := s.mutate(func(doc *receiptformat.Document) error {
		sections, err := sectionlist.InsertAfter(doc.Sections, afterID, sec)
		if err != nil {
			return err
		}
		doc.Sections = sections
		return nil
	})
	if err != nil {
		return receiptformat.Section{}, err
	}
	return sec.Clone(), nil
}

func (s *Session) RemoveSection(id string) error {
	return s.mutate(func(doc *receiptformat.Document) error {
		sections, err := sectionlist.RemoveSection(doc.Sections, id)
		if err != nil {
			return err
		}
		doc.Sections = sections
		return nil
	})
}

// DuplicateSection copies the section with id into a new section placed
// right after it.
func (s *Session) DuplicateSection(id string) (receiptformat.Section, error) {
	var dup receiptformat.Section
	err := s.mutate(func(doc *receiptformat.Document) error {
		sections, d, err := sectionlist.Duplicate(doc.Sections, id)
		if err != nil {
			return err
		}
		doc.Sections, dup = sections, d
		return nil
	})
	if err != nil {
		return receiptformat.Section{}, err
	}
	return dup.Clone(), nil
}

func (s *Session) ReorderSections(from, to int) error {
	return s.mutate(func(doc *receiptformat.Document) error {
		sections, err := sectionlist.Reorder(doc.Sections, from, to)
		if err != nil {
			return err
		}
		doc.Sections = sections
		return nil
	})
}

// ResetToTemplate replaces every edit with the template defaults. Saved
// copies are not touched; the draft is overwritten once the change settles.
func (s *Session) ResetToTemplate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = s.template.Clone()
	s.source = SourceTemplate
	s.revision++
	s.lastUsed = time.Now()
	s.debounce.Trigger()
}

// ExportJSON returns the canonical serialized document.
func (s *Session) ExportJSON() ([]byte, error) {
	doc := s.Document()
	return doc.ToJSON()
}

// ImportJSON replaces the document with data after full validation. Invalid
// input leaves the live document unchanged.
func (s *Session) ImportJSON(data []byte) error {
	doc, err := receiptformat.Parse(data)
	if err != nil {
		return err
	}
	doc.TemplateID = s.opts.TemplateID

	return s.mutate(func(cur *receiptformat.Document) error {
		*cur = *doc
		return nil
	})
}

// persist writes the current document as the draft. Failures are retried
// by the next mutation.
func (s *Session) persist() {
	s.mu.Lock()
	doc := s.doc.Clone()
	rev := s.revision
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.deps.Drafts.Save(ctx, s.key, &doc, rev)
	events.Publish(s.deps.Bus, events.DraftSavedTopic, events.DraftSaved{SessionID: s.id, Revision: rev, Err: err})
	if err != nil {
		s.logger.Warn("draft save failed", "revision", rev, "error", err)
		return
	}

	s.mu.Lock()
	if rev > s.persisted {
		s.persisted = rev
	}
	s.mu.Unlock()

	events.Publish(s.deps.Bus, events.PreviewUpdatedTopic, events.PreviewUpdated{
		SessionID:  s.id,
		TemplateID: s.opts.TemplateID,
		Revision:   rev,
	})
}

// Flush writes a pending draft immediately. A document that is still dirty
// with nothing scheduled, after an earlier failed write, is written too.
func (s *Session) Flush() {
	if !s.debounce.Flush() && s.Dirty() {
		s.persist()
	}
}

// Dirty reports whether edits have not reached the draft store yet.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision != s.persisted
}

// Save writes the document to the user's saved receipts, replacing any
// earlier save for the same template, and rewrites the draft to match.
// A failed save leaves the live document intact.
func (s *Session) Save(ctx context.Context) (*store.SavedReceipt, error) {
	if s.deps.Saved == nil {
		return nil, ErrNoSavedStore
	}
	if s.opts.UserID == "" {
		return nil, ErrAnonymous
	}

	s.mu.Lock()
	doc := s.doc.Clone()
	rev := s.revision
	s.mu.Unlock()

	data, err := doc.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	rec := &store.SavedReceipt{
		UserID:     s.opts.UserID,
		TemplateID: s.opts.TemplateID,
		Name:       doc.Name,
		Document:   data,
	}
	if err := s.deps.Saved.Upsert(ctx, rec); err != nil {
		s.logger.Error("save failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if err := s.deps.Drafts.Save(ctx, s.key, &doc, rev); err != nil {
		s.logger.Warn("draft rewrite after save failed", "error", err)
		s.debounce.Trigger()
	} else {
		s.mu.Lock()
		if rev > s.persisted {
			s.persisted = rev
		}
		// Edits made during the upsert keep their pending write.
		if s.revision == rev {
			s.debounce.Stop()
		}
		s.mu.Unlock()
	}

	s.logger.Info("receipt saved", "user_id", s.opts.UserID, "revision", rev)
	return rec, nil
}

// Print renders the document and sends it to the configured printer.
func (s *Session) Print(ctx context.Context) error {
	if s.deps.Printer == nil || s.deps.Rasterizer == nil {
		return ErrNoPrinter
	}
	s.touch()

	doc := s.Document()
	img, err := s.deps.Rasterizer.Image(&doc)
	if err != nil {
		return fmt.Errorf("failed to render for printing: %w", err)
	}
	return s.deps.Printer.Print(ctx, img)
}

// PrintJobs returns the printer's recent jobs, oldest first. A printer
// that keeps no history yields none.
func (s *Session) PrintJobs() ([]printer.Job, error) {
	if s.deps.Printer == nil {
		return nil, ErrNoPrinter
	}
	if h, ok := s.deps.Printer.(interface{ Jobs() []printer.Job }); ok {
		return h.Jobs(), nil
	}
	return nil, nil
}

// Close stops background work and writes any pending draft.
func (s *Session) Close() {
	s.cancelExport()
	s.Flush()
}
