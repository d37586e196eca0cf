package events

import "time"

// PreviewUpdated fires after a session's debounced persist step.
type PreviewUpdated struct {
	SessionID  string
	TemplateID string
	Revision   uint64
}

// DraftSaved fires when a draft write succeeds or fails.
type DraftSaved struct {
	SessionID string
	Revision  uint64
	Err       error
}

// CreditsChanged fires after any balance change, replacing a page-wide
// refresh signal with a typed notification.
type CreditsChanged struct {
	UserID  string
	Balance int64
	At      time.Time
}

// ExportFinished fires when an export completes, fails or is superseded.
type ExportFinished struct {
	SessionID string
	Format    string
	Err       error
}

var (
	PreviewUpdatedTopic = NewTopic[PreviewUpdated]("preview_updated")
	DraftSavedTopic     = NewTopic[DraftSaved]("draft_saved")
	CreditsChangedTopic = NewTopic[CreditsChanged]("credits_changed")
	ExportFinishedTopic = NewTopic[ExportFinished]("export_finished")
)
