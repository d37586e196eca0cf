package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/thereceipt/receipt-studio/internal/auth"
	"github.com/thereceipt/receipt-studio/internal/catalog"
	"github.com/thereceipt/receipt-studio/internal/credits"
	"github.com/thereceipt/receipt-studio/internal/editor"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/printer"
	"github.com/thereceipt/receipt-studio/internal/sectionlist"
	"github.com/thereceipt/receipt-studio/internal/session"
	"github.com/thereceipt/receipt-studio/internal/store"
	"github.com/thereceipt/receipt-studio/pkg/apperror"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// toAppError maps domain errors to the typed errors clients see.
func toAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ve *receiptformat.ValidationError
	switch {
	case errors.As(err, &ve):
		field := ve.Field
		if ve.Index >= 0 {
			field = fmt.Sprintf("sections[%d].%s", ve.Index, ve.Field)
		}
		return apperror.NewValidationError([]apperror.FieldError{{Field: field, Message: ve.Reason}})
	case errors.Is(err, receiptformat.ErrInvalidDocument):
		return apperror.NewValidationError([]apperror.FieldError{{Field: "document", Message: err.Error()}})

	case errors.Is(err, credits.ErrInsufficientCredits):
		return apperror.ErrInsufficientCredits
	case errors.Is(err, session.ErrExportSuperseded):
		return apperror.ErrExportSuperseded
	case errors.Is(err, export.ErrUnsupported):
		return apperror.NewBadRequestError(err.Error())
	case errors.Is(err, export.ErrExportFailed):
		return apperror.NewExportError("Export failed, please try again")

	case errors.Is(err, printer.ErrPrintFailed), errors.Is(err, printer.ErrQueueStopped):
		return apperror.NewPrinterError("The printer did not accept the job")

	case errors.Is(err, session.ErrSessionNotFound):
		return apperror.NewNotFoundError("Session")
	case errors.Is(err, sectionlist.ErrNotFound):
		return apperror.NewNotFoundError("Section")
	case errors.Is(err, catalog.ErrNotFound):
		return apperror.NewNotFoundError("Template")
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFoundError("Saved receipt")

	case errors.Is(err, session.ErrSaveFailed):
		return apperror.NewStorageError("Could not save the receipt; your edits are kept")
	case errors.Is(err, session.ErrAnonymous), errors.Is(err, credits.ErrInvalidSignature):
		return apperror.ErrUnauthorized
	case errors.Is(err, auth.ErrInvalidToken):
		return apperror.ErrInvalidToken

	case errors.Is(err, editor.ErrWrongSection),
		errors.Is(err, editor.ErrUnknownOp),
		errors.Is(err, receiptformat.ErrUnknownSectionType),
		errors.Is(err, sectionlist.ErrOutOfRange),
		errors.Is(err, sectionlist.ErrLastSection),
		errors.Is(err, credits.ErrUnknownEvent),
		errors.Is(err, credits.ErrInvalidPayload),
		errors.Is(err, credits.ErrInvalidAmount),
		errors.Is(err, session.ErrNoPrinter),
		errors.Is(err, session.ErrNoSavedStore):
		return apperror.NewBadRequestError(err.Error())
	}

	return &apperror.AppError{
		Code:    http.StatusInternalServerError,
		Kind:    apperror.KindInternal,
		Message: "Internal server error",
	}
}
