package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/thereceipt/receipt-studio/internal/editor"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/renderer"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// handleShow lists the sections and a text preview
// Usage: show
func (e *Executor) handleShow(args []string) *Result {
	doc := e.sess.Document()

	sections := make([]map[string]interface{}, len(doc.Sections))
	for i, sec := range doc.Sections {
		d := editor.Describe(sec.Body)
		sections[i] = map[string]interface{}{
			"index": i,
			"id":    sec.ID,
			"type":  sec.Type(),
			"label": d.Label,
		}
	}

	tree, err := renderer.Build(&doc)
	if err != nil {
		return fail(err)
	}

	return &Result{
		Success: true,
		Message: renderer.Plain(tree, 0),
		Data: map[string]interface{}{
			"name":     doc.Name,
			"revision": e.sess.Revision(),
			"sections": sections,
		},
	}
}

// handleAdd adds a default section
// Usage: add <type> [after]
func (e *Executor) handleAdd(args []string) *Result {
	if len(args) < 1 {
		return usage("add <type> [after]")
	}

	after := ""
	if len(args) >= 2 {
		id, err := e.resolve(args[1])
		if err != nil {
			return fail(err)
		}
		after = id
	}

	sec, err := e.sess.AddSection(receiptformat.SectionType(args[0]), after)
	if err != nil {
		return fail(err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Added %s section %s", sec.Type(), sec.ID),
		Data:    map[string]interface{}{"id": sec.ID},
	}
}

// handleRemove deletes a section
// Usage: remove <section>
func (e *Executor) handleRemove(args []string) *Result {
	if len(args) < 1 {
		return usage("remove <section>")
	}
	id, err := e.resolve(args[0])
	if err != nil {
		return fail(err)
	}
	if err := e.sess.RemoveSection(id); err != nil {
		return fail(err)
	}
	return &Result{Success: true, Message: fmt.Sprintf("Removed section %s", id)}
}

// handleDuplicate copies a section
// Usage: dup <section>
func (e *Executor) handleDuplicate(args []string) *Result {
	if len(args) < 1 {
		return usage("dup <section>")
	}
	id, err := e.resolve(args[0])
	if err != nil {
		return fail(err)
	}
	sec, err := e.sess.DuplicateSection(id)
	if err != nil {
		return fail(err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Duplicated %s as %s", id, sec.ID),
		Data:    map[string]interface{}{"id": sec.ID},
	}
}

// handleMove reorders sections by index
// Usage: move <from> <to>
func (e *Executor) handleMove(args []string) *Result {
	if len(args) < 2 {
		return usage("move <from> <to>")
	}
	from, err := strconv.Atoi(args[0])
	if err != nil {
		return fail(fmt.Errorf("invalid index: %s", args[0]))
	}
	to, err := strconv.Atoi(args[1])
	if err != nil {
		return fail(fmt.Errorf("invalid index: %s", args[1]))
	}
	if err := e.sess.ReorderSections(from, to); err != nil {
		return fail(err)
	}
	return &Result{Success: true, Message: fmt.Sprintf("Moved section %d to %d", from, to)}
}

// handleSet applies an editor operation to a section
// Usage: set <section> <op> [key=value ...]
func (e *Executor) handleSet(args []string) *Result {
	if len(args) < 2 {
		return usage("set <section> <op> [key=value ...]")
	}
	id, err := e.resolve(args[0])
	if err != nil {
		return fail(err)
	}

	fields, err := parseFields(args[2:])
	if err != nil {
		return fail(err)
	}
	fields["op"], _ = json.Marshal(args[1])

	data, _ := json.Marshal(fields)
	patch, err := editor.Decode(data)
	if err != nil {
		return fail(err)
	}
	if err := e.sess.UpdateSection(id, patch); err != nil {
		return fail(err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Applied %s to %s", args[1], id),
		Data:    map[string]interface{}{"revision": e.sess.Revision()},
	}
}

// handleSettings changes document settings
// Usage: settings key=value ...
func (e *Executor) handleSettings(args []string) *Result {
	if len(args) == 0 {
		doc := e.sess.Document()
		return &Result{
			Success: true,
			Data:    map[string]interface{}{"settings": doc.Settings},
		}
	}

	fields, err := parseFields(args)
	if err != nil {
		return fail(err)
	}
	data, _ := json.Marshal(fields)

	var patch editor.SettingsPatch
	if err := json.Unmarshal(data, &patch); err != nil {
		return fail(fmt.Errorf("invalid settings: %w", err))
	}
	if err := e.sess.UpdateSettings(patch); err != nil {
		return fail(err)
	}

	doc := e.sess.Document()
	return &Result{
		Success: true,
		Message: "Settings updated",
		Data:    map[string]interface{}{"settings": doc.Settings},
	}
}

// handleRename sets the document name
// Usage: rename <name>
func (e *Executor) handleRename(args []string) *Result {
	if len(args) < 1 {
		return usage("rename <name>")
	}
	name := strings.Join(args, " ")
	if err := e.sess.Rename(name); err != nil {
		return fail(err)
	}
	return &Result{Success: true, Message: fmt.Sprintf("Renamed to %q", name)}
}

// handleReset restores the template
// Usage: reset
func (e *Executor) handleReset(args []string) *Result {
	e.sess.ResetToTemplate()
	return &Result{Success: true, Message: "Reset to template " + e.sess.TemplateID()}
}

// handleExport exports the document
// Usage: export [json|pdf|png]
func (e *Executor) handleExport(ctx context.Context, args []string) *Result {
	kind := "json"
	if len(args) > 0 {
		kind = strings.ToLower(args[0])
	}

	if kind == "json" {
		data, err := e.sess.ExportJSON()
		if err != nil {
			return fail(err)
		}
		return &Result{
			Success: true,
			Message: string(data),
			Data:    map[string]interface{}{"document": json.RawMessage(data)},
		}
	}

	format, err := export.ParseFormat(kind)
	if err != nil {
		return fail(err)
	}
	art, err := e.sess.Export(ctx, format)
	if err != nil {
		return fail(err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Exported %s (%d bytes, %.1f x %.1f mm)", art.Format, len(art.Data), art.WidthMM, art.HeightMM),
		Data: map[string]interface{}{
			"artifact_id": art.ID,
			"format":      art.Format,
			"bytes":       len(art.Data),
			"width_mm":    art.WidthMM,
			"height_mm":   art.HeightMM,
			"pages":       art.Pages,
		},
	}
}

// handleSave stores the document in the user's saved receipts
// Usage: save
func (e *Executor) handleSave(ctx context.Context, args []string) *Result {
	rec, err := e.sess.Save(ctx)
	if err != nil {
		return fail(err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Saved %q", rec.Name),
		Data:    map[string]interface{}{"id": rec.ID.String()},
	}
}

// handlePrint sends the document to the configured printer
// Usage: print
func (e *Executor) handlePrint(ctx context.Context, args []string) *Result {
	if err := e.sess.Print(ctx); err != nil {
		return fail(err)
	}
	return &Result{Success: true, Message: "Sent to printer"}
}

// handleJobs lists recent print jobs
func (e *Executor) handleJobs(args []string) *Result {
	jobs, err := e.sess.PrintJobs()
	if err != nil {
		return fail(err)
	}
	if len(jobs) == 0 {
		return &Result{Success: true, Message: "No print jobs"}
	}

	var b strings.Builder
	list := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		fmt.Fprintf(&b, "%s  %-9s  attempts=%d  %s", job.CreatedAt.Format("15:04:05"), job.Status, job.Attempts, job.ID)
		entry := map[string]interface{}{
			"id":       job.ID,
			"status":   string(job.Status),
			"attempts": job.Attempts,
			"bytes":    job.Bytes,
		}
		if job.Err != nil {
			fmt.Fprintf(&b, "  (%v)", job.Err)
			entry["error"] = job.Err.Error()
		}
		b.WriteString("\n")
		list[i] = entry
	}

	return &Result{
		Success: true,
		Message: strings.TrimSuffix(b.String(), "\n"),
		Data:    map[string]interface{}{"jobs": list},
	}
}

// handleHelp shows help information
func (e *Executor) handleHelp(args []string) *Result {
	types := make([]string, len(receiptformat.SectionTypes))
	for i, t := range receiptformat.SectionTypes {
		types[i] = string(t)
	}

	helpText := `Available commands:

  show                                  List sections and preview the receipt
  add <type> [after]                    Add a section (types: ` + strings.Join(types, ", ") + `)
  remove <section>                      Remove a section
  dup <section>                         Duplicate a section
  move <from> <to>                      Move a section by index
  set <section> <op> [key=value ...]    Edit a section (ops: ` + strings.Join(editor.Ops(), ", ") + `)
  settings [key=value ...]              Show or change settings
  rename <name>                         Rename the receipt
  reset                                 Restore the template
  export [json|pdf|png]                 Export the receipt
  save                                  Save to your receipts
  print                                 Send to the configured printer
  jobs                                  List recent print jobs
  help                                  Show this help

Sections may be named by id or index. Values that look like numbers or
booleans are sent as such; everything else is a string.

Examples:
  set 3 update_item index=0 quantity=2 name=Soda price=1.50
  set 3 update_total_line match=Tax value=0.24
  settings paper_size=58mm currency=€`

	return &Result{
		Success: true,
		Message: helpText,
	}
}

// resolve maps a section index or id to an id.
func (e *Executor) resolve(ref string) (string, error) {
	doc := e.sess.Document()
	if i, err := strconv.Atoi(ref); err == nil {
		if i < 0 || i >= len(doc.Sections) {
			return "", fmt.Errorf("section index out of range: %d", i)
		}
		return doc.Sections[i].ID, nil
	}
	if doc.FindSection(ref) < 0 {
		return "", fmt.Errorf("section not found: %s", ref)
	}
	return ref, nil
}

// parseFields turns key=value arguments into JSON object fields.
func parseFields(args []string) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		fields[key] = jsonValue(value)
	}
	return fields, nil
}

func jsonValue(s string) json.RawMessage {
	switch s {
	case "true", "false", "null":
		return json.RawMessage(s)
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}
