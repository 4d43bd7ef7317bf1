package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
)

// Add prompts for the affirmation text and a daily target and creates a
// new record.
func (a *App) Add(ctx context.Context, _ []string) error {
	text, err := GetMultiline(a.reader, "Enter affirmation text", a.out)
	if err != nil {
		return err
	}
	target, err := GetCount(a.reader, "Enter target count", 0, a.out)
	if err != nil {
		return err
	}
	r, err := a.recordService.Create(ctx, text, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", r.ID)
	return nil
}

// List prints one line per record. "list all" includes archived ones.
func (a *App) List(ctx context.Context, args []string) error {
	all := len(args) > 0 && args[0] == "all"
	records, err := a.recordService.List(ctx, all)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records")
		return nil
	}
	for _, r := range records {
		fmt.Fprintln(a.out, recordLine(r))
	}
	return nil
}

// Show prints every field of a single record.
func (a *App) Show(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Enter record id to show", a.out)
	if err != nil {
		return err
	}
	r, err := a.recordService.Get(ctx, id)
	if err != nil {
		return err
	}
	writeRecord(a.out, r)
	return nil
}

// Edit replaces the text of a record and, when given, its target count.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Enter record id to edit", a.out)
	if err != nil {
		return err
	}
	current, err := a.recordService.Get(ctx, id)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Enter new text", a.out)
	if err != nil {
		return err
	}
	if text == "" {
		text = current.Text
	}
	target, err := GetCount(a.reader, "Enter target count", current.TargetCount, a.out)
	if err != nil {
		return err
	}
	_, err = a.recordService.Edit(ctx, id, text, target)
	return err
}

func (a *App) Practice(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Enter record id to practice", a.out)
	if err != nil {
		return err
	}
	r, err := a.recordService.Practice(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Practiced %d/%d\n", r.RepeatCount, r.TargetCount)
	return nil
}

func (a *App) Archive(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Enter record id to archive", a.out)
	if err != nil {
		return err
	}
	_, err = a.recordService.Archive(ctx, id)
	return err
}

func (a *App) Restore(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Enter record id to restore", a.out)
	if err != nil {
		return err
	}
	_, err = a.recordService.Restore(ctx, id)
	return err
}

// Delete removes a record here and, on the next sync, everywhere else.
func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Enter record id to delete", a.out)
	if err != nil {
		return err
	}
	return a.recordService.Delete(ctx, id)
}

// Audio attaches an audio file from the local disk: "audio <id> <path>".
func (a *App) Audio(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Enter record id", a.out)
	if err != nil {
		return err
	}
	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}
	path, err := argOrPrompt(a.reader, rest, "Enter audio file path", a.out)
	if err != nil {
		return err
	}
	r, err := a.recordService.AttachAudio(ctx, id, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Audio saved to %s\n", r.AudioFileName)
	return nil
}

func recordLine(r *models.Record) string {
	var flags []string
	if r.IsArchived {
		flags = append(flags, "archived")
	}
	if r.AudioFileName != "" {
		flags = append(flags, "audio")
	}
	line := fmt.Sprintf("%s  %d/%d  %s", r.ID, r.RepeatCount, r.TargetCount, firstLine(r.Text))
	if len(flags) > 0 {
		line += "  [" + strings.Join(flags, ",") + "]"
	}
	return line
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "..."
	}
	return s
}

func writeRecord(w io.Writer, r *models.Record) {
	fmt.Fprintf(w, "ID: %s\n", r.ID)
	fmt.Fprintf(w, "Text: %s\n", r.Text)
	fmt.Fprintf(w, "Progress: %d/%d\n", r.RepeatCount, r.TargetCount)
	fmt.Fprintf(w, "Created: %s\n", r.DateCreated.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Updated: %s\n", r.UpdatedAt.Local().Format(time.DateTime))
	if r.LastPracticedAt != nil {
		fmt.Fprintf(w, "Last practiced: %s\n", r.LastPracticedAt.Local().Format(time.DateTime))
	}
	if r.IsArchived {
		fmt.Fprintln(w, "Archived: yes")
	}
	if r.AudioFileName != "" {
		fmt.Fprintf(w, "Audio: %s\n", r.AudioFileName)
	}
}
