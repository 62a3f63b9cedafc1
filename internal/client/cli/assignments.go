package cli

import (
	"context"
	"log"
	"os"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
)

// Assignments lists the current assignments through the cached service.
func (a *App) Assignments(ctx context.Context) error {
	list, err := a.assignments.List(ctx)
	if err != nil {
		log.Printf("error: %s", api.Normalize(err))
		return err
	}
	if len(list) == 0 {
		log.Printf("No assignments")
		return nil
	}
	for _, item := range list {
		due := "no deadline"
		if item.DueAt != nil {
			due = item.DueAt.Format("2006-01-02 15:04")
		}
		log.Printf("[%s] %s (max %d, due %s)", item.ID, item.Title, item.MaxScore, due)
	}
	return nil
}

// Submit prompts for an assignment id and submission text, submits it, and
// lets the service invalidate the stale cached reads.
func (a *App) Submit(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter assignment id", os.Stdout)
	if err != nil {
		return err
	}
	content, err := getSimpleText(a.reader, "Enter submission text", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.assignments.Submit(ctx, id, api.Submission{Content: content}); err != nil {
		log.Printf("Submission unsuccessful: %s", api.Normalize(err))
		return err
	}
	log.Printf("Submitted")
	return nil
}
