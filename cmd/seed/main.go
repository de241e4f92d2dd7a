package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"concept-review-be/internal/bootstrap"
	"concept-review-be/internal/config"
	"concept-review-be/internal/entity"

	"github.com/fatih/color"
)

func main() {
	key := flag.String("key", "B000TEST01", "work item key (ASIN)")
	title := flag.String("title", "Stainless steel water bottle", "product title")
	image := flag.String("image", "/static/test/original.png", "original product image URL")
	prompt := flag.String("prompt", "Minimal studio shot, soft shadows", "generation prompt")
	count := flag.Int("concepts", 4, "number of concept images")
	flag.Parse()

	cfg := config.Load()
	store, cleanup, err := bootstrap.NewToolStore(cfg)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer cleanup()

	ctx := context.Background()

	color.Cyan("🌱 Seeding work item %s", *key)

	existing, err := store.GetWorkItem(ctx, *key)
	switch {
	case err != nil:
		color.Red("Failed to read work item: %v", err)
		return
	case existing != nil:
		color.Yellow("Work item %s already exists, replacing its concepts", *key)
	default:
		item := &entity.WorkItem{
			Key:              *key,
			Title:            *title,
			OriginalImageURL: *image,
			Prompt:           *prompt,
			Status:           entity.ProcessingCompleted,
			Metadata:         map[string]interface{}{"source": "seed"},
		}
		if err := store.CreateWorkItem(ctx, item); err != nil {
			color.Red("Failed to create work item: %v", err)
			return
		}
		color.Green("Created work item %s", *key)
	}

	urls := make([]string, *count)
	for i := range urls {
		urls[i] = fmt.Sprintf("/static/test/concept-%d.png", i+1)
	}
	concepts, err := store.ReplaceConcepts(ctx, *key, urls)
	if err != nil {
		color.Red("Failed to create concepts: %v", err)
		return
	}
	for _, c := range concepts {
		color.Green("  concept %s  %s", c.Id, c.ImageURL)
	}

	if err := store.SetReady(ctx, *key, true); err != nil {
		color.Red("Failed to mark ready: %v", err)
		return
	}
	color.Cyan("✅ Work item %s is ready for review", *key)
}
