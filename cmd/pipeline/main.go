// Command pipeline plays the external generation pipeline against a work
// item: it flips the ready and regenerating flags, replaces concepts and
// files repair requests, so a running review session can be driven by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"concept-review-be/internal/bootstrap"
	"concept-review-be/internal/config"
	"concept-review-be/internal/service"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

const usage = `usage: pipeline <command> [flags]

commands:
  ready       -key K [-value=false]   set the ready flag
  regenerate  -key K [-count N] [-delay D]
              start regeneration, replace the concepts, finish regeneration
  replace     -key K -urls a,b,c      replace the active concepts
  repair      -concept ID             request repair of one concept
  status      -key K                  print the work item and its concepts
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}

	cfg := config.Load()
	store, cleanup, err := bootstrap.NewToolStore(cfg)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]
	if err := run(ctx, store, cmd, args); err != nil {
		color.Red("❌ %s failed: %v", cmd, err)
		cleanup()
		os.Exit(1)
	}
}

func run(ctx context.Context, store service.IReviewStoreService, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	key := fs.String("key", "", "work item key")

	switch cmd {
	case "ready":
		value := fs.Bool("value", true, "ready flag value")
		fs.Parse(args)
		if err := store.SetReady(ctx, *key, *value); err != nil {
			return err
		}
		color.Green("✅ %s ready=%v", *key, *value)

	case "regenerate":
		count := fs.Int("count", 4, "number of new concepts")
		delay := fs.Duration("delay", 3*time.Second, "time spent regenerating")
		fs.Parse(args)

		if err := store.SetRegenerating(ctx, *key, true); err != nil {
			return err
		}
		color.Yellow("⏳ %s regenerating for %s", *key, *delay)
		time.Sleep(*delay)

		urls := make([]string, *count)
		batch := time.Now().Unix()
		for i := range urls {
			urls[i] = fmt.Sprintf("/static/generated/%s-%d-%d.png", *key, batch, i+1)
		}
		concepts, err := store.ReplaceConcepts(ctx, *key, urls)
		if err != nil {
			return err
		}
		if err := store.SetRegenerating(ctx, *key, false); err != nil {
			return err
		}
		color.Green("✅ %s regenerated %d concepts", *key, len(concepts))

	case "replace":
		urls := fs.String("urls", "", "comma separated image URLs")
		fs.Parse(args)
		list := strings.Split(*urls, ",")
		concepts, err := store.ReplaceConcepts(ctx, *key, list)
		if err != nil {
			return err
		}
		for _, c := range concepts {
			color.Green("  concept %s  %s", c.Id, c.ImageURL)
		}

	case "repair":
		concept := fs.String("concept", "", "concept id")
		fs.Parse(args)
		id, err := uuid.Parse(*concept)
		if err != nil {
			return fmt.Errorf("invalid concept id: %w", err)
		}
		if err := store.RequestRepair(ctx, id); err != nil {
			return err
		}
		color.Green("✅ repair requested for %s", id)

	case "status":
		fs.Parse(args)
		item, err := store.GetWorkItem(ctx, *key)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: %s", service.ErrWorkItemNotFound, *key)
		}
		color.Cyan("%s  %q  ready=%v regenerating=%v status=%s", item.Key, item.Title, item.Ready, item.Regenerating, item.Status)
		if item.HasWinner() {
			color.Magenta("  winner %s", *item.WinningConceptId)
		}
		concepts, err := store.ListActiveConcepts(ctx, *key)
		if err != nil {
			return err
		}
		for _, c := range concepts {
			fmt.Printf("  %s  up=%d down=%d hearts=%d  %s\n", c.Id, c.Up, c.Down, c.Hearts, c.ImageURL)
		}

	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
