package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/cache"
	"recipe-swiper/internal/config"
	"recipe-swiper/internal/database"
	"recipe-swiper/internal/logger"
	"recipe-swiper/internal/metrics"
	"recipe-swiper/internal/pantry"
	"recipe-swiper/internal/query"
	"recipe-swiper/internal/spoonacular"
	"recipe-swiper/internal/storage"

	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		}
		os.Exit(1)
	}
}

// run executes one command. Deferred cleanup always runs; failures after the
// logger exists are logged through it.
func run(ctx context.Context, args []string) (err error) {
	if len(args) < 1 {
		return errUsage
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return err
	}
	// The CLI prints its own results; only warnings go to stderr.
	logg := logger.New(logger.Config{Level: "warn", Format: "console", Output: os.Stderr})
	defer logg.Sync()
	defer func() {
		if err != nil && !errors.Is(err, errUsage) {
			logg.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		}
	}()

	db, err := database.NewDB(cfg.DatabasePath, logg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	sqlCache := cache.NewSQLStore(db.SQL)
	calls := metrics.NewStore(db.SQL, logg)
	ttl := query.TTLs{Detail: cfg.CacheDetailTTL, Search: cfg.CacheSearchTTL, Random: cfg.CacheRandomTTL}
	svc := query.NewService(spoonacular.NewClient(cfg), sqlCache, ttl, logg, calls)

	state := storage.NewStateStore(db.SQL)
	writer := storage.NewWriter(state, 0, logg)
	defer writer.Close(ctx)
	application := app.NewApp(cfg, svc, state, writer, logg)

	switch args[0] {
	case "discover":
		discoverCmd := flag.NewFlagSet("discover", flag.ContinueOnError)
		user := discoverCmd.String("user", "cli", "User whose state is used")
		diet := discoverCmd.String("diet", "", "Comma separated dietary preferences")
		if err := discoverCmd.Parse(args[1:]); err != nil {
			return err
		}

		if *diet != "" {
			if _, err := application.SetPreferences(ctx, *user, pantry.SplitIngredients(*diet)); err != nil {
				return fmt.Errorf("invalid preferences: %w", err)
			}
		}
		q, err := application.SetIngredients(ctx, *user, pantry.SplitIngredients(strings.Join(discoverCmd.Args(), ",")))
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}
		printQueue(q)
	case "plan":
		planCmd := flag.NewFlagSet("plan", flag.ContinueOnError)
		user := planCmd.String("user", "cli", "User whose state is used")
		if err := planCmd.Parse(args[1:]); err != nil {
			return err
		}

		plan, err := application.Plan(ctx, *user)
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}
		list, err := application.ShoppingList(ctx, *user)
		if err != nil {
			return fmt.Errorf("failed to build shopping list: %w", err)
		}
		printPlan(plan, list)
	case "cache-clear":
		if err := svc.ClearCache(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Response cache cleared.")
	case "cache-purge":
		affected, err := sqlCache.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		fmt.Printf("Removed %d expired cache entries.\n", affected)
	case "metrics-usage":
		usageCmd := flag.NewFlagSet("metrics-usage", flag.ContinueOnError)
		days := usageCmd.Int("days", 7, "Number of days to report")
		if err := usageCmd.Parse(args[1:]); err != nil {
			return err
		}

		usage, err := calls.GetDailyUsage(ctx, *days)
		if err != nil {
			return fmt.Errorf("failed to read usage: %w", err)
		}
		for _, u := range usage {
			fmt.Printf("%s  total=%d api=%d cached=%d failed=%d avg=%dms\n", u.Date, u.Total, u.API, u.Cached, u.Failed, u.AvgLatMS)
		}
		h := metrics.GetSysHealth(filepath.Dir(cfg.DatabasePath))
		fmt.Printf("Data directory: %s\n", metrics.FormatBytes(h.DataDirBytes))
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ContinueOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		if err := cleanupCmd.Parse(args[1:]); err != nil {
			return err
		}

		affected, err := calls.Cleanup(ctx, *days)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		return errUsage
	}
	return nil
}

func printQueue(q app.QueueView) {
	if q.Empty() {
		fmt.Println("No recipes match these ingredients.")
		return
	}
	fmt.Printf("Found %d recipes (budget $%.2f, spent $%.2f)\n", q.TotalFound, q.Budget.Budget, q.Budget.Spent)
	for i, r := range q.Available {
		fmt.Printf("%2d. [%d] %s - $%.2f, %d min\n", i+1, r.ID, r.Title, r.EstimatedCost, r.CookingMinutes)
		if len(r.MissedIngredients) > 0 {
			fmt.Printf("      missing: %s\n", strings.Join(r.MissedIngredients, ", "))
		}
	}
}

func printPlan(plan app.PlanView, list app.ShoppingView) {
	if len(plan.Recipes) == 0 {
		fmt.Println("The meal plan is empty.")
		return
	}
	for _, r := range plan.Recipes {
		fmt.Printf("[%d] %s - $%.2f\n", r.ID, r.Title, r.EstimatedCost)
	}
	b := plan.Budget
	fmt.Printf("\n$%.2f of $%.2f spent (%.0f%%), $%.2f remaining\n", b.Spent, b.Budget, b.Percentage, b.Remaining)

	if list.Len() > 0 {
		fmt.Println("\nShopping list:")
		for _, item := range list.Items {
			fmt.Printf("  - %s (%s)\n", item.Name, strings.Join(item.Recipes, ", "))
		}
	}
}

func printUsage() {
	fmt.Println("Usage: recipe-swiper <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  discover [-user u] [-diet d] <ingredients...>   Search recipes for the ingredients")
	fmt.Println("  plan [-user u]                                   Show the meal plan and shopping list")
	fmt.Println("  cache-clear                                      Drop every cached API response")
	fmt.Println("  cache-purge                                      Drop expired cached responses")
	fmt.Println("  metrics-usage [-days n]                          Show daily API usage")
	fmt.Println("  metrics-cleanup [-days n]                        Remove old metric records")
}
