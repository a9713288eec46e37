package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/discovery"
	"recipe-swiper/internal/metrics"
	"recipe-swiper/internal/planner"
	"recipe-swiper/internal/recipe"
	"recipe-swiper/internal/shopping"
	"recipe-swiper/internal/spoonacular"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `👋 *Recipe Swiper*

Tell me what is in your kitchen and swipe through recipes that use it.

/ingredients chicken, rice - set your ingredients
/add garlic - add ingredients
/remove\_ingredient rice - remove one ingredient
/diet vegan, gluten-free - set dietary preferences (or "none")
/budget 50 - set your budget
/discover - show the next recipe
/restart - bring back every recipe of this round
/plan - show your meal plan
/remove <id> - remove a recipe from the plan
/clear - empty the meal plan
/shopping - shopping list for the plan
/skipped - recipes you skipped
/recover <id> - move a skipped recipe into the plan

You can also just send a message listing what you have.`

var errBadID = errors.New("recipe id must be a number")

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape makes user and API text safe for legacy Markdown.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// formatCard renders the current recipe of the queue and its buttons.
func formatCard(q app.QueueView) (string, *tgbotapi.InlineKeyboardMarkup) {
	if q.Empty() {
		return "🤷 *No recipes match* your ingredients and preferences.\nTry /add or /diet none.", nil
	}
	if q.Current == nil {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 Start over", "restart|0"),
			),
		)
		text := fmt.Sprintf("🎉 *All %d recipes processed!*\n\n%s", q.TotalFound, formatBudgetLine(q.Budget))
		return text, &kb
	}

	r := q.Current
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🍽 *%s*\n", escape(r.Title)))
	sb.WriteString(fmt.Sprintf("💵 %s · ⏱ %d min · 🍴 %d servings\n", money(r.EstimatedCost), r.CookingMinutes, r.Servings))
	if len(r.DietaryTags) > 0 {
		sb.WriteString(fmt.Sprintf("🏷 %s\n", joinTags(r.DietaryTags)))
	}
	if len(r.UsedIngredients) > 0 {
		sb.WriteString(fmt.Sprintf("✅ Uses: %s\n", escape(strings.Join(r.UsedIngredients, ", "))))
	}
	if len(r.MissedIngredients) > 0 {
		sb.WriteString(fmt.Sprintf("🛒 Missing: %s\n", escape(strings.Join(r.MissedIngredients, ", "))))
	}
	if r.Image != "" {
		sb.WriteString(fmt.Sprintf("[Photo](%s)\n", r.Image))
	}
	sb.WriteString(fmt.Sprintf("\n📊 %d/%d decided (%.0f%%) · %d left\n", q.Processed, q.TotalFound, q.Progress, len(q.Available)))
	sb.WriteString(formatBudgetLine(q.Budget))

	id := strconv.FormatInt(r.ID, 10)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Skip", "skip|"+id),
			tgbotapi.NewInlineKeyboardButtonData("✅ Save", "save|"+id),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Next", "next|0"),
		),
	)
	return sb.String(), &kb
}

// formatOutcome is the short notice shown when a button is pressed.
func formatOutcome(d app.DecisionView) string {
	switch d.Outcome {
	case discovery.OutcomeSaved.String():
		return fmt.Sprintf("Saved %s (%s)", d.Recipe.Title, money(d.Recipe.EstimatedCost))
	case discovery.OutcomeSkipped.String():
		return "Skipped " + d.Recipe.Title
	case discovery.OutcomeAlreadyInPlan.String():
		return d.Recipe.Title + " is already in your plan"
	default:
		return "Already decided"
	}
}

func formatBudgetLine(s planner.Summary) string {
	line := fmt.Sprintf("💰 %s of %s spent (%.0f%%)", money(s.Spent), money(s.Budget), s.Percentage)
	if s.Overspent() {
		line += " ⚠️ over budget"
	}
	return line
}

func formatBudget(s planner.Summary) string {
	return fmt.Sprintf("💰 *Budget*: %s\nSpent: %s\nRemaining: %s\nRecipes: %d",
		money(s.Budget), money(s.Spent), money(s.Remaining), s.Recipes)
}

func formatPlan(p app.PlanView) string {
	var sb strings.Builder
	sb.WriteString("📅 *Meal Plan*\n\n")
	if len(p.Recipes) == 0 {
		sb.WriteString("_No recipes saved yet. Try /discover._\n")
	}
	for _, r := range p.Recipes {
		sb.WriteString(fmt.Sprintf("• *%s* - %s (id %d)\n", escape(r.Title), money(r.EstimatedCost), r.ID))
	}
	sb.WriteString("\n")
	sb.WriteString(formatBudgetLine(p.Budget))
	return sb.String()
}

func formatShopping(l shopping.List) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n\n")
	if l.Len() == 0 {
		if l.Recipes == 0 {
			sb.WriteString("_Your meal plan is empty._")
		} else {
			sb.WriteString("_You have everything you need._")
		}
		return sb.String()
	}
	for _, item := range l.Items {
		sb.WriteString(fmt.Sprintf("• %s", escape(item.Name)))
		if len(item.Recipes) > 1 {
			sb.WriteString(fmt.Sprintf(" (%d recipes)", len(item.Recipes)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatSkipped(v app.SkippedView) string {
	var sb strings.Builder
	sb.WriteString("🙈 *Skipped Recipes*\n\n")
	if len(v.Records) == 0 {
		sb.WriteString("_Nothing skipped._")
		return sb.String()
	}
	for _, rec := range v.Records {
		sb.WriteString(fmt.Sprintf("• %s - %s (id %d)\n",
			escape(rec.Recipe.Title), money(rec.Recipe.EstimatedCost), rec.Recipe.ID))
	}
	sb.WriteString("\nUse /recover <id> to add one to your plan.")
	return sb.String()
}

func formatPantry(p app.PantryView) string {
	ings := "_none_"
	if len(p.Ingredients) > 0 {
		ings = escape(strings.Join(p.Ingredients, ", "))
	}
	prefs := "_none_"
	if len(p.Preferences) > 0 {
		prefs = joinTags(p.Preferences)
	}
	return fmt.Sprintf("🥕 *Ingredients*: %s\n🥗 *Diet*: %s", ings, prefs)
}

func formatMetrics(stats metrics.Summary, usage []metrics.DailyUsage, health metrics.Health) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🔁 *Recent Calls*\n")
	sb.WriteString(fmt.Sprintf("• Total: %d (last hour %d, last minute %d)\n", stats.Total, stats.LastHour, stats.LastMinute))
	sb.WriteString(fmt.Sprintf("• Cache: %d · API: %d\n", stats.Cached, stats.API))

	sb.WriteString("\n🗓 *Daily Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d calls (%d cached, %d failed, avg %dms)\n", d.Date, d.Total, d.Cached, d.Failed, d.AvgLatMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", metrics.FormatBytes(health.DataDirBytes)))
	return sb.String()
}

// formatError turns a command failure into a reply.
func formatError(err error) string {
	var fe *spoonacular.FetchError
	switch {
	case errors.As(err, &fe):
		return "❌ *Recipe search failed.* The recipe service did not answer, please try again in a moment."
	case errors.Is(err, planner.ErrInvalidBudget):
		return "⚠️ The budget must be a positive amount, for example /budget 50"
	case errors.Is(err, recipe.ErrUnknownDietaryTag):
		return "⚠️ Unknown diet. Choose from: " + joinTags(recipe.AllDietaryTags)
	case errors.Is(err, errBadID):
		return "⚠️ Please give a recipe id, for example /remove 123"
	case errors.Is(err, app.ErrNotInPlan):
		return "⚠️ That recipe is not in your meal plan."
	case errors.Is(err, app.ErrNotSkipped):
		return "⚠️ That recipe is not in your skipped list."
	case errors.Is(err, discovery.ErrUnknownRecipe):
		return "⚠️ That recipe is no longer in your queue. Try /discover."
	default:
		return "❌ Something went wrong, please try again."
	}
}

func joinTags(tags []recipe.DietaryTag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
