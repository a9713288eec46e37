package discovery

import (
	"time"

	"recipe-swiper/internal/planner"
	"recipe-swiper/internal/recipe"
)

// Outcome is the result of a decision.
type Outcome int

const (
	OutcomeSaved Outcome = iota + 1
	OutcomeSkipped
	// OutcomeAlreadyInPlan: the recipe was already saved; plan and budget are unchanged.
	OutcomeAlreadyInPlan
	// OutcomeAlreadyDecided: the recipe was decided earlier in this epoch; nothing changed.
	OutcomeAlreadyDecided
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAlreadyInPlan:
		return "already_in_plan"
	case OutcomeAlreadyDecided:
		return "already_decided"
	default:
		return "unknown"
	}
}

// Result describes a decision and the queue state after it.
type Result struct {
	Outcome   Outcome
	Recipe    recipe.Recipe
	Current   *recipe.Recipe
	Remaining int
	Exhausted bool
}

// Processor applies decisions to the queue, the meal plan and the skip log.
// It owns the cursor into the available recipes.
type Processor struct {
	queue  *Queue
	plan   *planner.MealPlan
	skips  *SkipLog
	cursor int
	now    func() time.Time
}

// NewProcessor wires a processor over shared state.
func NewProcessor(queue *Queue, plan *planner.MealPlan, skips *SkipLog) *Processor {
	return &Processor{queue: queue, plan: plan, skips: skips, now: time.Now}
}

// Queue returns the queue the processor works on.
func (p *Processor) Queue() *Queue { return p.queue }

// Load replaces the queue and resets the cursor.
func (p *Processor) Load(signature string, recipes []recipe.Recipe) {
	p.queue.Load(signature, recipes)
	p.cursor = 0
}

// Restart makes every recipe undecided and moves back to the first.
func (p *Processor) Restart() {
	p.queue.Restart()
	p.cursor = 0
}

// Cursor is the index of the current recipe within the available recipes.
func (p *Processor) Cursor() int { return p.cursor }

// Current returns the recipe under the cursor.
func (p *Processor) Current() (recipe.Recipe, bool) {
	avail := p.queue.Available()
	if len(avail) == 0 {
		return recipe.Recipe{}, false
	}
	if p.cursor >= len(avail) {
		p.cursor = 0
	}
	return avail[p.cursor], true
}

// Next moves the cursor forward, wrapping to the first recipe.
func (p *Processor) Next() (recipe.Recipe, bool) {
	return p.move(1)
}

// Previous moves the cursor back, wrapping to the last recipe.
func (p *Processor) Previous() (recipe.Recipe, bool) {
	return p.move(-1)
}

func (p *Processor) move(delta int) (recipe.Recipe, bool) {
	avail := p.queue.Available()
	if len(avail) == 0 {
		p.cursor = 0
		return recipe.Recipe{}, false
	}
	p.cursor = ((p.cursor+delta)%len(avail) + len(avail)) % len(avail)
	return avail[p.cursor], true
}

// Accept saves the recipe to the meal plan and charges its cost. A recipe the
// plan already holds yields OutcomeAlreadyInPlan without a second charge, but
// its queue entry is still marked Saved and counts toward progress.
func (p *Processor) Accept(id int64) (Result, error) {
	entry, ok := p.queue.Entry(id)
	if !ok {
		return Result{}, ErrUnknownRecipe
	}
	if entry.Status != Undecided {
		return p.result(OutcomeAlreadyDecided, entry.Recipe), nil
	}

	outcome := OutcomeSaved
	if !p.plan.Add(entry.Recipe) {
		outcome = OutcomeAlreadyInPlan
	}
	p.skips.Remove(id)
	p.decide(id, Saved)
	return p.result(outcome, entry.Recipe), nil
}

// Reject skips the recipe and records it in the skip log under ingredients.
func (p *Processor) Reject(id int64, ingredients []string) (Result, error) {
	entry, ok := p.queue.Entry(id)
	if !ok {
		return Result{}, ErrUnknownRecipe
	}
	if entry.Status != Undecided {
		return p.result(OutcomeAlreadyDecided, entry.Recipe), nil
	}

	p.skips.Record(entry.Recipe, ingredients, p.now())
	p.decide(id, Skipped)
	return p.result(OutcomeSkipped, entry.Recipe), nil
}

// decide marks id and keeps the cursor on the same recipe, or on the one
// that followed the decided recipe, wrapping at the end.
func (p *Processor) decide(id int64, s Status) {
	pos := p.queue.availableIndex(id)
	p.queue.mark(id, s)
	if pos >= 0 && pos < p.cursor {
		p.cursor--
	}
	if remaining := len(p.queue.Available()); remaining == 0 || p.cursor >= remaining {
		p.cursor = 0
	}
}

func (p *Processor) result(o Outcome, r recipe.Recipe) Result {
	res := Result{Outcome: o, Recipe: r, Remaining: len(p.queue.Available())}
	if cur, ok := p.Current(); ok {
		res.Current = &cur
	} else {
		res.Exhausted = p.queue.TotalFound() > 0
	}
	return res
}
