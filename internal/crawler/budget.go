package crawler

import "sync"

// Budget tracks saved and planned items plus visited pages behind one mutex.
// Planned items are detail tasks the frontier has admitted but that have not
// yet resolved; counting them at admission is what keeps concurrent workers
// from overshooting the item ceiling.
type Budget struct {
	mu           sync.Mutex
	maxItems     int
	itemsSaved   int
	itemsPlanned int
	pagesVisited int
}

// BudgetSnapshot is a point-in-time copy of the counters.
type BudgetSnapshot struct {
	ItemsSaved   int
	ItemsPlanned int
	PagesVisited int
}

// NewBudget creates a budget; maxItems <= 0 means unlimited.
func NewBudget(maxItems int) *Budget {
	if maxItems < 0 {
		maxItems = 0
	}
	return &Budget{maxItems: maxItems}
}

// TryPlanItem reserves one item slot. It refuses once saved+planned reaches
// the ceiling, so no detail task is admitted past the budget.
func (b *Budget) TryPlanItem() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxItems > 0 && b.itemsSaved+b.itemsPlanned >= b.maxItems {
		return false
	}
	b.itemsPlanned++
	return true
}

// CommitSaved converts one planned slot into a saved item.
func (b *Budget) CommitSaved() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.itemsPlanned > 0 {
		b.itemsPlanned--
	}
	b.itemsSaved++
}

// ReleasePlanned frees one planned slot without saving, used when a detail
// task abandons or its extraction fails the title gate.
func (b *Budget) ReleasePlanned() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.itemsPlanned > 0 {
		b.itemsPlanned--
	}
}

// PageVisited counts one processed listing page.
func (b *Budget) PageVisited() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pagesVisited++
}

// AdmitMore reports whether new detail work may still be planned. Pure read;
// admission itself goes through TryPlanItem.
func (b *Budget) AdmitMore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxItems <= 0 || b.itemsSaved+b.itemsPlanned < b.maxItems
}

// Snapshot returns a consistent copy of the counters.
func (b *Budget) Snapshot() BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetSnapshot{
		ItemsSaved:   b.itemsSaved,
		ItemsPlanned: b.itemsPlanned,
		PagesVisited: b.pagesVisited,
	}
}
