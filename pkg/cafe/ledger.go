package cafe

import (
	"errors"
	"log"
)

const DefaultStartingCurrency = 50.0

var (
	ErrAlreadySelected   = errors.New("item already selected")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownItem       = errors.New("unknown menu item")
)

// Ledger tracks the wallet and provisional order of one café date.
// Selections are holds against the balance; money only leaves the wallet at
// Checkout.
type Ledger struct {
	Currency float64
	selected map[Slot]MenuItem
}

func NewLedger(currency float64) *Ledger {
	return &Ledger{
		Currency: currency,
		selected: make(map[Slot]MenuItem),
	}
}

// Receipt summarizes a checkout.
type Receipt struct {
	Items     []MenuItem `json:"items"`
	Total     float64    `json:"total"`
	Remaining float64    `json:"remaining"`
}

func (l *Ledger) held() float64 {
	var total float64
	for _, item := range l.selected {
		total += item.Price
	}
	return total
}

// AvailableBalance is the wallet minus everything currently selected.
func (l *Ledger) AvailableBalance() float64 {
	return l.Currency - l.held()
}

// EffectiveCost is what selecting item would add to the held total: its price
// minus the price of whatever it replaces in the same slot.
func (l *Ledger) EffectiveCost(item MenuItem) float64 {
	cost := item.Price
	if current, ok := l.selected[item.Slot()]; ok {
		cost -= current.Price
	}
	return cost
}

// CanAfford reports whether Purchase(item) would succeed.
func (l *Ledger) CanAfford(item MenuItem) bool {
	return l.check(item) == nil
}

func (l *Ledger) check(item MenuItem) error {
	if current, ok := l.selected[item.Slot()]; ok && current.Name == item.Name {
		return ErrAlreadySelected
	}
	if l.AvailableBalance() < l.EffectiveCost(item) {
		return ErrInsufficientFunds
	}
	return nil
}

// Purchase selects item, replacing any selection in its slot.
func (l *Ledger) Purchase(item MenuItem) error {
	if err := l.check(item); err != nil {
		return err
	}
	l.selected[item.Slot()] = item
	return nil
}

// IsSelected reports whether the named item is part of the order.
func (l *Ledger) IsSelected(name string) bool {
	for _, item := range l.selected {
		if item.Name == name {
			return true
		}
	}
	return false
}

// Selected returns the order in slot order.
func (l *Ledger) Selected() []MenuItem {
	var out []MenuItem
	for _, slot := range Slots {
		if item, ok := l.selected[slot]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Checkout pays for the order and clears it.
func (l *Ledger) Checkout() Receipt {
	items := l.Selected()
	total := l.held()
	l.Currency -= total
	l.Clear()

	log.Printf("Cafe checkout: %d item(s), total %.2f, remaining %.2f", len(items), total, l.Currency)

	return Receipt{Items: items, Total: total, Remaining: l.Currency}
}

// Clear drops the order without paying.
func (l *Ledger) Clear() {
	l.selected = make(map[Slot]MenuItem)
}

// View is the ledger state sent to the UI.
type View struct {
	Currency         float64         `json:"currency"`
	AvailableBalance float64         `json:"availableBalance"`
	Selected         []MenuItem      `json:"selected"`
	Affordable       map[string]bool `json:"affordable"`
}

func (l *Ledger) View() View {
	affordable := make(map[string]bool, len(Menu))
	for _, item := range Menu {
		affordable[item.Name] = l.CanAfford(item)
	}
	return View{
		Currency:         l.Currency,
		AvailableBalance: l.AvailableBalance(),
		Selected:         l.Selected(),
		Affordable:       affordable,
	}
}
