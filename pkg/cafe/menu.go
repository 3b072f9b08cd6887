package cafe

import (
	"fmt"
	"strings"
)

// Slot is the order position an item occupies. A ledger holds at most one
// item per slot.
type Slot string

const (
	SlotDrink Slot = "drink"
	SlotFood  Slot = "food"
)

// Slots in display order.
var Slots = []Slot{SlotDrink, SlotFood}

// MenuItem is a static catalog entry.
type MenuItem struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// Slot derives the ledger slot from the category.
func (m MenuItem) Slot() Slot {
	switch strings.ToLower(m.Category) {
	case "coffee", "tea", "drink", "cold drink":
		return SlotDrink
	}
	return SlotFood
}

// Menu is the café catalog.
var Menu = []MenuItem{
	{Name: "Latte", Price: 8, Category: "coffee", Description: "Silky espresso with steamed milk and a heart drawn in foam."},
	{Name: "Cappuccino", Price: 7, Category: "coffee", Description: "Equal parts espresso, milk and foam, dusted with cocoa."},
	{Name: "Iced Americano", Price: 5, Category: "cold drink", Description: "Espresso over ice. Simple and sharp."},
	{Name: "Tea", Price: 4, Category: "tea", Description: "A pot of house black tea."},
	{Name: "Matcha Latte", Price: 9, Category: "tea", Description: "Whisked ceremonial matcha with oat milk."},
	{Name: "Hot Chocolate", Price: 6, Category: "drink", Description: "Rich cocoa topped with marshmallows."},
	{Name: "Croissant", Price: 5, Category: "pastry", Description: "Buttery and flaky, baked this morning."},
	{Name: "Macarons", Price: 7, Category: "pastry", Description: "Three pastel macarons: rose, pistachio, vanilla."},
	{Name: "Cheesecake", Price: 9, Category: "dessert", Description: "New York style with a berry compote."},
	{Name: "Strawberry Shortcake", Price: 10, Category: "dessert", Description: "Fluffy sponge, fresh cream and strawberries."},
	{Name: "Tiramisu", Price: 11, Category: "dessert", Description: "Coffee-soaked ladyfingers layered with mascarpone."},
}

// FindItem looks up a menu item by name, case-insensitively.
func FindItem(name string) (MenuItem, error) {
	name = strings.TrimSpace(name)
	for _, item := range Menu {
		if strings.EqualFold(item.Name, name) {
			return item, nil
		}
	}
	return MenuItem{}, fmt.Errorf("%w: %q", ErrUnknownItem, name)
}

// MenuBySlot groups the catalog for display.
func MenuBySlot() map[Slot][]MenuItem {
	out := make(map[Slot][]MenuItem, len(Slots))
	for _, item := range Menu {
		out[item.Slot()] = append(out[item.Slot()], item)
	}
	return out
}
