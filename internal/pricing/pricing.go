package pricing

// Item is a priced line of a reservation. UnitPrice is the snapshot taken
// when the reservation was created, never the live ticket option price.
type Item struct {
	Quantity  int
	UnitPrice float64
}

// Total computes the reservation total from its line items. Pure function:
// a later price change on a ticket option never alters an existing
// reservation's total because the snapshots don't move.
func Total(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}
