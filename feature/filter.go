package feature

// DefaultMinValidDays is the fewest complete rows a province needs to be trained on
const DefaultMinValidDays = 120

// FilterValidProvinces drops rows missing any feature or target, then drops every province
// with fewer than minValidDays surviving rows.
func FilterValidProvinces(f *Frame, minValidDays int) *Frame {
	complete := f.DropIncomplete(true)

	counts := make(map[string]int)
	for _, r := range complete.Rows {
		counts[r.Province]++
	}
	return complete.Filter(func(r Row) bool {
		return counts[r.Province] >= minValidDays
	})
}
