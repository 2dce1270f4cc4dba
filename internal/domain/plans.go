package domain

// Plan is a purchasable access pass. Prices are whole Ugandan shillings.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Duration     string `json:"duration"`
	Price        int64  `json:"price"`
	ValidityDays int    `json:"days"`
}

// AvailablePlans returns the fixed plan catalog in display order.
func AvailablePlans() []Plan {
	return []Plan{
		{ID: "1day", Name: "1 Day Pass", Duration: "1 Day", Price: 3000, ValidityDays: 1},
		{ID: "4days", Name: "4 Days Pass", Duration: "4 Days", Price: 5000, ValidityDays: 4},
		{ID: "1week", Name: "1 Week Pass", Duration: "1 Week", Price: 10000, ValidityDays: 7},
		{ID: "2weeks", Name: "2 Weeks Pass", Duration: "2 Weeks", Price: 15000, ValidityDays: 14},
		{ID: "1month", Name: "1 Month Pass", Duration: "1 Month", Price: 25000, ValidityDays: 30},
	}
}

// FindPlan returns the plan for a given ID.
func FindPlan(id string) (Plan, bool) {
	for _, p := range AvailablePlans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanName resolves a plan id to its display name, falling back to the id itself.
func PlanName(id string) string {
	if p, ok := FindPlan(id); ok {
		return p.Name
	}
	if id == "" {
		return "Unknown"
	}
	return id
}
