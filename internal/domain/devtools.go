package domain

// ============================================================
// Dev Tools: endpoints for development/testing
// ============================================================

// SeedResponse is returned by POST /api/dev/seed.
type SeedResponse struct {
	Wallets      int    `json:"wallets"`
	Clients      int    `json:"clients"`
	Transactions int    `json:"transactions"`
	Payments     int    `json:"payments"`
	Message      string `json:"message"`
}
