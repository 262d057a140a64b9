package oracle

import "time"

// Price is a curated USD price for a single asset, keyed by mint address.
type Price struct {
	Mint      string    `json:"mint"`
	Symbol    string    `json:"symbol"`
	USD       float64   `json:"usd"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// Symbol maps a human-readable ticker to a mint address, for admin-facing
// lookups of curated prices by symbol instead of raw mint.
type Symbol struct {
	Symbol string `json:"symbol"`
	Mint   string `json:"mint"`
}

// Config holds the subset of operator-tunable settings that are stored in
// the durable tier and editable via the admin API, as opposed to the
// process-env proxy knobs in package proxy.
type Config struct {
	PegSourceURL      string `json:"peg_source_url,omitempty"`
	PegPollIntervalS  int    `json:"peg_poll_interval_s"`
	WriteLimitPerMin  int    `json:"write_limit_per_min"`
}

// AuditEntry records a single admin write for the audit log.
type AuditEntry struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditPage is a keyset-paginated slice of the audit log.
type AuditPage struct {
	Entries    []AuditEntry `json:"entries"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Identity is the authenticated admin caller attached to request context by
// the JWT middleware.
type Identity struct {
	Subject string `json:"subject"`
	Role    string `json:"role"` // "admin" is the only recognized role
}

// IsAdmin reports whether the identity carries the admin role.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == "admin"
}
