package types

// IdentitySource records which fallback step produced an identity
type IdentitySource string

const (
	IdentityOverride      IdentitySource = "override"
	IdentityMapped        IdentitySource = "mapped"
	IdentityEmail         IdentitySource = "email"
	IdentityAuthenticated IdentitySource = "authenticated"
	IdentityRawEmail      IdentitySource = "raw-email"
	IdentityDisplayName   IdentitySource = "display-name"
)

// Identity is the active author identity selected for one tracking run
type Identity struct {
	Value  string         `json:"value"`
	Source IdentitySource `json:"source"`
}
