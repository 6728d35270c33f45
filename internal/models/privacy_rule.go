package models

// RuleKind selects what a privacy rule matches against.
type RuleKind string

const (
	RuleDomain RuleKind = "domain" // matches the value and all subdomains
	RuleApp    RuleKind = "app"    // matches the exact app identity
)

// Valid reports whether k is a known rule kind.
func (k RuleKind) Valid() bool {
	return k == RuleDomain || k == RuleApp
}

// RuleAction selects how a matched entity is suppressed.
type RuleAction string

const (
	ActionDrop RuleAction = "drop" // remove entity and duration entirely
	ActionMask RuleAction = "mask" // keep duration, hide identity
)

// Valid reports whether a is a known rule action.
func (a RuleAction) Valid() bool {
	return a == ActionDrop || a == ActionMask
}

// PrivacyRule suppresses a specific app or domain (and its
// subdomains) from all derived output. Rules apply globally,
// independent of per-collector capture settings, and retroactively at
// read time.
type PrivacyRule struct {
	ID        string     `db:"id" json:"id"`
	Kind      RuleKind   `db:"kind" json:"kind"`
	Value     string     `db:"value" json:"value"`
	Action    RuleAction `db:"action" json:"action"`
	CreatedAt int64      `db:"created_at" json:"created_at"`
}

// TableName returns the table name for PrivacyRule.
func (PrivacyRule) TableName() string {
	return "privacy_rules"
}
