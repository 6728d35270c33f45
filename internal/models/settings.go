package models

const (
	// MinBlockSeconds is the smallest allowed block width.
	MinBlockSeconds = 300
	// MinIdleCutoffSeconds is the smallest allowed idle cutoff.
	MinIdleCutoffSeconds = 60
)

// Settings is the mutable runtime configuration. Changing BlockSeconds
// changes boundary computation for all blocks, including historical
// ones; Version tags derived results with the configuration that
// produced them.
type Settings struct {
	BlockSeconds      int64 `db:"block_seconds" json:"block_seconds"`
	IdleCutoffSeconds int64 `db:"idle_cutoff_seconds" json:"idle_cutoff_seconds"`
	StoreTitles       bool  `db:"store_titles" json:"store_titles"`
	StoreExePath      bool  `db:"store_exe_path" json:"store_exe_path"`
	Version           int64 `db:"version" json:"version"`
}

// DefaultSettings returns the configuration used for a fresh database.
func DefaultSettings() Settings {
	return Settings{
		BlockSeconds:      1800,
		IdleCutoffSeconds: 300,
		StoreTitles:       true,
		StoreExePath:      false,
		Version:           1,
	}
}

// SettingsPatch is a partial settings update; nil fields are left
// unchanged.
type SettingsPatch struct {
	BlockSeconds      *int64 `json:"block_seconds,omitempty"`
	IdleCutoffSeconds *int64 `json:"idle_cutoff_seconds,omitempty"`
	StoreTitles       *bool  `json:"store_titles,omitempty"`
	StoreExePath      *bool  `json:"store_exe_path,omitempty"`
}

// Apply returns a copy of s with the patch applied. Bounds are
// validated by the settings controller, not here.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.BlockSeconds != nil {
		s.BlockSeconds = *p.BlockSeconds
	}
	if p.IdleCutoffSeconds != nil {
		s.IdleCutoffSeconds = *p.IdleCutoffSeconds
	}
	if p.StoreTitles != nil {
		s.StoreTitles = *p.StoreTitles
	}
	if p.StoreExePath != nil {
		s.StoreExePath = *p.StoreExePath
	}
	return s
}
