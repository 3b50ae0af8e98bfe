package session

import "github.com/aryanfhm/tgsnap/internal/config"

// ResolveAccount determines the active account using precedence:
// 1. flagOverride (--account flag)
// 2. config.toml default_account
// Returns empty string when neither is set.
func ResolveAccount(flagOverride string, cfg *config.Config) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg != nil {
		return cfg.DefaultAccount
	}
	return ""
}
