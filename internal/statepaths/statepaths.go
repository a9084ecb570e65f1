// Package statepaths resolves the on-disk layout under the bot's state
// directory: identity, wallet records, and the audit trail.
package statepaths

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	identityFilename = "identity.json"
	walletsDirname   = "wallets"
	auditFilename    = "audit.jsonl"
)

func StateDir() string {
	return strings.TrimSpace(viper.GetString("state_dir"))
}

func IdentityPath() string {
	return filepath.Join(StateDir(), identityFilename)
}

func WalletsDir() string {
	return filepath.Join(StateDir(), walletsDirname)
}

// AuditPath honors an explicit audit.path override and otherwise keeps the
// trail next to the rest of the state.
func AuditPath() string {
	if p := strings.TrimSpace(viper.GetString("audit.path")); p != "" {
		return p
	}
	return filepath.Join(StateDir(), auditFilename)
}
