package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/chunkvault/internal/server/config"
	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// NeedsPassphrase reports whether cfg names no master key source.
func NeedsPassphrase(cfg *config.Config) bool {
	return cfg.MasterKey == "" && cfg.MasterPassphrase == "" && cfg.MasterKeySecretID == ""
}

// PromptPassphrase reads the master passphrase from the terminal without
// echo. It does nothing when a key source is already configured or stdin
// is not a terminal.
func PromptPassphrase(cfg *config.Config, in *os.File, out io.Writer) error {
	if !NeedsPassphrase(cfg) || !isTerminal(int(in.Fd())) {
		return nil
	}

	fmt.Fprint(out, "Master passphrase: ")
	b, err := readPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	cfg.MasterPassphrase = string(b)
	return nil
}
