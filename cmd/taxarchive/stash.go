package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// stash command
var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Inspect and restore files displaced by sync",
}

var stashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stashed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("ListStashes")
		if err != nil {
			return err
		}
		defer a.Close()

		stashes, err := a.Stashes(limit)
		if err != nil {
			return err
		}
		if len(stashes) == 0 {
			fmt.Println("No stashed files.")
			return nil
		}
		for _, s := range stashes {
			enc := " "
			if s.Encrypted {
				enc = "E"
			}
			fmt.Printf("%s  %s  %s  %-8s  %8d  %s\n",
				s.Checksum[:12],
				enc,
				s.StashedAt.Format("2006-01-02 15:04:05"),
				s.Reason,
				s.Size,
				s.OriginalPath,
			)
		}
		return nil
	},
}

var stashRestoreCmd = &cobra.Command{
	Use:   "restore CHECKSUM DEST",
	Short: "Restore a stashed file to DEST",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RestoreStash")
		if err != nil {
			return err
		}
		defer a.Close()

		prompt := func() (string, error) { return readPassphrase("Passphrase: ") }
		if err := a.RestoreStash(args[0], args[1], prompt); err != nil {
			return err
		}
		fmt.Printf("Restored %s\n", args[1])
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage stash encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair used to encrypt stashes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("KeysInit")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := a.InitKeys(pass); err != nil {
			return err
		}
		cfg := a.Config().Encryption
		fmt.Printf("Public key:  %s\n", cfg.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.PrivateKeyPath)
		return nil
	},
}

// readPassphrase prompts on stderr and reads without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("a terminal is required to read the passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}
