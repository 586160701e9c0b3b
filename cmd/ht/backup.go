package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passphraseEnv lets scripts supply the backup passphrase without a terminal.
const passphraseEnv = "HT_BACKUP_PASSPHRASE"

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypted backups of the local backend database",
}

var backupInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the backup key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups(cmd.Context())
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase(cmd, true)
		if err != nil {
			return err
		}
		if err := backups.Init(cmd.Context(), passphrase); err != nil {
			return err
		}

		enc := a.Config().Encryption
		fmt.Fprintf(cmd.OutOrStdout(), "Backup keys written to %s and %s\n", enc.PublicKeyPath, enc.PrivateKeyPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Keep the passphrase safe: backups cannot be restored without it.")
		return nil
	},
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot, encrypt and upload the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups(cmd.Context())
		if err != nil {
			return err
		}
		b, err := backups.Create(cmd.Context())
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, b, func(w io.Writer) {
			fmt.Fprintf(w, "Created %s (%d bytes)\n", b.Name, b.Size)
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups(cmd.Context())
		if err != nil {
			return err
		}
		list, err := backups.List(cmd.Context())
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, list, func(w io.Writer) {
			if len(list) == 0 {
				fmt.Fprintln(w, "No backups.")
				return
			}
			for _, b := range list {
				fmt.Fprintf(w, "%s  %s  %10d\n", localTime(b.CreatedAt), b.Name, b.Size)
			}
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [NAME]",
	Short: "Decrypt a backup (default: the newest) into a new database file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("to")
		if dest == "" {
			return errors.New("--to is required")
		}
		var name string
		if len(args) == 1 {
			name = args[0]
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups(cmd.Context())
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase(cmd, false)
		if err != nil {
			return err
		}
		b, err := backups.Restore(cmd.Context(), name, passphrase, dest)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s\n", b.Name, dest)
		fmt.Fprintln(cmd.OutOrStdout(), "Stop \"ht serve\" and copy it over ht.db in database.data_dir to use it.")
		return nil
	},
}

// readPassphrase takes the passphrase from HT_BACKUP_PASSPHRASE or prompts on
// the terminal without echo. confirm asks twice.
func readPassphrase(cmd *cobra.Command, confirm bool) (string, error) {
	if p, ok := os.LookupEnv(passphraseEnv); ok {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for a passphrase; set %s", passphraseEnv)
	}

	prompt := func(label string) (string, error) {
		fmt.Fprint(cmd.ErrOrStderr(), label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}

	p, err := prompt("Passphrase: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := prompt("Repeat passphrase: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", errors.New("passphrases do not match")
		}
	}
	return p, nil
}

func init() {
	backupRestoreCmd.Flags().String("to", "", "Path of the database file to create")

	backupCmd.AddCommand(backupInitCmd)
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}
