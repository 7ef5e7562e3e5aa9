package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediasort/internal/app"
	"mediasort/internal/config"
	"mediasort/internal/encryption"
	"mediasort/internal/media"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig reads the config file from the default location.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "index", "reorganize").
func newApp(operation string) (*app.App, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// closeApp closes a and reports a close failure unless the command already failed.
func closeApp(a *app.App, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// readPassphrase prompts on stderr and reads a line from the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "mediasort",
	Short:        "Deduplicate and reorganize photo and video collections",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Host ID:     %s\n", cfg.HostID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Index:       %s %s (%d workers)\n", cfg.Index.Type, cfg.Index.Dir, cfg.Index.Workers)
		fmt.Printf("Record Time: %s\n", cfg.Organize.RecordTime)
		fmt.Printf("Retry:       %d attempts, %s %s\n", cfg.Retry.MaxAttempts, cfg.Retry.Backoff, cfg.Retry.Delay.Duration)
		fmt.Printf("Metadata:    %s\n", cfg.Metadata.Type)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:       %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if !encryption.NeedsPassphrase(enc) {
			fmt.Printf("Encryption type %q uses no keys.\n", cfg.Encryption.Type)
			return nil
		}

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		again, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != again {
			return errors.New("passphrases do not match")
		}

		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// index command
var indexCmd = &cobra.Command{
	Use:   "index ROOT...",
	Short: "Index media files under the given directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("index")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		added, err := a.Index(args)
		if err != nil {
			return fmt.Errorf("indexing: %w", err)
		}

		fmt.Printf("Indexed %s new file(s)\n", humanize.Comma(int64(added)))
		return nil
	},
}

// issues command
var issuesCmd = &cobra.Command{
	Use:   "issues ROOT...",
	Short: "List empty files, duplicates and collisions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("issues")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		issues, err := a.Issues(args)
		if err != nil {
			return fmt.Errorf("classifying: %w", err)
		}

		fmt.Printf("Empty:      %d\n", len(issues.Empty))
		fmt.Printf("Duplicates: %d\n", len(issues.Duplicates))
		fmt.Printf("Collisions: %d\n", len(issues.Collisions))
		for _, d := range issues.Empty {
			fmt.Printf("empty      %s\n", d.Path)
		}
		printPairs("duplicate", issues.Duplicates)
		printPairs("collision", issues.Collisions)
		return nil
	},
}

func printPairs(label string, pairs []media.Pair) {
	for _, p := range pairs {
		fmt.Printf("%-10s %s\n           %s\n", label, p.First.Path, p.Second.Path)
	}
}

// reorganize command
var reorganizeCmd = &cobra.Command{
	Use:   "reorganize --dest DIR SRC...",
	Short: "Copy distinct media items into a date-organized tree",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		dest, _ := cmd.Flags().GetString("dest")
		yes, _ := cmd.Flags().GetBool("yes")
		if dest == "" {
			return errors.New("--dest is required")
		}

		a, err := newApp("reorganize")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		var confirm func(*media.Report) bool
		if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
			confirm = confirmReport
		}

		report, err := a.Reorganize(args, dest, confirm)
		if errors.Is(err, media.ErrAborted) {
			fmt.Println("Nothing copied.")
			return nil
		}
		if err != nil {
			var ce *media.CopyError
			if errors.As(err, &ce) {
				fmt.Fprintf(os.Stderr, "Copy of %s to %s failed after %d attempt(s); run again to resume.\n", ce.Source, ce.Destination, ce.Attempts)
			}
			return fmt.Errorf("reorganizing: %w", err)
		}

		fmt.Printf("Copied %s file(s), %s\n", humanize.Comma(int64(report.Copied)), humanize.IBytes(uint64(report.BytesCopied)))
		fmt.Printf("Quarantined %d collision member(s), skipped %d, ignored %d non-media\n", report.Quarantined, report.Skipped, report.Ignored)
		return nil
	},
}

// confirmReport prints the pre-copy summary and asks whether to continue.
func confirmReport(r *media.Report) bool {
	fmt.Printf("Indexed:         %s new file(s)\n", humanize.Comma(int64(r.Indexed)))
	fmt.Printf("Empty:           %d\n", r.Empty)
	fmt.Printf("Duplicates:      %d\n", r.Duplicates)
	fmt.Printf("Collisions:      %d\n", r.Collisions)
	fmt.Printf("Already present: %s\n", humanize.Comma(int64(r.AlreadyPresent)))
	fmt.Printf("To copy:         %s (%s)\n", humanize.Comma(int64(r.Planned)), humanize.IBytes(uint64(r.BytesPlanned)))
	fmt.Print("Continue? [y/N] ")

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// log command
var logCmd = &cobra.Command{
	Use:   "log PATH",
	Short: "View the copies made of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("log")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		copies, err := a.GetCopyHistory(args[0])
		if err != nil {
			return err
		}

		if len(copies) == 0 {
			fmt.Println("No copies recorded.")
			return nil
		}

		for _, c := range copies {
			fmt.Printf("#%d  %s  %-10s  %s  %s -> %s\n",
				c.RunID,
				c.CopiedAt.Format("2006-01-02 15:04:05"),
				c.Kind,
				c.Fingerprint[:12],
				c.SourcePath,
				c.DestPath,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-11s  %s  %-10s  copied:%d  quarantined:%d  %s\n",
				r.ID,
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				r.Copied,
				r.Quarantined,
				duration,
			)
		}
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage vault snapshots",
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore NAME OUT",
	Short: "Download and decrypt a snapshot (runs.db or an index log)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("snapshot-restore")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		passphrase := ""
		if a.NeedsPassphrase() {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := a.RestoreSnapshot(args[0], args[1], passphrase); err != nil {
			return fmt.Errorf("restoring: %w", err)
		}

		fmt.Printf("Restored %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	// snapshot subcommands
	snapshotCmd.AddCommand(snapshotRestoreCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(reorganizeCmd)
	reorganizeCmd.Flags().StringP("dest", "d", "", "Destination directory")
	reorganizeCmd.Flags().BoolP("yes", "y", false, "Copy without asking for confirmation")
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(snapshotCmd)
}
