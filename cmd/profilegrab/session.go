package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"profilegrab/pkg/config"
	"profilegrab/pkg/models"
	"profilegrab/pkg/session"
	"profilegrab/pkg/ui"
)

var (
	sessionBackend string
	askPassphrase  bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved platform cookies",
	Long: `Manage the cookies profilegrab uses to browse as a logged-in user.

Cookies are stored encrypted in the cookies directory (AES-GCM with a
PBKDF2-derived key) or in the system keychain, selected by session.backend.
Cookie values are never printed.`,
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <platform> <cookies.json|->",
	Short: "Import cookies exported from a logged-in browser",
	Example: `  profilegrab session import instagram cookies.json
  pbpaste | profilegrab session import threads -`,
	Args: cobra.ExactArgs(2),
	RunE: runSessionImport,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List platforms with saved cookies",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <platform>",
	Short: "Forget the saved cookies of a platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionGuideCmd = &cobra.Command{
	Use:   "guide <platform>",
	Short: "Explain how to export cookies for a platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := models.ParsePlatform(args[0])
		if err != nil {
			return err
		}
		session.WriteExportGuide(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionImportCmd, sessionListCmd, sessionDeleteCmd, sessionGuideCmd)

	sessionCmd.PersistentFlags().StringVar(&sessionBackend, "backend", "", "session store: file, keyring or auto")
	sessionCmd.PersistentFlags().BoolVar(&askPassphrase, "ask-passphrase", false, "prompt for the cookie encryption passphrase")
}

func sessionManager() (*session.Manager, error) {
	cfg, _, err := loadConfig(map[string]interface{}{"session-backend": sessionBackend})
	if err != nil {
		return nil, err
	}
	if askPassphrase {
		passphrase, err := readPassphrase(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Session.Passphrase = passphrase
	}
	return session.NewManager(cfg.Session, afero.NewOsFs())
}

func readPassphrase(cfg *config.Config) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--ask-passphrase needs an interactive terminal")
	}
	fmt.Fprintf(os.Stderr, "Passphrase for %s: ", cfg.Session.Dir)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	passphrase := strings.TrimSpace(string(raw))
	if passphrase == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return passphrase, nil
}

func runSessionImport(cmd *cobra.Command, args []string) error {
	p, err := models.ParsePlatform(args[0])
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open cookie export: %w", err)
		}
		defer f.Close()
		r = f
	}

	creds, err := importCookies(r, p)
	if err != nil {
		return err
	}

	manager, err := sessionManager()
	if err != nil {
		return err
	}
	if err := manager.Save(creds); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	out := cmd.OutOrStdout()
	summary := session.Summarize(creds)
	ui.PrintSuccess(out, fmt.Sprintf("Saved %d %s cookies", summary.Count, p))
	ui.PrintInfo(out, "Cookies", strings.Join(summary.Names, ", "))
	if summary.Login == "" {
		ui.PrintWarning(out, fmt.Sprintf("No %s cookie found, the export may be from a logged-out browser", session.LoginCookies[p]))
	}
	return nil
}

// importCookies parses a browser cookie export into credentials for p
func importCookies(r io.Reader, p models.Platform) (*session.Credentials, error) {
	cookies, err := session.ParseCookieExport(r, session.DomainFor(string(p)))
	if err != nil {
		return nil, err
	}
	creds := &session.Credentials{Platform: p, Cookies: cookies, SavedAt: time.Now()}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	manager, err := sessionManager()
	if err != nil {
		return err
	}
	platforms, err := manager.Platforms()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(platforms) == 0 {
		ui.PrintWarning(out, "No saved cookies. Run 'profilegrab session guide <platform>' to get started.")
		return nil
	}
	for _, p := range platforms {
		creds, err := manager.Load(p)
		if err != nil {
			ui.PrintError(out, string(p), err)
			continue
		}
		s := session.Summarize(creds)
		saved := "unknown"
		if !s.SavedAt.IsZero() {
			saved = s.SavedAt.Local().Format("2006-01-02 15:04")
		}
		login := "no login cookie"
		if s.Login != "" {
			login = session.LoginCookies[p] + " " + s.Login
		}
		ui.PrintInfo(out, string(p), fmt.Sprintf("%d cookies, %s, saved %s", s.Count, login, saved))
	}
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	p, err := models.ParsePlatform(args[0])
	if err != nil {
		return err
	}
	manager, err := sessionManager()
	if err != nil {
		return err
	}
	if err := manager.Delete(p); err != nil {
		return fmt.Errorf("failed to delete cookies: %w", err)
	}
	ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted saved %s cookies", p))
	return nil
}
