package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/riotswitch/internal/model"
	"github.com/verte-zerg/riotswitch/internal/render"
	"github.com/verte-zerg/riotswitch/internal/store"
)

const regionsPerLine = 10

var (
	listShowPasswords bool

	saveUsername string
	savePassword string
	saveRegion   string

	loginSpeed    string
	loginStrategy string
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved accounts",
		Args:  cobra.NoArgs,
		RunE:  runListCmd,
	}
	cmd.Flags().BoolVar(&listShowPasswords, "show-passwords", false, "print passwords in clear text")
	return cmd
}

func runListCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := render.Options{ShowPasswords: listShowPasswords}
	if cmd.OutOrStdout() == os.Stdout {
		opts.Width = render.TerminalWidth(os.Stdout)
	}
	if err := render.Accounts(cmd.OutOrStdout(), a.ctrl.Accounts(cmd.Context()), opts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List supported region codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := render.Regions(cmd.OutOrStdout(), a.ctrl.Regions(), regionsPerLine); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		},
	}
}

func newSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Add or update an account",
		Args:  cobra.NoArgs,
		RunE:  runSaveCmd,
	}
	cmd.Flags().StringVarP(&saveUsername, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&saveRegion, "region", "r", model.DefaultRegion, "region code")
	cmd.Flags().StringVarP(&savePassword, "password", "p", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func runSaveCmd(cmd *cobra.Command, _ []string) error {
	password := savePassword
	if password == "" {
		p, err := promptPassword(cmd)
		if err != nil {
			return err
		}
		password = p
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	region := strings.ToUpper(strings.TrimSpace(saveRegion))
	return printResult(cmd, a.ctrl.SaveAccount(cmd.Context(), strings.TrimSpace(saveUsername), password, region))
}

// promptPassword reads a password without echo from a terminal, or a single
// line from piped stdin.
func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return printResult(cmd, a.ctrl.DeleteAccount(cmd.Context(), args[0]))
		},
	}
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Type an account's credentials into the Riot Client",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&loginSpeed, "speed", "", "typing speed: slow, default or fast (default: saved setting)")
	cmd.Flags().StringVar(&loginStrategy, "strategy", "", "focus strategy: auto, template or offset")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	speed := loginSpeed
	if !cmd.Flags().Changed("speed") {
		speed = a.ctrl.SpeedSetting(cmd.Context()).String()
	}
	return printResult(cmd, a.ctrl.Login(cmd.Context(), args[0], speed))
}

func newSpeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "speed [slow|default|fast|0|1|2]",
		Short: "Show or set the typing speed",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSpeedCmd,
	}
}

func runSpeedCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		speed := a.ctrl.SpeedSetting(cmd.Context())
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (%s between actions)\n", speed, speed.Delay()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	speed, ok := model.LookupSpeed(args[0])
	if !ok {
		return fmt.Errorf("unknown speed %q (use slow, default, fast or 0-2)", args[0])
	}
	return printResult(cmd, a.ctrl.SetSpeedSetting(cmd.Context(), int(speed)))
}

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <username>",
		Short: "Copy an account's password to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acc, ok := a.ctrl.Account(cmd.Context(), args[0])
			if !ok {
				return printResult(cmd, model.Fail("Account '%s' not found", args[0]))
			}
			if err := clipboard.WriteAll(acc.Password); err != nil {
				return fmt.Errorf("failed to copy to clipboard: %w", err)
			}
			return printResult(cmd, model.Ok("Password for '%s' copied to clipboard", acc.Username))
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <document>",
		Short: "Import a JSON account document into the SQLite store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			db, ok := a.store.(*store.SQLiteStore)
			if !ok {
				return fmt.Errorf("import requires --backend %s", backendSQLite)
			}
			n, err := db.ImportDocument(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", args[0], err)
			}
			return printResult(cmd, model.Ok("Imported %d accounts from %s", n, args[0]))
		},
	}
}
