package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/verte-zerg/riotswitch/internal/model"
)

// PasswordMask replaces passwords in listings. Its length is fixed.
const PasswordMask = "••••••••"

// Options controls account listings.
type Options struct {
	ShowPasswords bool
	// Width truncates lines to this many columns; zero disables truncation.
	Width int
}

// Accounts writes an aligned account table to w.
func Accounts(w io.Writer, accounts []model.Account, opts Options) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(w, "No accounts saved.")
		return err
	}
	rows := make([][]string, 0, len(accounts))
	for i, acc := range accounts {
		password := PasswordMask
		if opts.ShowPasswords {
			password = acc.Password
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), acc.Username, acc.Region, password})
	}
	lines := formatTable([]string{"#", "Username", "Region", "Password"}, rows, map[int]bool{0: true})
	lines = truncateLines(lines, opts.Width)
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// Regions writes region codes in rows of at most perLine entries.
func Regions(w io.Writer, regions []string, perLine int) error {
	if perLine <= 0 {
		perLine = len(regions)
	}
	for start := 0; start < len(regions); start += perLine {
		end := min(start+perLine, len(regions))
		if _, err := fmt.Fprintln(w, strings.Join(regions[start:end], " ")); err != nil {
			return err
		}
	}
	return nil
}

// TerminalWidth returns the column count of f, or 0 when f is not a terminal.
func TerminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}
