package cheribuild

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// askForConfirmation prompts the user and defaults to 'yes'. On a
// non-interactive stdin (CI runs) it answers yes without blocking.
func askForConfirmation(format string, a ...any) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}

	reader := bufio.NewReader(os.Stdin)
	fullPrompt := fmt.Sprintf(format, a...) + " [Y/n]: "
	for {
		colArrow.Print("-> ")
		colSuccess.Print(fullPrompt)
		response, err := reader.ReadString('\n')
		if err != nil {
			return false // On error (like Ctrl+D), default to "no"
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response == "y" || response == "yes" || response == "" {
			return true
		}
		if response == "n" || response == "no" {
			return false
		}
		colWarn.Println("Invalid input.")
	}
}
