package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"sessiond/services/registry"
)

// TerminalPrompter renders the conflict decision on a terminal. It is the
// presentation half of the handshake and holds no policy: it shows the
// competing device and returns the user's choice.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// ResolveConflict blocks until the user picks a side or the context is
// cancelled.
func (p *TerminalPrompter) ResolveConflict(ctx context.Context, conflict registry.Session) (Choice, error) {
	fmt.Fprintf(p.Out, "\nYour account is signed in on another device:\n")
	fmt.Fprintf(p.Out, "  %s (%s, %s), last active %s\n\n",
		conflict.DeviceName, conflict.OperatingSystem, conflict.BrowserName,
		conflict.LastActiveAt.Format(time.RFC1123))
	fmt.Fprintf(p.Out, "  [1] Use this device (the other device will be signed out)\n")
	fmt.Fprintf(p.Out, "  [2] Keep the existing device (cancel this login)\n")

	type answer struct {
		choice Choice
		err    error
	}
	result := make(chan answer, 1)

	go func() {
		scanner := bufio.NewScanner(p.In)
		for {
			fmt.Fprintf(p.Out, "choice> ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					result <- answer{err: err}
					return
				}
				result <- answer{err: io.EOF}
				return
			}
			switch strings.TrimSpace(scanner.Text()) {
			case "1":
				result <- answer{choice: ChoiceUseThisDevice}
				return
			case "2":
				result <- answer{choice: ChoiceKeepExisting}
				return
			}
			fmt.Fprintf(p.Out, "please answer 1 or 2\n")
		}
	}()

	select {
	case <-ctx.Done():
		return ChoiceKeepExisting, ctx.Err()
	case a := <-result:
		return a.choice, a.err
	}
}
