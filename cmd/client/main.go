// nickchat TUI client.
//
// Screens
// -------
//   stateNick – centered nickname prompt; repeats until the server accepts
//   stateChat – full-screen chat with scrollable message viewport
//
// Concurrency
// -----------
//   A single goroutine reads newline-delimited frames from the TCP connection
//   and forwards them to the lines channel.  The Bubbletea event loop consumes
//   one line at a time via waitForLine (a tea.Cmd), immediately queuing the
//   next read after each line is processed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"nickchat/internal/config"
	"nickchat/internal/protocol"
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", cfg.Addr())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	// lines bridges the TCP reader goroutine and the Bubbletea event loop.
	lines := make(chan string, 64)

	// Reader goroutine: TCP → lines channel.
	go func() {
		defer close(lines)
		r := protocol.NewReader(conn, 1<<16)
		for {
			f, err := r.ReadFrame()
			if err != nil {
				return
			}
			lines <- f.Text
		}
	}()

	p := tea.NewProgram(
		newModel(conn, lines),
		tea.WithAltScreen(),       // use the alternate screen buffer
		tea.WithMouseCellMotion(), // enable mouse wheel scrolling
	)
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if m, ok := final.(model); ok && m.errMsg != "" {
		fmt.Fprintln(os.Stderr, m.errMsg)
	}
}
