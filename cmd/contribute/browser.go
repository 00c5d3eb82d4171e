package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/angelmondragon/contributions-backend/internal/checkoutflow"
)

// browserCommand returns the launcher for the host OS.
func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// browserOpener launches the system browser. A missing launcher counts as a blocked
// popup so the presenter falls back to printing the link.
type browserOpener struct {
	out io.Writer

	mu   sync.Mutex
	last *browserWindow
}

func newBrowserOpener(out io.Writer) *browserOpener {
	return &browserOpener{out: out}
}

// current returns the most recently opened window, if any.
func (b *browserOpener) current() *browserWindow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *browserOpener) Open(ctx context.Context, spec checkoutflow.WindowSpec) (checkoutflow.Window, error) {
	name, args := browserCommand(runtime.GOOS, spec.URL)
	if _, err := exec.LookPath(name); err != nil {
		return nil, nil
	}
	if err := exec.CommandContext(ctx, name, args...).Start(); err != nil {
		return nil, nil
	}
	fmt.Fprintf(b.out, "Opened checkout in your browser (%s).\n", spec.Features())
	win := &browserWindow{}
	b.mu.Lock()
	b.last = win
	b.mu.Unlock()
	return win, nil
}

// browserWindow cannot observe the real tab; the donor reports closing it.
type browserWindow struct {
	mu     sync.Mutex
	closed bool
}

func (w *browserWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *browserWindow) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

type stdoutNavigator struct {
	out io.Writer
}

func (n stdoutNavigator) Navigate(_ context.Context, url string) error {
	_, err := fmt.Fprintf(n.out, "Complete your payment at:\n  %s\nRun this command again afterwards to confirm it.\n", url)
	return err
}
