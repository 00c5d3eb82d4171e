package checkoutflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Popup geometry for the hosted checkout window.
const (
	PopupWidth  = 500
	PopupHeight = 700
)

// PresentationHandle is whatever is showing the checkout page.
type PresentationHandle interface {
	// Closed reports whether the donor dismissed the checkout surface.
	Closed() bool
	Close() error
	// Polls reports whether verification polling should run for this surface.
	Polls() bool
}

// Presenter delivers a checkout URL to the donor.
type Presenter interface {
	Present(ctx context.Context, url string) (PresentationHandle, error)
}

// Window is an opened popup.
type Window interface {
	Closed() bool
	Close() error
}

// WindowSpec positions a popup on screen.
type WindowSpec struct {
	URL    string
	Width  int
	Height int
	Left   int
	Top    int
}

// Features renders the spec in window.open feature-string form.
func (s WindowSpec) Features() string {
	return fmt.Sprintf("width=%d,height=%d,left=%d,top=%d,scrollbars=yes,resizable=yes", s.Width, s.Height, s.Left, s.Top)
}

// WindowOpener opens popups. A nil Window with a nil error means the popup was blocked.
type WindowOpener interface {
	Open(ctx context.Context, spec WindowSpec) (Window, error)
}

// Navigator replaces the current page with url.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Screen is the available display area used to center the popup.
type Screen struct {
	Width  int
	Height int
}

// PopupPresenter opens checkout in a centered popup and falls back to a full-page
// redirect when popups are unavailable.
type PopupPresenter struct {
	opener   WindowOpener
	screen   Screen
	fallback Presenter
}

func NewPopupPresenter(opener WindowOpener, screen Screen, fallback Presenter) (*PopupPresenter, error) {
	if opener == nil {
		return nil, errors.New("window opener required")
	}
	if fallback == nil {
		return nil, errors.New("fallback presenter required")
	}
	return &PopupPresenter{opener: opener, screen: screen, fallback: fallback}, nil
}

// CenteredSpec computes the popup rectangle for url on screen.
func CenteredSpec(url string, screen Screen) WindowSpec {
	return WindowSpec{
		URL:    url,
		Width:  PopupWidth,
		Height: PopupHeight,
		Left:   max(0, (screen.Width-PopupWidth)/2),
		Top:    max(0, (screen.Height-PopupHeight)/2),
	}
}

func (p *PopupPresenter) Present(ctx context.Context, url string) (PresentationHandle, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("checkout url required")
	}
	win, err := p.opener.Open(ctx, CenteredSpec(url, p.screen))
	if err != nil || win == nil {
		return p.fallback.Present(ctx, url)
	}
	return &popupHandle{win: win}, nil
}

type popupHandle struct {
	win  Window
	once sync.Once
	err  error
}

func (h *popupHandle) Closed() bool { return h.win.Closed() }
func (h *popupHandle) Polls() bool  { return true }

func (h *popupHandle) Close() error {
	h.once.Do(func() {
		if !h.win.Closed() {
			h.err = h.win.Close()
		}
	})
	return h.err
}

// RedirectPresenter sends the whole page to checkout. The gateway's callback brings
// the donor back, so no polling runs.
type RedirectPresenter struct {
	nav Navigator
}

func NewRedirectPresenter(nav Navigator) (*RedirectPresenter, error) {
	if nav == nil {
		return nil, errors.New("navigator required")
	}
	return &RedirectPresenter{nav: nav}, nil
}

func (r *RedirectPresenter) Present(ctx context.Context, url string) (PresentationHandle, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("checkout url required")
	}
	if err := r.nav.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigate to checkout: %w", err)
	}
	return redirectHandle{}, nil
}

type redirectHandle struct{}

func (redirectHandle) Closed() bool { return false }
func (redirectHandle) Close() error { return nil }
func (redirectHandle) Polls() bool  { return false }
