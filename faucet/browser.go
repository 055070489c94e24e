package faucet

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Launcher shows the tweet intent to the user. The returned func releases
// whatever Launch opened.
type Launcher interface {
	Launch(ctx context.Context, intentURL string) (func() error, error)
}

// chromeProcess is the part of *launcher.Launcher that owns the browser process.
type chromeProcess interface {
	Launch() (string, error)
	Kill()
	Cleanup()
}

var newChrome = func(headless bool) chromeProcess {
	return launcher.New().Headless(headless)
}

// RodLauncher opens the intent in a Chromium window driven by rod.
type RodLauncher struct {
	Headless bool
	Out      io.Writer
}

func (l RodLauncher) Launch(ctx context.Context, intentURL string) (func() error, error) {
	l.printf("Launching browser...\n")
	chrome := newChrome(l.Headless)
	u, err := chrome.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	release := func() error {
		err := browser.Close()
		chrome.Kill()
		chrome.Cleanup()
		return err
	}

	if err := browser.Connect(); err != nil {
		chrome.Kill()
		chrome.Cleanup()
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}

	// create stealth page
	page, err := stealth.Page(browser)
	if err != nil {
		release()
		return nil, err
	}

	l.printf("Navigating to tweet intent...\n")
	page = page.Context(ctx)
	if err := page.Navigate(intentURL); err != nil {
		release()
		return nil, err
	}
	if err := page.WaitIdle(30 * time.Second); err != nil {
		release()
		return nil, err
	}

	return release, nil
}

func (l RodLauncher) printf(format string, args ...interface{}) {
	if l.Out != nil {
		fmt.Fprintf(l.Out, format, args...)
	}
}

// PrintLauncher writes the intent URL for the user to open by hand.
type PrintLauncher struct {
	Out io.Writer
}

func (l PrintLauncher) Launch(ctx context.Context, intentURL string) (func() error, error) {
	fmt.Fprintf(l.Out, "Tweet your support to get tokens:\n%s\n", intentURL)
	return func() error { return nil }, nil
}
