package main

import (
	"fmt"
	"io"

	"github.com/pkg/browser"
)

// openBrowser opens url in the default browser. Output of the launcher is
// discarded.
func openBrowser(url string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
