package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// loadMsg returns msg, or the content it points to when it is an http(s)
// or file:// URL.
func loadMsg(ctx context.Context, client *http.Client, msg string) (string, error) {
	if strings.HasPrefix(msg, "https://") || strings.HasPrefix(msg, "http://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg, nil)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("could not load %s: %s", msg, resp.Status)
		}
		bts, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		return string(bts), nil
	}

	if strings.HasPrefix(msg, "file://") {
		bts, err := os.ReadFile(strings.TrimPrefix(msg, "file://"))
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		return string(bts), nil
	}

	return msg, nil
}

// readStdin returns what was piped in, or nothing when stdin is a
// terminal.
func readStdin() (string, error) {
	if isInputTTY() {
		return "", nil
	}
	bts, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", cliError{err, "Unable to read stdin."}
	}
	return string(bts), nil
}

// buildPrompt joins the prompt from the arguments with the piped content.
func buildPrompt(prefix, stdin string) string {
	prefix = strings.TrimSpace(prefix)
	stdin = strings.TrimSpace(stdin)
	switch {
	case prefix == "":
		return stdin
	case stdin == "":
		return prefix
	}
	return prefix + "\n\n" + stdin
}
