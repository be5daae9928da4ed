package main

import (
	"fmt"
	"io"
	"strings"
)

// uiMode is the --ui flag value. It satisfies pflag.Value.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

var uiModes = []uiMode{uiModeAuto, uiModeOn, uiModeOff}

func readUIMode(value string) (uiMode, error) {
	v := uiMode(strings.ToLower(strings.TrimSpace(value)))
	if v == "" {
		return uiModeAuto, nil
	}
	for _, m := range uiModes {
		if v == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

func (m *uiMode) Set(value string) error {
	parsed, err := readUIMode(value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *uiMode) String() string {
	if *m == "" {
		return string(uiModeAuto)
	}
	return string(*m)
}

func (*uiMode) Type() string { return "mode" }

// shouldUseTUI decides whether progress is rendered interactively. In auto
// mode a single job is reported by the plain summary.
func shouldUseTUI(mode uiMode, jobs int, out io.Writer) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	}
	return jobs > 1 && isTerminal(out)
}
