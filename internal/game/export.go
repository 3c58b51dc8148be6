package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportRound appends a finished round's result to a plain-text log file.
func ExportRound(sess *Session, filename string) error {
	if sess.Result == nil {
		return fmt.Errorf("session %s has no result to export", sess.ID)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session %s - %s\n", sess.ID, time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	for _, p := range sess.Players {
		ps, ok := sess.Result.Scores[p.ID]
		if !ok {
			continue
		}
		choice := string(ps.Choice)
		if choice == "" {
			choice = "(no choice)"
		}
		sb.WriteString(fmt.Sprintf("- %s: %s (%d point(s))\n", ps.Name, choice, ps.Score))
	}
	sb.WriteString(fmt.Sprintf("Outcome: %s\n\n", sess.Result.Outcome))

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
