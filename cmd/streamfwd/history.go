package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/loykin/streamfwd/internal/store"
)

// listHistory prints the most recent runs as a table.
func listHistory(cfg *Config, w io.Writer, limit int) error {
	s, err := store.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	runs, err := s.List(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tEXIT\tCOMMAND")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond), r.ExitCode, r.Command)
	}
	return tw.Flush()
}

// showHistory prints one recorded run including its captured output.
func showHistory(cfg *Config, w io.Writer, idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", idArg)
	}
	s, err := store.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	r, found, err := s.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("run %d not found", id)
	}
	_, _ = fmt.Fprintf(w, "command:  %s\nstarted:  %s\nduration: %s\nexit:     %d\n",
		r.Command, r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond), r.ExitCode)
	writeSection(w, "stdout", r.StdOut)
	writeSection(w, "stderr", r.StdErr)
	return nil
}

func writeSection(w io.Writer, name, text string) {
	if text == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "--- %s ---\n%s", name, text)
	if !strings.HasSuffix(text, "\n") {
		_, _ = fmt.Fprintln(w)
	}
}
