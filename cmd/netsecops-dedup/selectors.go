// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// selector holds a subcommand's mutually exclusive target flags: one
// article, one date, a date range, or everything.
type selector struct {
	article string
	date    string
	from    string
	to      string
	all     bool
}

// selectorFromFlags reads whichever of the selector flags the subcommand
// defines.
func selectorFromFlags(cmd *cobra.Command) selector {
	var s selector
	if cmd.Flags().Lookup("article") != nil {
		s.article, _ = cmd.Flags().GetString("article")
	}
	if cmd.Flags().Lookup("date") != nil {
		s.date, _ = cmd.Flags().GetString("date")
	}
	if cmd.Flags().Lookup("from") != nil {
		s.from, _ = cmd.Flags().GetString("from")
		s.to, _ = cmd.Flags().GetString("to")
	}
	if cmd.Flags().Lookup("all") != nil {
		s.all, _ = cmd.Flags().GetBool("all")
	}
	return s
}

// validate enforces exclusivity and date syntax before any I/O happens.
// Exactly one selector must be chosen.
func (s selector) validate() error {
	chosen := 0
	if s.article != "" {
		chosen++
	}
	if s.date != "" {
		chosen++
	}
	if s.from != "" || s.to != "" {
		chosen++
	}
	if s.all {
		chosen++
	}
	if chosen == 0 {
		return fmt.Errorf("select a target: --article, --date, --from/--to, or --all")
	}
	if chosen > 1 {
		return fmt.Errorf("selectors are mutually exclusive: pick one of --article, --date, --from/--to, --all")
	}

	if s.date != "" {
		if err := checkDate(s.date); err != nil {
			return err
		}
	}
	if s.from != "" || s.to != "" {
		if s.from == "" || s.to == "" {
			return fmt.Errorf("--from and --to must be given together")
		}
		if err := checkDate(s.from); err != nil {
			return err
		}
		if err := checkDate(s.to); err != nil {
			return err
		}
		if s.from > s.to {
			return fmt.Errorf("--from %s is after --to %s", s.from, s.to)
		}
	}
	return nil
}

func checkDate(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return nil
}
