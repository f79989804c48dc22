package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/isbnscan/internal/isbn"
	"github.com/jackzampolin/isbnscan/internal/output"
)

var errInvalidISBN = errors.New("invalid ISBN")

type validation struct {
	Input string `json:"input" yaml:"input"`
	ISBN  string `json:"isbn" yaml:"isbn"`
	Valid bool   `json:"valid" yaml:"valid"`
}

type validations []validation

func (v validations) WriteText(w io.Writer) error {
	for _, r := range v {
		state := "invalid"
		if r.Valid {
			state = "valid"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.Input, state); err != nil {
			return err
		}
	}
	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate ISBN...",
	Short: "Check ISBN checksums",
	Long: `Validate the check digit of each argument. Hyphens and spaces are
ignored. Exits with status 1 if any argument is invalid.

Examples:
  isbnscan validate 978-0-306-40615-7
  isbnscan validate 0306406152 030640615X`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results := make(validations, 0, len(args))
		invalid := 0
		for _, arg := range args {
			n := isbn.Normalize(arg)
			ok := isbn.Valid(n)
			if !ok {
				invalid++
			}
			results = append(results, validation{Input: arg, ISBN: n, Valid: ok})
		}
		if err := output.Print(results); err != nil {
			return err
		}
		if invalid > 0 {
			return fmt.Errorf("%w: %d of %d", errInvalidISBN, invalid, len(args))
		}
		return nil
	},
}
