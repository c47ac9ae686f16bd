package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/ton"
	"github.com/spf13/cobra"
)

const (
	totalFlag   = "total"
	vestingFlag = "vesting"
)

func scheduleCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect unlock schedules",
	}
	c.AddCommand(scheduleHashCommand(), scheduleValidateCommand())
	return c
}

func scheduleHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the hash of a schedule read from file or stdin",
		Long:  "The hash is what a lockup stores instead of a hidden vesting schedule.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := readSchedule(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), schedule.Hash().String())
			return nil
		},
	}
}

func scheduleValidateCommand() *cobra.Command {
	var (
		total       string
		vestingPath string
	)
	c := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a schedule against a total balance and optionally a vesting schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := readSchedule(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			amount := schedule.TotalBalance()
			if total != "" {
				if amount, err = models.ParseBalance(total); err != nil {
					return err
				}
			}
			if err := schedule.AssertValid(amount); err != nil {
				return err
			}

			if vestingPath != "" {
				vesting, err := readSchedule(nil, []string{vestingPath})
				if err != nil {
					return err
				}
				if err := vesting.AssertValid(amount); err != nil {
					return fmt.Errorf("vesting: %w", err)
				}
				if err := schedule.AssertValidTerminationSchedule(vesting); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d checkpoints, total %s\n", len(schedule), amount)
			return nil
		},
	}
	c.Flags().StringVar(&total, totalFlag, "", "expected total balance in nanoTON (default: last checkpoint)")
	c.Flags().StringVar(&vestingPath, vestingFlag, "", "vesting schedule file the lockup must not run ahead of")
	return c
}

func accountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "account <address>",
		Short: "Print the canonical form of a TON address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ton.NormalizeAccount(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// readSchedule decodes a JSON schedule from args[0], or from stdin when no
// file is given.
func readSchedule(stdin io.Reader, args []string) (models.Schedule, error) {
	var r io.Reader = stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var schedule models.Schedule
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&schedule); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return schedule, nil
}
