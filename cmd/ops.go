package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.repo.Migrate(ctx); err != nil {
		return err
	}
	n, err := a.repo.SeedEntries(ctx, a.tables.SeedEntries())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema ready, %d faq entries seeded\n", n)
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scheduler(a.operator()).RunReport(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "report sent")
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if days, _ := cmd.Flags().GetInt("days"); days > 0 {
		a.cfg.Jobs.RetentionDays = days
	}

	n, err := a.scheduler(a.operator()).RunCleanup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rows older than %d days deleted\n", n, a.cfg.Jobs.RetentionDays)
	return nil
}
