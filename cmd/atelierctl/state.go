// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/atelier/internal/backup"
	"github.com/tomtom215/atelier/internal/bootstrap"
	"github.com/tomtom215/atelier/internal/logging"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Back up and restore the session state store",
		Long: `Operates on storage.state_path and storage.backup_dir. The server must
be stopped: BadgerDB allows one process per directory.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "backup",
		Short: "Write a backup of the state store",
		Args:  cobra.NoArgs,
		RunE:  runStateBackup,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE:  runStateList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <backup-id>",
		Short: "Verify a backup checksum and stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openBackups(cmd, nil)
			if err != nil {
				return err
			}
			if err := m.ValidateBackup(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %s is valid\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Load a backup into the state store (use an empty state directory)",
		Args:  cobra.ExactArgs(1),
		RunE:  runStateRestore,
	})
	return cmd
}

func openBackups(cmd *cobra.Command, source backup.Source) (*backup.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return bootstrap.OpenBackupManager(cfg, source, logging.Logger())
}

func runStateBackup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := bootstrap.OpenStateStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no state store configured (storage.state_path)")
	}
	defer func() { _ = store.Close() }() //nolint:errcheck // backup already written or failed

	m, err := bootstrap.OpenBackupManager(cfg, store, logging.Logger())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := m.CreateBackup(ctx, backup.TriggerManual, "atelierctl")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", b.ID, b.FileName, b.FileSize)
	return nil
}

func runStateList(cmd *cobra.Command, _ []string) error {
	m, err := openBackups(cmd, nil)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTRIGGER\tSIZE\tFILE")
	for _, b := range m.ListBackups() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"), b.Trigger, b.FileSize, b.FileName)
	}
	return tw.Flush()
}

func runStateRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.InMemory {
		return errors.New("cannot restore into an in-memory state store")
	}
	store, err := bootstrap.OpenStateStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no state store configured (storage.state_path)")
	}

	m, err := bootstrap.OpenBackupManager(cfg, nil, logging.Logger())
	if err != nil {
		_ = store.Close() //nolint:errcheck // open error takes precedence
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.RestoreFromBackup(ctx, args[0], store); err != nil {
		_ = store.Close() //nolint:errcheck // restore error takes precedence
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close state store: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %s into %s\n", args[0], cfg.Storage.StatePath)
	return nil
}
