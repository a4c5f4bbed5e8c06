package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/platform/s3"
)

// backupStore is the S3 side of registry backups.
type backupStore interface {
	Upload(ctx context.Context, src s3.Snapshotter) (s3.Object, error)
	List(ctx context.Context) ([]s3.Object, error)
	Download(ctx context.Context, key string, w io.Writer) (string, error)
	Prune(ctx context.Context, keep int) ([]string, error)
}

// newBackups connects to the configured bucket.
var newBackups = func(ctx context.Context, cfg config.BackupConfig) (backupStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("backup.bucket is not configured")
	}
	client, err := s3.NewClient(ctx, s3.Options{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		PathStyle: cfg.Endpoint != "",
	})
	if err != nil {
		return nil, err
	}
	return s3.NewBackups(client, cfg.Bucket, cfg.Prefix), nil
}

// RegistryBackup uploads a registry snapshot. When keep is positive, older
// snapshots beyond the newest keep are deleted afterwards.
func RegistryBackup(ctx context.Context, configPath string, keep int) (err error) {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	if ctx, err = contextWithLogger(ctx, cfg.Logging); err != nil {
		return err
	}
	backups, err := newBackups(ctx, cfg.Backup)
	if err != nil {
		return err
	}

	store, err := openRegistry(ctx, cfg.Registry.Path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	obj, err := backups.Upload(ctx, store)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Printf("Registry backed up to s3://%s/%s (%d bytes)\n", cfg.Backup.Bucket, obj.Key, obj.Size)

	if keep > 0 {
		deleted, err := backups.Prune(ctx, keep)
		if err != nil {
			return fmt.Errorf("failed to prune old backups: %w", err)
		}
		for _, key := range deleted {
			fmt.Printf("  pruned %s\n", key)
		}
	}
	return nil
}

// RegistryBackups lists the stored snapshots, oldest first.
func RegistryBackups(ctx context.Context, configPath string) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	backups, err := newBackups(ctx, cfg.Backup)
	if err != nil {
		return err
	}

	objects, err := backups.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(objects) == 0 {
		fmt.Println("No backups found.")
		return nil
	}
	for _, obj := range objects {
		fmt.Printf("%s  %8d  %s\n", obj.LastModified.UTC().Format("2006-01-02 15:04:05"), obj.Size, obj.Key)
	}
	return nil
}

// RegistryRestore downloads a snapshot (the newest when key is empty) and
// installs it at output, or at the configured registry path when output is
// empty. The snapshot is opened before it replaces anything. An existing
// file is only replaced with force.
func RegistryRestore(ctx context.Context, configPath, key, output string, force bool) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	if ctx, err = contextWithLogger(ctx, cfg.Logging); err != nil {
		return err
	}
	if output == "" {
		output = cfg.Registry.Path
	}
	if fileExists(output) && !force {
		return fmt.Errorf("%s already exists; pass --force to replace it", output)
	}

	backups, err := newBackups(ctx, cfg.Backup)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(output), ".edgefleet-restore-*.db")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	restored, err := backups.Download(ctx, key, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to download backup: %w", err)
	}

	count, err := countNodes(ctx, tmpPath)
	if err != nil {
		return fmt.Errorf("backup %s is not a valid registry: %w", restored, err)
	}

	if err := os.Rename(tmpPath, output); err != nil {
		return fmt.Errorf("failed to install restored registry: %w", err)
	}
	fmt.Printf("Restored %s to %s (%d nodes)\n", restored, output, count)
	return nil
}

// RegistryPrune deletes all but the newest keep snapshots.
func RegistryPrune(ctx context.Context, configPath string, keep int) error {
	if keep < 1 {
		return fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	backups, err := newBackups(ctx, cfg.Backup)
	if err != nil {
		return err
	}

	deleted, err := backups.Prune(ctx, keep)
	if err != nil {
		return fmt.Errorf("failed to prune backups: %w", err)
	}
	fmt.Printf("Pruned %d backups\n", len(deleted))
	for _, key := range deleted {
		fmt.Printf("  %s\n", key)
	}
	return nil
}

// countNodes opens a registry file, migrating it if needed, and counts its nodes.
func countNodes(ctx context.Context, path string) (n int, err error) {
	store, err := openRegistry(ctx, path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	nodes, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}
