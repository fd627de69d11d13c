package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rowjay/db-admin-utility/internal/config"
	"github.com/rowjay/db-admin-utility/internal/cryptoutil"
	"github.com/rowjay/db-admin-utility/internal/dispatch"
	"github.com/rowjay/db-admin-utility/internal/filestore"
	"github.com/rowjay/db-admin-utility/internal/lifecycle"
	"github.com/rowjay/db-admin-utility/internal/logging"
	"github.com/rowjay/db-admin-utility/internal/pgpool"
	"github.com/rowjay/db-admin-utility/internal/pgtools"
	"github.com/rowjay/db-admin-utility/internal/registry"
	"github.com/rowjay/db-admin-utility/internal/storage"
	"github.com/rowjay/db-admin-utility/internal/version"
)

type rootFlags struct {
	ConfigPath     string
	LogLevel       string
	LogFormat      string
	MasterPassword string
}

func main() {
	root := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "dba",
		Short: "Database lifecycle and backup/restore administration",
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")
	rootCmd.PersistentFlags().StringVar(&root.MasterPassword, "master-password", "", "Master password (or DBA_MASTER_PASSWORD)")

	rootCmd.AddCommand(newCreateCmd(root))
	rootCmd.AddCommand(newDuplicateCmd(root))
	rootCmd.AddCommand(newRenameCmd(root))
	rootCmd.AddCommand(newDropCmd(root))
	rootCmd.AddCommand(newDumpCmd(root))
	rootCmd.AddCommand(newRestoreCmd(root))
	rootCmd.AddCommand(newMigrateCmd(root))
	rootCmd.AddCommand(newListCmd(root))
	rootCmd.AddCommand(newExistsCmd(root))
	rootCmd.AddCommand(newLanguagesCmd(root))
	rootCmd.AddCommand(newPasswdCmd(root))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env wires one CLI invocation: config, engine, dispatcher.
type env struct {
	cfg        *config.Config
	pool       *pgpool.Pool
	svc        *lifecycle.Service
	dispatcher *dispatch.Dispatcher
}

func buildEnv(root *rootFlags) (*env, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)

	pool := pgpool.New(cfg.Server, logger)
	runner := pgtools.NewRunner(cfg.Server)
	files := filestore.New(cfg.Filestore.Root)
	boot := registry.NewCommand(cfg.Registry.Command, logger)
	svc := lifecycle.New(cfg, pool, runner, files, boot, logger)
	dispatcher := dispatch.New(svc, func() string { return cfg.Master.Password })
	return &env{cfg: cfg, pool: pool, svc: svc, dispatcher: dispatcher}, nil
}

func (e *env) close() { e.pool.CloseAll() }

func (root *rootFlags) credential() string {
	if root.MasterPassword != "" {
		return root.MasterPassword
	}
	return os.Getenv("DBA_MASTER_PASSWORD")
}

func newCreateCmd(root *rootFlags) *cobra.Command {
	var demo bool
	var lang, adminPassword, adminLogin, country string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new database from the template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			_, err = e.dispatcher.Dispatch(cmd.Context(), "create_database",
				[]any{root.credential(), args[0], demo, lang, adminPassword, adminLogin, country})
			return err
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "Seed demonstration data")
	cmd.Flags().StringVar(&lang, "lang", "en_US", "Initial language")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "admin", "Administrator password")
	cmd.Flags().StringVar(&adminLogin, "admin-login", "admin", "Administrator login")
	cmd.Flags().StringVar(&country, "country", "", "Company country code")
	return cmd
}

func newDuplicateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <source> <target>",
		Short: "Duplicate a database and its filestore",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			_, err = e.dispatcher.Dispatch(cmd.Context(), "duplicate_database",
				[]any{root.credential(), args[0], args[1]})
			return err
		},
	}
}

func newRenameCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a database and move its filestore",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			_, err = e.dispatcher.Dispatch(cmd.Context(), "rename",
				[]any{root.credential(), args[0], args[1]})
			return err
		},
	}
}

func newDropCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a database and remove its filestore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			res, err := e.dispatcher.Dispatch(cmd.Context(), "drop",
				[]any{root.credential(), args[0]})
			if err != nil {
				return err
			}
			if dropped, ok := res.(bool); ok && !dropped {
				fmt.Fprintf(cmd.OutOrStdout(), "database %s does not exist\n", args[0])
			}
			return nil
		},
	}
}

func newDumpCmd(root *rootFlags) *cobra.Command {
	var format, output, key, encryptKey string

	cmd := &cobra.Command{
		Use:   "dump <name>",
		Short: "Dump a database to an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			res, err := e.dispatcher.Dispatch(cmd.Context(), "dump",
				[]any{root.credential(), args[0], format})
			if err != nil {
				return err
			}
			payload := res.([]byte)

			if key != "" {
				return pushArchive(cmd.Context(), e.cfg, args[0], format, key, encryptKey, payload)
			}
			if output != "" {
				return os.WriteFile(output, payload, 0o600)
			}
			_, err = cmd.OutOrStdout().Write(payload)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "zip", "Archive format (zip or custom)")
	cmd.Flags().StringVar(&output, "output", "", "Write the archive to a file (default stdout)")
	cmd.Flags().StringVar(&key, "key", "", "Push the archive to the configured storage backend under this key (\"auto\" to generate)")
	cmd.Flags().StringVar(&encryptKey, "encrypt-key", "", "Encrypt the stored archive with this key (base64 or hex)")
	return cmd
}

// pushArchive streams the archive into the object store, optionally
// through an encrypting writer.
func pushArchive(ctx context.Context, cfg *config.Config, dbName, format, key, encryptKey string, payload []byte) error {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	if key == "auto" {
		key = storage.DumpKey(cfg.Storage.Prefix, dbName, format, time.Now())
	}

	pipeReader, pipeWriter := io.Pipe()
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer pipeReader.Close()
		return store.Put(egCtx, key, pipeReader, -1, map[string]string{"dba-dump": "true"})
	})
	eg.Go(func() error {
		writer := io.WriteCloser(pipeWriter)
		if encryptKey != "" {
			keyBytes, err := cryptoutil.ParseKey(encryptKey)
			if err != nil {
				_ = pipeWriter.CloseWithError(err)
				return err
			}
			enc, err := cryptoutil.EncryptWriter(pipeWriter, keyBytes)
			if err != nil {
				_ = pipeWriter.CloseWithError(err)
				return err
			}
			writer = closeBoth{enc, pipeWriter}
		}
		if _, err := writer.Write(payload); err != nil {
			_ = pipeWriter.CloseWithError(err)
			return err
		}
		return writer.Close()
	})
	return eg.Wait()
}

type closeBoth struct {
	io.WriteCloser
	inner io.Closer
}

func (c closeBoth) Close() error {
	if err := c.WriteCloser.Close(); err != nil {
		return err
	}
	return c.inner.Close()
}

func newRestoreCmd(root *rootFlags) *cobra.Command {
	var input, key, decryptKey string
	var asCopy bool

	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Restore a database from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" && key == "" {
				return fmt.Errorf("--input or --key is required")
			}
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()

			var payload []byte
			if key != "" {
				payload, err = pullArchive(cmd.Context(), e.cfg, key, decryptKey)
			} else {
				payload, err = os.ReadFile(input)
			}
			if err != nil {
				return err
			}
			_, err = e.dispatcher.Dispatch(cmd.Context(), "restore",
				[]any{root.credential(), args[0], payload, asCopy})
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Archive file to restore from")
	cmd.Flags().StringVar(&key, "key", "", "Fetch the archive from the configured storage backend")
	cmd.Flags().StringVar(&decryptKey, "decrypt-key", "", "Decrypt the stored archive with this key")
	cmd.Flags().BoolVar(&asCopy, "copy", false, "Restore as a copy (regenerate the installation identifier)")
	return cmd
}

func pullArchive(ctx context.Context, cfg *config.Config, key, decryptKey string) ([]byte, error) {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload := io.Reader(reader)
	if decryptKey != "" {
		keyBytes, err := cryptoutil.ParseKey(decryptKey)
		if err != nil {
			return nil, err
		}
		payload, err = cryptoutil.DecryptReader(payload, keyBytes)
		if err != nil {
			return nil, err
		}
	}
	return io.ReadAll(payload)
}

func newMigrateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <name>...",
		Short: "Re-apply pending upgrades to databases, sequentially",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			_, err = e.dispatcher.Dispatch(cmd.Context(), "migrate_databases",
				[]any{root.credential(), args})
			return err
		},
	}
}

func newListCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List databases on the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			res, err := e.dispatcher.Dispatch(cmd.Context(), "list", nil)
			if err != nil {
				return err
			}
			for _, name := range res.([]string) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newExistsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <name>",
		Short: "Check whether a database is reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			res, err := e.dispatcher.Dispatch(cmd.Context(), "db_exist", []any{args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.(bool))
			return nil
		},
	}
}

func newLanguagesCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List languages available for new databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			res, err := e.dispatcher.Dispatch(cmd.Context(), "list_lang", nil)
			if err != nil {
				return err
			}
			for _, lang := range res.([]lifecycle.Language) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", lang.Code, lang.Name)
			}
			return nil
		},
	}
}

func newPasswdCmd(root *rootFlags) *cobra.Command {
	var newPassword string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if newPassword == "" {
				return fmt.Errorf("--new-password is required")
			}
			e, err := buildEnv(root)
			if err != nil {
				return err
			}
			defer e.close()
			_, err = e.dispatcher.Dispatch(cmd.Context(), "change_admin_password",
				[]any{root.credential(), newPassword})
			return err
		},
	}
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New master password")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64 or hex)")

	cmd.AddCommand(encrypt)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dba %s for %s (commit %s, built %s)\n", version.Version, version.Release, version.Commit, version.Date)
		},
	}
}
