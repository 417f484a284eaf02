package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth/internal/app"
	"github.com/MrEthical07/adminauth/internal/logx"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if dev {
				cfg.Env = "dev"
				cfg.Redis.Embedded = true
			}

			logger := logx.New(logx.Config{
				Service: "adminauth",
				Version: Version,
				Env:     cfg.Env,
				Level:   cfg.Log.Level,
				Format:  cfg.Log.Format,
				Output:  os.Stdout,
			})

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "force dev mode with an embedded Redis")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply identity database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			admin, err := app.OpenAdmin(cfg)
			if err != nil {
				return err
			}
			defer admin.Close()

			version, dirty, err := admin.Store().SchemaVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}

func newKeygenCmd() *cobra.Command {
	var privPath, pubPath string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 token signing key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := app.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := kp.WriteFiles(privPath, pubPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privPath, pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&privPath, "private", "jwt_ed25519.pem", "private key output path")
	cmd.Flags().StringVar(&pubPath, "public", "jwt_ed25519.pub.pem", "public key output path")
	return cmd
}
