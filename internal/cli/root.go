// Package cli implements the adminauth command line.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth/internal/app"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "adminauth",
		Short: "Authentication and session service for the admin backend",
		Long: `adminauth issues and rotates admin login tokens, tracks online sessions
in Redis and enforces role-based permissions for the admin API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newKeygenCmd(),
		newHashPasswordCmd(opts),
		newUserCmd(opts),
		newRoleCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) load() (app.Config, error) {
	return app.LoadConfig(o.configPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "adminauth %s\n", Version)
			return err
		},
	}
}

// readSecret returns flagValue, or the first line of in when it is empty.
func readSecret(flagValue string, in io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required (flag or stdin)")
	}
	return line, nil
}
