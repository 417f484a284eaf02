package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth/internal/app"
)

func withAdmin(opts *rootOptions, fn func(cmd *cobra.Command, args []string, admin *app.Admin) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := opts.load()
		if err != nil {
			return err
		}
		admin, err := app.OpenAdmin(cfg)
		if err != nil {
			return err
		}
		defer admin.Close()
		if err := admin.ConnectSessions(cmd.Context(), cfg); err != nil {
			return err
		}
		return fn(cmd, args, admin)
	}
}

func newHashPasswordCmd(opts *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print an argon2id hash and salt for a password",
		Args:  cobra.NoArgs,
		RunE: withAdmin(opts, func(cmd *cobra.Command, _ []string, admin *app.Admin) error {
			plain, err := readSecret(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, salt, err := admin.HashPassword(plain)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hash: %s\nsalt: %s\n", hash, salt)
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "password to hash (read from stdin when empty)")
	return cmd
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage admin accounts",
	}

	var (
		password string
		roles    []string
	)
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(opts, func(cmd *cobra.Command, args []string, admin *app.Admin) error {
			plain, err := readSecret(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			id, err := admin.CreateUser(cmd.Context(), args[0], plain, roles...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", args[0], id)
			return nil
		}),
	}
	create.Flags().StringVar(&password, "password", "", "initial password (read from stdin when empty)")
	create.Flags().StringSliceVar(&roles, "role", nil, "role key to grant (repeatable)")

	var newPassword string
	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Reset an account password",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(opts, func(cmd *cobra.Command, args []string, admin *app.Admin) error {
			plain, err := readSecret(newPassword, cmd.InOrStdin())
			if err != nil {
				return err
			}
			version, err := admin.ResetPassword(cmd.Context(), args[0], plain)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated, version %d\n", version)
			if !admin.Live() {
				fmt.Fprintln(cmd.OutOrStdout(), offlineNote("existing sessions stay valid; call POST /admin/users/{userId}/force-logout to end them now"))
			}
			return nil
		}),
	}
	passwd.Flags().StringVar(&newPassword, "password", "", "new password (read from stdin when empty)")

	cmd.AddCommand(create, passwd)
	return cmd
}

func newRoleCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles",
	}

	var (
		name  string
		perms []string
	)
	create := &cobra.Command{
		Use:   "create <key>",
		Short: "Create a role with a permission set",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(opts, func(cmd *cobra.Command, args []string, admin *app.Admin) error {
			id, err := admin.CreateRole(cmd.Context(), args[0], name, perms...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created role %s (%s)\n", args[0], id)
			return nil
		}),
	}
	create.Flags().StringVar(&name, "name", "", "display name (defaults to the key)")
	create.Flags().StringSliceVar(&perms, "perm", nil, "permission string, e.g. system:user:list (repeatable)")

	grant := &cobra.Command{
		Use:   "grant <username> <role>",
		Short: "Grant a role to an account",
		Args:  cobra.ExactArgs(2),
		RunE: withAdmin(opts, func(cmd *cobra.Command, args []string, admin *app.Admin) error {
			if err := admin.GrantRole(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s\n", args[1], args[0])
			if !admin.Live() {
				fmt.Fprintln(cmd.OutOrStdout(), offlineNote("cached permission sets expire after permission_ttl; call POST /admin/permissions/invalidate to apply now"))
			}
			return nil
		}),
	}

	cmd.AddCommand(create, grant)
	return cmd
}

func offlineNote(msg string) string {
	return "note: session cache not reachable (embedded redis); " + msg
}
