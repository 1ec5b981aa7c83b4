package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/internal/database"

	"github.com/spf13/cobra"
)

var (
	userPassword string
	userName     string
	userRole     string

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage the accounts used by basic authentication",
	}

	userAddCmd = &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: withDatabase(func(cmd *cobra.Command, db database.Database, args []string) error {
			role := database.UserRole(userRole)
			if role != database.RoleAdmin && role != database.RoleNormal {
				return fmt.Errorf("unknown role %q", userRole)
			}
			hash, err := readPassword(cmd)
			if err != nil {
				return err
			}
			u := &database.User{Username: args[0], Password: hash, Name: userName, Role: role, IsActive: true}
			if err := db.CreateUser(cmd.Context(), u); err != nil {
				return fmt.Errorf("failed to create user %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s created\n", u.Username)
			return nil
		}),
	}

	userPasswdCmd = &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change the password of a user",
		Args:  cobra.ExactArgs(1),
		RunE: withDatabase(func(cmd *cobra.Command, db database.Database, args []string) error {
			hash, err := readPassword(cmd)
			if err != nil {
				return err
			}
			if err := db.UpdateUserPassword(cmd.Context(), args[0], hash); err != nil {
				return fmt.Errorf("failed to update user %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password of %s updated\n", args[0])
			return nil
		}),
	}

	userDisableCmd = &cobra.Command{
		Use:   "disable <username>",
		Short: "Prevent a user from logging in",
		Args:  cobra.ExactArgs(1),
		RunE:  withDatabase(setActive(false)),
	}

	userEnableCmd = &cobra.Command{
		Use:   "enable <username>",
		Short: "Allow a disabled user to log in again",
		Args:  cobra.ExactArgs(1),
		RunE:  withDatabase(setActive(true)),
	}

	userListCmd = &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: withDatabase(func(cmd *cobra.Command, db database.Database, _ []string) error {
			users, err := db.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tNAME\tROLE\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.Username, u.Name, u.Role, u.IsActive)
			}
			return w.Flush()
		}),
	}
)

func init() {
	for _, c := range []*cobra.Command{userAddCmd, userPasswdCmd} {
		c.Flags().StringVarP(&userPassword, "password", "p", "", "password; read from stdin when empty")
	}
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userRole, "role", string(database.RoleNormal), "admin or normal")
	userCmd.AddCommand(userAddCmd, userPasswdCmd, userDisableCmd, userEnableCmd, userListCmd)
}

type dbRunFunc func(cmd *cobra.Command, db database.Database, args []string) error

// withDatabase opens the configured database around fn
func withDatabase(fn dbRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, path, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration %s: %w", path, err)
		}
		db, err := database.NewDatabase(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		if cmd.Context() == nil {
			cmd.SetContext(context.Background())
		}
		return fn(cmd, db, args)
	}
}

func setActive(active bool) dbRunFunc {
	return func(cmd *cobra.Command, db database.Database, args []string) error {
		if err := db.SetUserActive(cmd.Context(), args[0], active); err != nil {
			return fmt.Errorf("failed to update user %s: %w", args[0], err)
		}
		state := "disabled"
		if active {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s %s\n", args[0], state)
		return nil
	}
}

// readPassword takes the --password flag or the first line of stdin and
// returns its bcrypt hash.
func readPassword(cmd *cobra.Command) (string, error) {
	password := userPassword
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return auth.HashPassword(password)
}
