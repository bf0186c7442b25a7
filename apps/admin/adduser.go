package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		name, uname, email string
		roles              []string
		isAdmin            bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the one with the same username or email. The password is prompted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" || email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			if isAdmin {
				roles = append(roles, user.RoleAdminOwner)
			}
			pwd, err := cli.promptPassword("Enter password:")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			usr, err := cli.addUser(name, uname, email, pwd, roles)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "user %s (%s) saved\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "The user's full name")
	cmd.Flags().StringVar(&uname, "username", "", "The user's username")
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "A role to grant (repeatable), e.g. admin:bursar")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant the admin:owner role")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) (user.User, error) {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	roles = core.CleanStrings(roles)

	for _, role := range roles {
		if user.RolePriority(role) == 0 {
			return user.User{}, fmt.Errorf("unknown role %q", role)
		}
	}

	exists := true
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: email})
	}
	if err != nil {
		if err != user.ErrNotFound {
			return user.User{}, err
		}
		exists = false
		usr = user.User{Username: uname, Email: email}
	}

	now := time.Now().UTC()
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if len(roles) > 0 {
		usr.Roles = roles
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		return cli.usrRepo.UpdateUser(ctx, usr)
	}
	usr.CreatedAt = now
	return cli.usrRepo.CreateUser(ctx, usr)
}
