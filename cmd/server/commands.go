package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("A2S Gestion %s\n", Version)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := bootstrap(true)
		if err != nil {
			return err
		}
		fmt.Println("Migrations complete")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Persist the current derived status of every subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(false)
		if err != nil {
			return err
		}
		report, err := a.svc.Subscriptions.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("checked=%d changed=%d failed=%d\n", report.Checked, report.Changed, report.Failed)
		for status, n := range report.ByStatus {
			fmt.Printf("  %-10s %d\n", status, n)
		}
		return nil
	},
}

// =============================================================================
// USERS
// =============================================================================

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(false)
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")
		users, err := a.svc.Users.List(cmd.Context(), models.Role(role))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNOM\tROLE\tACTIF")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%t\n", u.ID, u.Email, u.Prenom, u.Nom, u.Role, u.IsActive)
		}
		return w.Flush()
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user mirroring an auth backend account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(false)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		email, _ := flags.GetString("email")
		nom, _ := flags.GetString("nom")
		prenom, _ := flags.GetString("prenom")
		role, _ := flags.GetString("role")

		u, err := a.svc.Users.Create(cmd.Context(), services.UserInput{
			Email:  email,
			Nom:    nom,
			Prenom: prenom,
			Role:   models.Role(role),
		})
		if err != nil {
			return err
		}
		fmt.Printf("User created: %s <%s> (%s)\n", u.ID, u.Email, u.Role)
		return nil
	},
}

// =============================================================================
// PERMISSIONS
// =============================================================================

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Manage role permissions",
}

var permissionGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Set the actions a role may perform on a resource",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(false)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		role, _ := flags.GetString("role")
		resource, _ := flags.GetString("resource")
		g := auth.Grant{Role: models.Role(role), Resource: resource}
		g.CanView, _ = flags.GetBool("view")
		g.CanCreate, _ = flags.GetBool("create")
		g.CanEdit, _ = flags.GetBool("edit")
		g.CanDelete, _ = flags.GetBool("delete")
		g.CanClose, _ = flags.GetBool("close")

		row, err := auth.NewPermissionService(a.svc.Store).Grant(cmd.Context(), g)
		if err != nil {
			return err
		}
		fmt.Printf("%s on %s: view=%t create=%t edit=%t delete=%t close=%t\n",
			row.Role, row.Resource, row.CanView, row.CanCreate, row.CanEdit, row.CanDelete, row.CanClose)
		return nil
	},
}

// =============================================================================
// TOKENS
// =============================================================================

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a development access token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(false)
		if err != nil {
			return err
		}
		email, _ := cmd.Flags().GetString("email")
		u, err := a.svc.Users.ByEmail(cmd.Context(), email)
		if err != nil {
			return err
		}
		tok, err := auth.NewJWTService(a.cfg.Auth.JWTSecret, a.cfg.Auth.AccessExpiry).GenerateToken(u.ID, u.Email)
		if err != nil {
			return err
		}
		fmt.Println(tok.AccessToken)
		fmt.Fprintf(os.Stderr, "expires at %s\n", tok.ExpiresAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	userListCmd.Flags().String("role", "", "Only list users with this role")
	userCreateCmd.Flags().String("email", "", "Email address")
	userCreateCmd.Flags().String("nom", "", "Last name")
	userCreateCmd.Flags().String("prenom", "", "First name")
	userCreateCmd.Flags().String("role", string(models.RoleCommercial), "Role")
	_ = userCreateCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userListCmd, userCreateCmd)

	flags := permissionGrantCmd.Flags()
	flags.String("role", "", "Role")
	flags.String("resource", "", fmt.Sprintf("Resource %v", auth.Resources))
	flags.Bool("view", false, "Allow viewing")
	flags.Bool("create", false, "Allow creating")
	flags.Bool("edit", false, "Allow editing")
	flags.Bool("delete", false, "Allow deleting")
	flags.Bool("close", false, "Allow closing")
	_ = permissionGrantCmd.MarkFlagRequired("role")
	_ = permissionGrantCmd.MarkFlagRequired("resource")
	permissionCmd.AddCommand(permissionGrantCmd)

	tokenCmd.Flags().String("email", "", "Email of the user")
	_ = tokenCmd.MarkFlagRequired("email")
}
