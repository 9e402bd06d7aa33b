package main

import (
	"fmt"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/seed"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.logger.WithField("dialect", db.Dialect(rt.db)).Info("database migrated")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var tenantSlug string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo pages, services, case studies and posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			tenant, err := lookupTenant(rt, tenantSlug)
			if err != nil {
				return err
			}
			fixtures, err := seed.Default()
			if err != nil {
				return err
			}
			result, err := seed.New(rt.db, rt.logger).Run(tenant.ID, fixtures)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded tenant %s: %d created, %d skipped, %d settings\n",
				tenant.Slug, result.Created, result.Skipped, result.Settings)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantSlug, "tenant", db.DefaultTenantSlug, "tenant slug")
	return cmd
}

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Manage tenants"}

	var input service.TenantInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant bound to a domain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			tenant, err := service.NewTenantService(rt.db).Create(input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created tenant %s (id %d, domain %q)\n", tenant.Slug, tenant.ID, domainOf(tenant))
			return nil
		},
	}
	create.Flags().StringVar(&input.Name, "name", "", "display name")
	create.Flags().StringVar(&input.Slug, "slug", "", "unique slug")
	create.Flags().StringVar(&input.Domain, "domain", "", "host name served by this tenant")
	create.Flags().StringVar(&input.DefaultLocale, "locale", "en", "default locale (en, de, fr)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("slug")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			tenants, err := service.NewTenantService(rt.db).List()
			if err != nil {
				return err
			}
			for _, tenant := range tenants {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", tenant.ID, tenant.Slug, domainOf(&tenant), tenant.DefaultLocale)
			}
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage admin users"}

	var tenantSlug string
	var input service.UserInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			tenant, err := lookupTenant(rt, tenantSlug)
			if err != nil {
				return err
			}
			user, err := service.NewUserService(rt.db).Create(tenant.ID, input, auth.PermissionOwner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s in tenant %s\n", user.Role, user.Email, tenant.Slug)
			return nil
		},
	}
	create.Flags().StringVar(&tenantSlug, "tenant", db.DefaultTenantSlug, "tenant slug")
	create.Flags().StringVar(&input.Email, "email", "", "login email")
	create.Flags().StringVar(&input.Name, "name", "", "display name")
	create.Flags().StringVar(&input.Password, "password", "", "initial password")
	create.Flags().StringVar(&input.Role, "role", auth.PermissionWrite.String(), "read, write, admin or owner")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}

	var tenantSlug string
	var input service.APIKeyInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			tenant, err := lookupTenant(rt, tenantSlug)
			if err != nil {
				return err
			}
			created, err := service.NewAPIKeyService(rt.db).Create(tenant.ID, input,
				auth.Principal{TenantID: tenant.ID, Permission: auth.PermissionOwner})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %s key %q (%s) for tenant %s\n", created.Key.Permission, created.Key.Name, created.Key.Prefix, tenant.Slug)
			fmt.Fprintln(out, created.Plain)
			return nil
		},
	}
	create.Flags().StringVar(&tenantSlug, "tenant", db.DefaultTenantSlug, "tenant slug")
	create.Flags().StringVar(&input.Name, "name", "", "key name")
	create.Flags().StringVar(&input.Permission, "permission", auth.PermissionRead.String(), "read, write, admin or owner")
	create.Flags().IntVar(&input.ExpiresInDays, "expires-in-days", 0, "expiry in days, 0 for no expiry")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

// lookupTenant 查找租户；默认租户不存在时自动创建。
func lookupTenant(rt *runtime, slug string) (*db.Tenant, error) {
	tenants := service.NewTenantService(rt.db)
	if slug == "" || slug == db.DefaultTenantSlug {
		return tenants.EnsureDefault("Default")
	}
	tenant, err := tenants.GetBySlug(slug)
	if err != nil {
		return nil, eris.Wrapf(err, "tenant %q", slug)
	}
	return tenant, nil
}

func domainOf(tenant *db.Tenant) string {
	if tenant.Domain == nil {
		return "-"
	}
	return *tenant.Domain
}
