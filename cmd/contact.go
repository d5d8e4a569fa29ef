package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/contacts/registry"
	"github.com/zjrosen/rolodex/internal/presentation"
)

// contactFlags binds --first --last --phone --email --account.
type contactFlags struct {
	first, last, phone, email, account string
}

func (f *contactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.first, "first", "", "first name")
	cmd.Flags().StringVar(&f.last, "last", "", "last name")
	cmd.Flags().StringVar(&f.phone, "phone", "", "telephone number")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.account, "account", "", "account as 0x followed by 40 hex digits (default: zero account)")
}

// apply overwrites the fields of base whose flags were set on cmd.
func (f *contactFlags) apply(cmd *cobra.Command, base domain.Fields) (domain.Fields, error) {
	changed := cmd.Flags().Changed
	if changed("first") {
		base.FirstName = f.first
	}
	if changed("last") {
		base.LastName = f.last
	}
	if changed("phone") {
		base.Phone = f.phone
	}
	if changed("email") {
		base.Email = f.email
	}
	if changed("account") {
		account := domain.ZeroAccount
		if f.account != "" {
			var err error
			if account, err = domain.ParseAccount(f.account); err != nil {
				return base, err
			}
		}
		base.Account = account
	}
	return base, nil
}

func newAddCmd(c *cli) *cobra.Command {
	var f contactFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact",
		Long: `Add a contact and print it as JSON, including its newly issued id.

Example:
  rolodex add --first Rafael --last Vera --phone 1234567890 \
    --email rafael@algo.com --account 0x9999999999999999999999999999999999999999`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := f.apply(cmd, domain.Fields{})
			if err != nil {
				return err
			}
			return c.withRegistry(func(r *registry.Registry) error {
				contact, err := r.Add(fields)
				if err != nil {
					return err
				}
				return presentation.NewFormatter(cmd.OutOrStdout()).FormatContact(contact)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newUpdateCmd(c *cli) *cobra.Command {
	var f contactFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a contact",
		Long: `Update a contact. Fields whose flags are not given keep their current value;
the registry always stores the complete record.

Example:
  rolodex update 3 --email karen@algo.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return c.withRegistry(func(r *registry.Registry) error {
				current, err := r.Get(id)
				if err != nil {
					return err
				}
				fields, err := f.apply(cmd, current.Fields)
				if err != nil {
					return err
				}
				contact, err := r.Update(id, fields)
				if err != nil {
					return err
				}
				return presentation.NewFormatter(cmd.OutOrStdout()).FormatContact(contact)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Long: `Delete a contact and print {"id", "replacedByID"}. replacedByID is the contact
that moved into the freed slot, or 0 if none did. Deleted ids are never reused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return c.withRegistry(func(r *registry.Registry) error {
				res, err := r.Delete(id)
				if err != nil {
					return err
				}
				return presentation.NewFormatter(cmd.OutOrStdout()).FormatDeletion(res)
			})
		},
	}
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a contact as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return c.withRegistry(func(r *registry.Registry) error {
				contact, err := r.Get(id)
				if err != nil {
					return err
				}
				return presentation.NewFormatter(cmd.OutOrStdout()).FormatContact(contact)
			})
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List contacts in slot order",
		Long: `List contacts in slot order. On a terminal the contacts are drawn as a table;
otherwise each contact is one tab-separated line:

  id  first  last  phone  email  account

Fields containing a tab, a line break or a leading double quote are printed
Go-quoted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRegistry(func(r *registry.Registry) error {
				return presentation.NewFormatter(cmd.OutOrStdout()).FormatContacts(r.List())
			})
		},
	}
}

// withRegistry opens the registry, runs fn and closes the database.
func (c *cli) withRegistry(fn func(r *registry.Registry) error) error {
	r, closeDB, err := c.openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()
	return fn(r)
}

func parseIDArg(arg string) (domain.ID, error) {
	id, err := domain.ParseID(arg)
	if err != nil {
		return domain.NoID, fmt.Errorf("invalid contact id %q", arg)
	}
	return id, nil
}
