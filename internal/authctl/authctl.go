// Package authctl implements the operator commands of the authentication
// service: schema migration, administrator provisioning, account activation
// and reading the audit trail.
package authctl

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

var ErrUsage = errors.New("usage error")

// Commands lists the subcommands in the order they are shown by help.
var Commands = []string{"migrate", "create-admin", "deactivate", "activate", "audit"}

type Service interface {
	CreateAccount(ctx context.Context, displayName, email, password string, role models.Role) (*models.PublicAccount, error)
	SetAccountActive(ctx context.Context, email string, active bool) error
	ListAudit(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error)
}

type Migrator interface {
	Migrate(ctx context.Context) error
}

// PasswordReader reads a password without echo, after printing prompt.
type PasswordReader func(prompt string) ([]byte, error)

type CLI struct {
	out          io.Writer
	migrator     Migrator
	svc          Service
	readPassword PasswordReader
}

func New(out io.Writer, migrator Migrator, svc Service, readPassword PasswordReader) *CLI {
	return &CLI{out: out, migrator: migrator, svc: svc, readPassword: readPassword}
}

// SplitCommand finds the subcommand in args. Arguments before it belong to
// the configuration loader, arguments after it to the subcommand.
func SplitCommand(args []string) (string, []string, bool) {
	for i, a := range args {
		for _, c := range Commands {
			if a == c {
				return c, args[i+1:], true
			}
		}
	}
	return "", nil, false
}

func (c *CLI) Run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "migrate":
		return c.migrate(ctx)
	case "create-admin":
		return c.createAdmin(ctx, args)
	case "deactivate":
		return c.setActive(ctx, "deactivate", args, false)
	case "activate":
		return c.setActive(ctx, "activate", args, true)
	case "audit":
		return c.audit(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q, expected one of %s", ErrUsage, cmd, strings.Join(Commands, ", "))
	}
}

func (c *CLI) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *CLI) migrate(ctx context.Context) error {
	if err := c.migrator.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "migrations applied")
	return nil
}

func (c *CLI) createAdmin(ctx context.Context, args []string) error {
	fs := c.newFlagSet("create-admin")
	email := fs.String("email", "", "administrator email")
	name := fs.String("name", "", "administrator display name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *email == "" || *name == "" {
		return fmt.Errorf("%w: -email and -name are required", ErrUsage)
	}

	pw, err := c.readPassword("Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := c.readPassword("Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return errors.New("passwords do not match")
	}

	account, err := c.svc.CreateAccount(ctx, *name, *email, string(pw), models.RoleAdministrator)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "administrator created: %s (%s)\n", account.Email, account.ID)
	return nil
}

func (c *CLI) setActive(ctx context.Context, name string, args []string, active bool) error {
	fs := c.newFlagSet(name)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *email == "" {
		return fmt.Errorf("%w: -email is required", ErrUsage)
	}

	if err := c.svc.SetAccountActive(ctx, *email, active); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s: %sd\n", *email, name)
	return nil
}

func (c *CLI) audit(ctx context.Context, args []string) error {
	fs := c.newFlagSet("audit")
	limit := fs.Int("limit", 50, "records to show")
	offset := fs.Int("offset", 0, "records to skip")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	records, err := c.svc.ListAudit(ctx, *limit, *offset)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tSUCCESS\tREASON\tEMAIL\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n",
			r.Timestamp.UTC().Format(time.RFC3339), r.Event, r.Success, r.Reason, r.Email, r.SourceAddress)
	}
	return tw.Flush()
}
