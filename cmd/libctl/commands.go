package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/config"
	"libadmin/pkg/grid"
	"libadmin/pkg/models"
	"libadmin/pkg/validation"
)

const passwordEnv = "LIBCTL_PASSWORD"

type app struct {
	out      io.Writer
	password func(prompt string) (string, error)

	backend  string
	username string
	client   *apiclient.Client
}

// envelopeError turns a failed envelope into a command error.
func envelopeError[T any](op string, res apiclient.Response[T]) error {
	if res.StatusCode == 0 {
		return fmt.Errorf("%s: backend unreachable: %v", op, res.Err)
	}
	return fmt.Errorf("%s failed with status %d", op, res.StatusCode)
}

// connect signs in once per invocation.
func (a *app) connect(ctx context.Context) (*apiclient.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	backend := a.backend
	if backend == "" {
		backend = cfg.Backend.BaseURL
	}
	if a.username == "" {
		return nil, errors.New("--username is required")
	}

	password := os.Getenv(passwordEnv)
	if password == "" {
		if password, err = a.password("Password: "); err != nil {
			return nil, err
		}
	}
	if err := validation.Login(a.username, password); err != nil {
		return nil, err
	}

	client := apiclient.NewClient(backend,
		apiclient.WithTimeout(cfg.Backend.Timeout.Std()),
		apiclient.WithSoftDeleteStatus(cfg.Backend.SoftDeleteStatus))
	if res := client.Login(ctx, models.Credentials{Login: a.username, Password: password}); !res.Success {
		return nil, envelopeError("login", res)
	}
	a.client = client
	return client, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "libctl",
		Short:        "Manage the library from the command line",
		SilenceUsage: true,
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "backend base URL (default from config)")
	root.PersistentFlags().StringVarP(&a.username, "username", "u", os.Getenv("LIBCTL_USER"), "login name")

	root.AddCommand(whoamiCmd(a), booksCmd(a), loansCmd(a), usersCmd(a))
	return root
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user's id and role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			role := client.GetCurrentUserRole(cmd.Context())
			if !role.Success {
				return envelopeError("role", role)
			}
			id := client.GetCurrentUserID(cmd.Context())
			if !id.Success {
				return envelopeError("id", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s, %s)\n", a.username, id.Data, role.Data.Label())
			return nil
		},
	}
}

// printTable writes the non-action columns of rows as an aligned table.
func printTable[T any](w io.Writer, cols []grid.Column[T], rows []grid.Row[T]) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	var header []string
	for _, c := range cols {
		if c.Kind != grid.KindAction {
			header = append(header, strings.ToUpper(c.Label))
		}
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		var line []string
		for _, cell := range grid.Evaluate(cols, r) {
			if cell.Kind != grid.KindAction {
				line = append(line, cell.Text)
			}
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	return tw.Flush()
}

func booksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "List and delete books"}

	var (
		filter string
		all    bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			res := client.GetAllBooks(cmd.Context())
			if !res.Success {
				return envelopeError("list books", res)
			}
			books := res.Data
			if !all {
				books = models.VisibleBooks(books)
			}
			cols := grid.BookColumns()
			rows := grid.FilterRows(grid.ViewRows(books, grid.BookKey), cols, filter)
			return printTable(cmd.OutOrStdout(), cols, rows)
		},
	}
	list.Flags().StringVarP(&filter, "filter", "f", "", "comma separated quick filter")
	list.Flags().BoolVar(&all, "all", false, "include deleted books")

	del := &cobra.Command{
		Use:   "delete <isbn>",
		Short: "Delete a book; books with loan history are only flagged deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validation.ValidISBN(args[0]) {
				return fmt.Errorf("%q is not a 13 digit ISBN", args[0])
			}
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			res := client.DeleteBook(cmd.Context(), args[0])
			if !res.Success {
				return envelopeError("delete book", res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], res.Data)
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

func loansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "loans", Short: "List, accept and return loans"}

	var mine bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			res := client.GetAllLoans(cmd.Context())
			if !res.Success {
				return envelopeError("list loans", res)
			}
			loans := res.Data
			if mine {
				id := client.GetCurrentUserID(cmd.Context())
				if !id.Success {
					return envelopeError("id", id)
				}
				loans = models.LoansForUser(loans, id.Data)
			}
			cols := append([]grid.Column[models.Loan]{
				grid.Computed("id", "ID", grid.LoanKey),
			}, grid.LoanColumns(false)...)
			return printTable(cmd.OutOrStdout(), cols, grid.ViewRows(loans, grid.LoanKey))
		},
	}
	list.Flags().BoolVar(&mine, "mine", false, "only the signed-in user's loans")

	transition := func(use, short, done string, call func(*apiclient.Client, context.Context, models.ID) apiclient.Response[*models.Loan]) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.connect(cmd.Context())
				if err != nil {
					return err
				}
				res := call(client, cmd.Context(), models.ID(args[0]))
				if !res.Success {
					return envelopeError(use+" loan", res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loan %s %s\n", args[0], done)
				return nil
			},
		}
	}
	accept := transition("accept", "Accept a pending loan", "accepted", (*apiclient.Client).AcceptLoan)
	ret := transition("return", "Record a returned loan", "returned", (*apiclient.Client).ReturnLoan)

	cmd.AddCommand(list, accept, ret)
	return cmd
}

func usersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage users"}

	var user models.User
	var role string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user; the password is prompted for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user.Username = args[0]
			user.Role = models.ParseRole(role)
			password, err := a.password(fmt.Sprintf("Password for %s: ", user.Username))
			if err != nil {
				return err
			}
			user.Password = password
			if err := validation.User(user); err != nil {
				return err
			}

			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			res := client.AddUser(cmd.Context(), user)
			if !res.Success {
				return envelopeError("add user", res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s created with id %s\n", res.Data.Username, res.Data.ID)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", "reader", "reader or librarian")
	add.Flags().StringVar(&user.Email, "email", "", "e-mail address")
	add.Flags().StringVar(&user.FullUsername, "name", "", "full name")

	cmd.AddCommand(add)
	return cmd
}
