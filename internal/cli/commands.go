package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"reina/internal/api"
	"reina/internal/core"
	"reina/internal/log"
)

type runner struct {
	out io.Writer
	in  io.Reader
	app *App
}

// Command returns the reina command tree. Output goes to out; prompts read from in.
func Command(out io.Writer, in io.Reader) *cli.Command {
	r := &runner{out: out, in: in}
	return &cli.Command{
		Name:   "reina",
		Usage:  "track expenses, income and budget alerts",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error); overrides LOG_LEVEL",
			},
		},
		Before: r.before,
		After:  r.after,
		Commands: []*cli.Command{
			r.loginCommand(),
			r.signupCommand(),
			{Name: "logout", Usage: "forget the stored session", Action: r.logout},
			{Name: "whoami", Usage: "show the signed-in user", Action: r.whoami},
			{Name: "status", Usage: "show the stored session without contacting the API", Action: r.status},
			r.expensesCommand(),
			r.statsCommand(),
			r.notificationsCommand(),
			r.incomeCommand(),
			r.exportCommand(),
		},
	}
}

func (r *runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig(ctx)
	if err != nil {
		return ctx, err
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	logger := SetupLogger(cfg.LogLevel, nil)

	app, err := Open(ctx, cfg, logger, r.out)
	if err != nil {
		return ctx, err
	}
	r.app = app
	return log.IntoContext(ctx, logger), nil
}

func (r *runner) after(context.Context, *cli.Command) error {
	if r.app == nil {
		return nil
	}
	return r.app.Close()
}

func (r *runner) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "read from stdin when omitted"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			password, err := r.secret(cmd.String("password"), "Password: ")
			if err != nil {
				return err
			}
			user, err := r.app.API.Login(ctx, core.Credentials{Username: cmd.String("username"), Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(r.out, "Logged in as %s\n", user.UserName)
			return nil
		},
	}
}

func (r *runner) signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "read from stdin when omitted"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			password, err := r.secret(cmd.String("password"), "Password: ")
			if err != nil {
				return err
			}
			user, err := r.app.API.Signup(ctx, core.Signup{
				Username: cmd.String("username"),
				Email:    cmd.String("email"),
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(r.out, "Account %s created. Run `reina login -u %s` to sign in.\n", user.UserName, user.UserName)
			return nil
		},
	}
}

func (r *runner) secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(r.out, prompt)
	line, err := bufio.NewReader(r.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *runner) logout(context.Context, *cli.Command) error {
	r.app.API.Logout()
	fmt.Fprintln(r.out, "Logged out.")
	return nil
}

func (r *runner) whoami(ctx context.Context, _ *cli.Command) error {
	if err := r.app.RequireLogin(); err != nil {
		return err
	}
	user, err := r.app.API.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s <%s>\n", user.UserName, user.Email)
	fmt.Fprintf(r.out, "Net income: %s\n", formatMoney(user.NetIncomeOrZero()))
	if !user.CreatedAt.IsZero() {
		fmt.Fprintf(r.out, "Member since %s\n", formatWhen(user.CreatedAt.Time))
	}
	return nil
}

func (r *runner) status(context.Context, *cli.Command) error {
	s := r.app.Store.Get()
	if !s.Authenticated() {
		fmt.Fprintln(r.out, "Not logged in.")
		return nil
	}
	fmt.Fprintf(r.out, "Logged in as %s (%s session)\n", s.NameOrFallback(), r.app.Config.SessionBackend)
	if exp, ok := s.AccessTokenExpiry(); ok {
		fmt.Fprintf(r.out, "Access token expires %s\n", formatWhen(exp))
	}
	if s.RefreshToken == "" {
		fmt.Fprintln(r.out, "No refresh token: you will need to log in again when the access token expires.")
	}
	return nil
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Value: 1},
		&cli.IntFlag{Name: "limit", Usage: "page size (default PAGE_LIMIT)"},
		&cli.StringFlag{Name: "category", Aliases: []string{"c"}},
	}
}

func (r *runner) query(cmd *cli.Command) (api.ExpenseQuery, error) {
	q := api.ExpenseQuery{Page: cmd.Int("page"), Limit: cmd.Int("limit")}
	if q.Limit == 0 {
		q.Limit = r.app.Config.PageLimit
	}
	if c := cmd.String("category"); c != "" {
		cat, err := core.ParseCategory(c)
		if err != nil {
			return api.ExpenseQuery{}, err
		}
		q.Category = cat
	}
	return q, nil
}

func parseID(cmd *cli.Command) (int64, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return 0, errors.New("missing ID argument")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", arg)
	}
	return id, nil
}

func (r *runner) expensesCommand() *cli.Command {
	return &cli.Command{
		Name:    "expenses",
		Aliases: []string{"exp"},
		Usage:   "list and edit expenses",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show one page of expenses",
				Flags: pageFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := r.app.RequireLogin(); err != nil {
						return err
					}
					q, err := r.query(cmd)
					if err != nil {
						return err
					}
					page, err := r.app.Expenses.ListExpenses(ctx, q)
					if err != nil {
						return err
					}
					printExpenses(r.out, page)
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "record an expense",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "amount", Aliases: []string{"a"}, Required: true},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true},
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD (default today)"},
				},
				Action: r.addExpense,
			},
			{
				Name:      "update",
				Usage:     "change an expense",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "amount", Aliases: []string{"a"}},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}},
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}},
				},
				Action: r.updateExpense,
			},
			{
				Name:      "delete",
				Usage:     "remove an expense",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := r.app.RequireLogin(); err != nil {
						return err
					}
					id, err := parseID(cmd)
					if err != nil {
						return err
					}
					if err := r.app.Expenses.DeleteExpense(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(r.out, "Deleted expense %d\n", id)
					return nil
				},
			},
		},
	}
}

func (r *runner) addExpense(ctx context.Context, cmd *cli.Command) error {
	if err := r.app.RequireLogin(); err != nil {
		return err
	}
	amount, err := core.ParseAmount(cmd.String("amount"))
	if err != nil {
		return err
	}
	cat, err := core.ParseCategory(cmd.String("category"))
	if err != nil {
		return err
	}
	date := core.Today()
	if s := cmd.String("date"); s != "" {
		if date, err = core.ParseDate(s); err != nil {
			return err
		}
	}

	e, err := r.app.Expenses.CreateExpense(ctx, core.ExpenseInput{Amount: amount, Category: cat, Date: date})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Added expense %d: %s on %s (%s)\n", e.ID, formatMoney(e.Amount), e.Category, e.Date)
	r.app.AfterSpendingChange(ctx)
	return nil
}

func (r *runner) updateExpense(ctx context.Context, cmd *cli.Command) error {
	if err := r.app.RequireLogin(); err != nil {
		return err
	}
	id, err := parseID(cmd)
	if err != nil {
		return err
	}

	var patch core.ExpensePatch
	if s := cmd.String("amount"); s != "" {
		amount, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		patch.Amount = &amount
	}
	if s := cmd.String("category"); s != "" {
		cat, err := core.ParseCategory(s)
		if err != nil {
			return err
		}
		patch.Category = &cat
	}
	if s := cmd.String("date"); s != "" {
		date, err := core.ParseDate(s)
		if err != nil {
			return err
		}
		patch.Date = &date
	}

	if _, err := r.app.Expenses.UpdateExpense(ctx, id, patch); err != nil {
		if errors.Is(err, core.ErrInsufficientFunds) {
			return fmt.Errorf("expense %d not updated: %w", id, err)
		}
		return err
	}
	fmt.Fprintf(r.out, "Updated expense %d\n", id)
	r.app.AfterSpendingChange(ctx)
	return nil
}

func (r *runner) statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "show totals, remaining income and spending charts",
		Flags: pageFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := r.app.RequireLogin(); err != nil {
				return err
			}
			q, err := r.query(cmd)
			if err != nil {
				return err
			}
			ov, err := r.app.Dashboard.Load(ctx, q)
			if err != nil {
				return err
			}
			printOverview(r.out, ov)
			return nil
		},
	}
}

func (r *runner) notificationsCommand() *cli.Command {
	withLogin := func(fn cli.ActionFunc) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			if err := r.app.RequireLogin(); err != nil {
				return err
			}
			return fn(ctx, cmd)
		}
	}

	return &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notif"},
		Usage:   "read and manage notifications",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show notifications, unread first marked with *",
				Action: withLogin(func(ctx context.Context, _ *cli.Command) error {
					ns, err := r.app.Notifications.List(ctx)
					if err != nil {
						return err
					}
					printNotifications(r.out, ns)
					return nil
				}),
			},
			{
				Name:      "add",
				Usage:     "post a notification to yourself",
				ArgsUsage: "MESSAGE",
				Action: withLogin(func(ctx context.Context, cmd *cli.Command) error {
					msg := strings.Join(cmd.Args().Slice(), " ")
					n, err := r.app.Notifications.Add(ctx, msg)
					if err != nil {
						return err
					}
					fmt.Fprintf(r.out, "Added notification %d\n", n.ID)
					return nil
				}),
			},
			{
				Name:      "read",
				Usage:     "mark a notification as read",
				ArgsUsage: "ID",
				Action: withLogin(func(ctx context.Context, cmd *cli.Command) error {
					id, err := parseID(cmd)
					if err != nil {
						return err
					}
					if err := r.app.Notifications.MarkRead(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(r.out, "Marked notification %d as read\n", id)
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "remove a notification",
				ArgsUsage: "ID",
				Action: withLogin(func(ctx context.Context, cmd *cli.Command) error {
					id, err := parseID(cmd)
					if err != nil {
						return err
					}
					reply, err := r.app.Notifications.Delete(ctx, id)
					if err != nil {
						return err
					}
					r.printReply(reply, fmt.Sprintf("Deleted notification %d", id))
					return nil
				}),
			},
			{
				Name:  "clear",
				Usage: "remove every notification",
				Action: withLogin(func(ctx context.Context, _ *cli.Command) error {
					reply, err := r.app.Notifications.DeleteAll(ctx)
					if err != nil {
						return err
					}
					r.printReply(reply, "Deleted all notifications")
					return nil
				}),
			},
		},
	}
}

func (r *runner) printReply(reply api.StatusReply, fallback string) {
	if reply.Message != "" {
		fmt.Fprintln(r.out, reply.Message)
		return
	}
	fmt.Fprintln(r.out, fallback)
}

func (r *runner) incomeCommand() *cli.Command {
	return &cli.Command{
		Name:  "income",
		Usage: "manage net income",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "set your net income",
				ArgsUsage: "AMOUNT",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := r.app.RequireLogin(); err != nil {
						return err
					}
					amount, err := core.ParseAmount(cmd.Args().First())
					if err != nil {
						return err
					}
					user, err := r.app.Income.Set(ctx, amount)
					if err != nil {
						return err
					}
					fmt.Fprintf(r.out, "Net income set to %s\n", formatMoney(user.NetIncomeOrZero()))
					r.app.AfterSpendingChange(ctx)
					return nil
				},
			},
		},
	}
}

func (r *runner) exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write every expense to Google Sheets",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "print the rows instead of writing them"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := r.app.RequireLogin(); err != nil {
				return err
			}
			var cat core.Category
			if c := cmd.String("category"); c != "" {
				var err error
				if cat, err = core.ParseCategory(c); err != nil {
					return err
				}
			}

			exporter, dry, err := r.app.Exporter(ctx, cmd.Bool("dry-run"))
			if err != nil {
				return err
			}
			expenses, err := r.app.Expenses.AllExpenses(ctx, cat)
			if err != nil {
				return err
			}
			res, err := exporter.Export(ctx, expenses)
			if err != nil {
				return err
			}
			if dry != nil {
				printRows(r.out, dry.Rows())
			}
			fmt.Fprintf(r.out, "Exported %d expenses to %s\n", res.Rows, res.Range)
			return nil
		},
	}
}
