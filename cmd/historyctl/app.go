package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gogotex/gogotex/backend/go-history/internal/apperrors"
	"github.com/gogotex/gogotex/backend/go-history/internal/config"
	"github.com/gogotex/gogotex/backend/go-history/internal/history"
	"github.com/gogotex/gogotex/backend/go-history/internal/misc"
	"github.com/gogotex/gogotex/backend/go-history/internal/models"
	"github.com/gogotex/gogotex/backend/go-history/internal/response"
	"github.com/gogotex/gogotex/backend/go-history/pkg/logger"
	"github.com/gogotex/gogotex/backend/go-history/pkg/metrics"
)

const newIDLength = 24

// app carries the lazily opened backend shared by all commands of one run.
type app struct {
	in      io.Reader
	out     io.Writer
	connect connector
	cfg     *config.Config
	be      *backend
}

// run executes args and returns the process exit code: 0 on success, 1 for
// rejected requests and 2 for internal failures.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer, connect connector) int {
	a := &app{in: in, out: out, connect: connect}
	err := a.command().Run(ctx, args)
	if err == nil {
		return 0
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		logger.Errorf("historyctl: %v", err)
		a.write(response.New().Error(err).Fail().Produce())
		return 2
	}
	a.write(response.New().Error(err).Fail().Produce())
	if !appErr.Expose() {
		logger.Errorf("historyctl: %v", err)
		return 2
	}
	return 1
}

func (a *app) command() *cli.Command {
	root := &cli.Command{
		Name:   "historyctl",
		Usage:  "Versioned document store with per-document change history",
		Writer: a.out,
		Reader: a.in,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "id of the acting user, resolved through the users directory",
				Sources: cli.EnvVars("HISTORY_USER"),
			},
			&cli.StringFlag{Name: "firstname", Usage: "author first name, skips the directory lookup"},
			&cli.StringFlag{Name: "lastname", Usage: "author last name, skips the directory lookup"},
			&cli.StringFlag{Name: "middlename", Usage: "author middle name, skips the directory lookup"},
			&cli.BoolFlag{Name: "object-id", Usage: "parse document ids as hex ObjectIDs"},
			&cli.StringFlag{
				Name:    "pushgateway",
				Usage:   "Prometheus pushgateway URL to push metrics to on exit",
				Sources: cli.EnvVars("METRICS_PUSHGATEWAY"),
			},
		},
		After:  a.after,
		Action: requireCommand,
		Commands: []*cli.Command{
			{
				Name:      "replace",
				Usage:     "replace a document, creating it when missing",
				ArgsUsage: "<extended JSON document | ->",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "new", Usage: "generate the _id of a new document"},
				},
				Action: a.replace,
			},
			{
				Name:      "update",
				Usage:     "set fields of a document; null removes a field",
				ArgsUsage: "<extended JSON document | ->",
				Action:    a.update,
			},
			{
				Name:      "delete",
				Usage:     "mark a document as deleted",
				ArgsUsage: "<id>",
				Action:    a.toggle(true),
			},
			{
				Name:      "restore",
				Usage:     "clear the deleted mark of a document",
				ArgsUsage: "<id>",
				Action:    a.toggle(false),
			},
			{
				Name:      "show",
				Usage:     "print a document with its history",
				ArgsUsage: "<id>",
				Action:    a.show,
			},
			{
				Name:      "history",
				Usage:     "print the change timeline of a document",
				ArgsUsage: "<id>",
				Action:    a.history,
			},
			{
				Name:   "user",
				Usage:  "manage the users directory",
				Action: requireCommand,
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "create or update a user",
						ArgsUsage: "<id>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email"},
						},
						Action: a.setUser,
					},
				},
			},
		},
	}
	withUsageErrors(root)
	return root
}

// requireCommand rejects a parent command run without a known subcommand.
func requireCommand(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 0 {
		return apperrors.NewValidation(fmt.Sprintf("unknown command %q", cmd.Args().First()))
	}
	return apperrors.NewValidation("a command is required")
}

// withUsageErrors reports flag and argument mistakes as rejected requests.
func withUsageErrors(cmd *cli.Command) {
	cmd.OnUsageError = func(_ context.Context, _ *cli.Command, err error, _ bool) error {
		return apperrors.NewValidation(err.Error())
	}
	for _, sub := range cmd.Commands {
		withUsageErrors(sub)
	}
}

// backend opens the backend on first use so help and usage errors never
// touch the network.
func (a *app) backend(ctx context.Context) (*backend, error) {
	if a.be != nil {
		return a.be, nil
	}
	cfg, err := config.LoadConfig()
	if err != nil && !errors.Is(err, config.ErrMissingMongoURI) {
		return nil, err
	}
	a.cfg = cfg
	be, err := a.connect(ctx, cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "Fail to connect to the database")
	}
	a.be = be
	return be, nil
}

func (a *app) after(ctx context.Context, cmd *cli.Command) error {
	if a.be != nil && a.be.close != nil {
		a.be.close(ctx)
	}
	if url := cmd.String("pushgateway"); url != "" {
		if err := metrics.Push(url, "historyctl"); err != nil {
			logger.Warnf("push metrics to %s: %v", url, err)
		}
	}
	return nil
}

// actor builds the attribution from the name flags, or from the users
// directory when none is given.
func (a *app) actor(ctx context.Context, cmd *cli.Command, be *backend) (history.Actor, error) {
	user := cmd.String("user")
	author := history.Author{
		Firstname:  cmd.String("firstname"),
		Lastname:   cmd.String("lastname"),
		Middlename: cmd.String("middlename"),
	}
	if !author.IsZero() || be.users == nil {
		return history.Bind(user, author), nil
	}
	return be.users.Actor(ctx, user)
}

func (a *app) replace(ctx context.Context, cmd *cli.Command) error {
	doc, err := a.body(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("new") {
		if _, ok := doc[history.FieldID]; ok {
			return apperrors.NewValidation("_id is generated with --new",
				apperrors.Detail{Key: history.FieldID, Message: "must not be set"})
		}
		id, err := misc.UID(newIDLength)
		if err != nil {
			return apperrors.Wrap(err, "Fail to generate document id")
		}
		doc[history.FieldID] = id
	}
	return a.mutate(ctx, cmd, func(actor history.Actor) (bool, error) {
		return a.be.docs.Replace(ctx, actor, doc)
	}, doc[history.FieldID])
}

func (a *app) update(ctx context.Context, cmd *cli.Command) error {
	doc, err := a.body(cmd)
	if err != nil {
		return err
	}
	return a.mutate(ctx, cmd, func(actor history.Actor) (bool, error) {
		return a.be.docs.Update(ctx, actor, doc)
	}, doc[history.FieldID])
}

func (a *app) toggle(state bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id, err := a.id(cmd)
		if err != nil {
			return err
		}
		return a.mutate(ctx, cmd, func(actor history.Actor) (bool, error) {
			return a.be.docs.ToggleDeleted(ctx, actor, id, state)
		}, id)
	}
}

func (a *app) mutate(ctx context.Context, cmd *cli.Command, fn func(history.Actor) (bool, error), id any) error {
	be, err := a.backend(ctx)
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, cmd, be)
	if err != nil {
		return err
	}
	if _, err := fn(actor); err != nil {
		return err
	}
	return a.write(response.New().
		Success().
		Document(normalize(primitive.M{history.FieldID: id})).
		Produce())
}

func (a *app) show(ctx context.Context, cmd *cli.Command) error {
	id, err := a.id(cmd)
	if err != nil {
		return err
	}
	be, err := a.backend(ctx)
	if err != nil {
		return err
	}
	rec, err := be.docs.Get(ctx, id)
	if err != nil {
		return err
	}

	doc := make(map[string]any, len(rec.Fields)+2)
	for k, v := range rec.Fields {
		doc[k] = v
	}
	doc[history.FieldID] = rec.ID
	if rec.Deleted {
		doc[history.FieldDeleted] = true
	}

	b := response.New().
		Success().
		Document(normalize(doc)).
		History(rec.History).
		Allow("replace", "update", "delete", "restore")
	if rec.Deleted {
		b.Forbid("delete")
	} else {
		b.Forbid("restore")
	}
	return a.write(b.Produce())
}

func (a *app) history(ctx context.Context, cmd *cli.Command) error {
	id, err := a.id(cmd)
	if err != nil {
		return err
	}
	be, err := a.backend(ctx)
	if err != nil {
		return err
	}
	recs, err := be.docs.History(ctx, id)
	if err != nil {
		return err
	}
	for i := range recs {
		recs[i].Updates = normalizeMap(recs[i].Updates)
	}
	return a.write(response.New().Success().Timeline(recs).Produce())
}

func (a *app) setUser(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return apperrors.NewValidation("expected exactly one user id")
	}
	be, err := a.backend(ctx)
	if err != nil {
		return err
	}
	if be.users == nil {
		return apperrors.NewNotAllowed("users directory is not configured")
	}
	u, err := be.users.Save(ctx, &models.User{
		Sub:        cmd.Args().First(),
		Email:      cmd.String("email"),
		Firstname:  cmd.String("firstname"),
		Lastname:   cmd.String("lastname"),
		Middlename: cmd.String("middlename"),
	})
	if err != nil {
		return err
	}
	return a.write(response.New().Success().Document(u).Produce())
}

// body reads the extended JSON document given as the only argument, or
// from stdin when the argument is "-".
func (a *app) body(cmd *cli.Command) (history.Document, error) {
	if cmd.Args().Len() != 1 {
		return nil, apperrors.NewValidation("expected exactly one document argument")
	}
	raw := []byte(cmd.Args().First())
	if string(raw) == "-" {
		var err error
		if raw, err = io.ReadAll(a.in); err != nil {
			return nil, apperrors.Wrap(err, "Fail to read document from stdin")
		}
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, apperrors.NewValidation("document is not valid extended JSON",
			apperrors.Detail{Key: "document", Message: err.Error()})
	}
	return history.Document(m), nil
}

// id parses the only argument. Extended JSON values keep their type, so
// 5 is a number and {"$oid": ...} an ObjectID; anything else is a string.
func (a *app) id(cmd *cli.Command) (any, error) {
	if cmd.Args().Len() != 1 {
		return nil, apperrors.NewValidation("expected exactly one document id")
	}
	arg := cmd.Args().First()
	if cmd.Bool("object-id") {
		oid, err := primitive.ObjectIDFromHex(arg)
		if err != nil {
			return nil, apperrors.NewValidation("invalid ObjectID",
				apperrors.Detail{Key: history.FieldID, Message: err.Error()})
		}
		return oid, nil
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(fmt.Sprintf(`{"id": %s}`, arg)), false, &m); err == nil {
		return m["id"], nil
	}
	return strings.TrimSpace(arg), nil
}

func (a *app) write(r response.Response) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return apperrors.Wrap(err, "Fail to write response")
	}
	return nil
}

// normalize turns decoded BSON containers into plain maps and slices so
// they encode as JSON objects and arrays.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case primitive.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case primitive.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalize(v)
	}
	return out
}
