package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/matheus3301/threadstore/internal/app"
	"github.com/matheus3301/threadstore/internal/bus"
	"github.com/matheus3301/threadstore/internal/conversation"
	"github.com/matheus3301/threadstore/internal/message"
	"github.com/matheus3301/threadstore/internal/store"
	intsync "github.com/matheus3301/threadstore/internal/sync"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// env is the state shared by every subcommand for one invocation.
type env struct {
	configPath string
	jsonOut    bool

	app    *fx.App
	bus    *bus.Bus
	db     *store.DB
	conv   *conversation.Store
	engine *intsync.Engine
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "convctl",
		Short:         "Query and update the unified conversation store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.start(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default ~/.threadstore/config.toml)")
	root.PersistentFlags().BoolVar(&e.jsonOut, "json", false, "output in JSON format")

	root.AddCommand(
		newMigrateCmd(e),
		newImportCmd(e),
		newConversationCmd(e),
		newPageCmd(e),
		newHasNextCmd(e),
		newHasPrevCmd(e),
		newPrevPageCmd(e),
		newPositionCmd(e),
		newLastOutgoingCmd(e),
		newCountCmd(e),
		newUnreadCmd(e),
		newReceiptCmd(e),
		newByAuthorCmd(e),
	)
	stopAfterRun(root, e)
	return root
}

// stopAfterRun makes every runnable command stop the app on its way out,
// including when it fails.
func stopAfterRun(c *cobra.Command, e *env) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if serr := e.stop(cmd.Context()); err == nil {
					err = serr
				}
			}()
			return run(cmd, args)
		}
	}
	for _, sub := range c.Commands() {
		stopAfterRun(sub, e)
	}
}

func (e *env) start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.app = fx.New(
		app.Module(app.Params{ConfigPath: e.configPath, Component: "convctl"}),
		fx.NopLogger,
		fx.Populate(&e.bus, &e.db, &e.conv, &e.engine),
	)
	if err := e.app.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.app.Start(ctx)
}

func (e *env) stop(ctx context.Context) error {
	if e.app == nil {
		return nil
	}
	defer func() { e.app = nil }()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.app.Stop(ctx)
}

func (e *env) output(w io.Writer, v any, text func()) error {
	if e.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

// recordView is the CLI shape of a message record.
type recordView struct {
	Transport    string `json:"transport"`
	ID           int64  `json:"id"`
	UniqueRowID  string `json:"unique_row_id"`
	ThreadID     int64  `json:"thread_id"`
	DateSent     int64  `json:"date_sent"`
	DateReceived int64  `json:"date_received"`
	Address      string `json:"address"`
	Body         string `json:"body,omitempty"`
	Outgoing     bool   `json:"outgoing"`
	Read         bool   `json:"read"`
	Attachments  int    `json:"attachments"`
	Reactions    int    `json:"reactions"`
	Delivered    int    `json:"delivery_receipts"`
	ReadReceipts int    `json:"read_receipts"`
	QuoteID      int64  `json:"quote_id,omitempty"`
}

func viewOf(r *message.Record) recordView {
	v := recordView{
		Transport:    r.Transport.Tag(),
		ID:           r.ID,
		UniqueRowID:  r.UniqueRowID,
		ThreadID:     r.ThreadID,
		DateSent:     r.DateSent,
		DateReceived: r.DateReceived,
		Address:      r.Address,
		Body:         r.Body,
		Outgoing:     r.IsOutgoing,
		Read:         r.Read,
		Attachments:  len(r.Attachments),
		Reactions:    len(r.Reactions),
		Delivered:    r.DeliveryReceiptCount,
		ReadReceipts: r.ReadReceiptCount,
	}
	if r.Quote != nil {
		v.QuoteID = r.Quote.ID
	}
	return v
}

func (e *env) printRecords(w io.Writer, recs []*message.Record) error {
	views := make([]recordView, len(recs))
	for i, r := range recs {
		views[i] = viewOf(r)
	}
	return e.output(w, views, func() {
		for _, v := range views {
			dir := "<-"
			if v.Outgoing {
				dir = "->"
			}
			fmt.Fprintf(w, "%d  %s %-3s #%d  %s  %s\n", v.DateSent, dir, v.Transport, v.ID, v.Address, v.Body)
		}
	})
}

func (e *env) printReader(w io.Writer, r *conversation.Reader, err error) error {
	if err != nil {
		return err
	}
	recs, err := r.All()
	if err != nil {
		return err
	}
	return e.printRecords(w, recs)
}

func (e *env) printValue(w io.Writer, key string, v any) error {
	return e.output(w, map[string]any{key: v}, func() {
		fmt.Fprintln(w, v)
	})
}

func parseInt(name, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return n, nil
}
