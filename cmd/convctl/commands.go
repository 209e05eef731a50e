package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/threadstore/internal/bus"
	"github.com/matheus3301/threadstore/internal/conversation"
	"github.com/matheus3301/threadstore/internal/message"
	intsync "github.com/matheus3301/threadstore/internal/sync"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and show the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the store already migrated it.
			version, dirty, err := e.db.SchemaVersion()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return e.output(w, map[string]any{"version": version, "dirty": dirty}, func() {
				fmt.Fprintf(w, "schema version %d (dirty=%v)\n", version, dirty)
			})
		},
	}
}

func newImportCmd(e *env) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Apply inbound messages, reactions and receipts from JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			var changes <-chan bus.Event
			if watch {
				ch, unsub := e.bus.Subscribe("conversation.", 64)
				defer unsub()
				changes = ch
			}

			applied := 0
			sc := bufio.NewScanner(in)
			sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
			for line := 1; sc.Scan(); line++ {
				if len(sc.Bytes()) == 0 {
					continue
				}
				var ev intsync.Inbound
				if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				if err := e.engine.Apply(&ev); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				applied++
				printChanges(cmd.ErrOrStderr(), changes)
			}
			if err := sc.Err(); err != nil {
				return err
			}
			return e.printValue(cmd.OutOrStdout(), "applied", applied)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "report each stored change on stderr")
	return cmd
}

// printChanges writes the change events published so far, one per line.
// Publishing is synchronous, so everything Apply produced is already queued.
func printChanges(w io.Writer, ch <-chan bus.Event) {
	if ch == nil {
		return
	}
	for {
		select {
		case evt := <-ch:
			switch p := evt.Payload.(type) {
			case conversation.ReceiptUpdate:
				fmt.Fprintf(w, "%s %s %s@%d sms=%d mms=%d\n", evt.Kind, p.Kind,
					p.SyncID.Address, p.SyncID.Timestamp, p.SMSUpdated, p.MMSUpdated)
			case map[string]any:
				fmt.Fprintf(w, "%s %v\n", evt.Kind, p["unique_row_id"])
			default:
				fmt.Fprintln(w, evt.Kind)
			}
		default:
			return
		}
	}
}

func newConversationCmd(e *env) *cobra.Command {
	var (
		reverse       bool
		offset, limit int
	)
	cmd := &cobra.Command{
		Use:   "conversation <thread>",
		Short: "List a thread's messages by sent time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			r, err := e.conv.Conversation(thread, reverse, offset, limit)
			return e.printReader(cmd.OutOrStdout(), r, err)
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "newest first")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

func newPageCmd(e *env) *cobra.Command {
	var (
		to    int64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "page <thread> <from>",
		Short: "Show a page of messages sent at or before <from>, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			from, err := parseInt("from", args[1])
			if err != nil {
				return err
			}
			r, err := e.conv.ConversationPage(thread, from, to, limit)
			return e.printReader(cmd.OutOrStdout(), r, err)
		},
	}
	cmd.Flags().Int64Var(&to, "to", -1, "exclusive lower bound; -1 for a limit-bounded page")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size when --to is -1")
	return cmd
}

func newHasNextCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "has-next <thread> <to>",
		Short: "Report whether messages exist before <to>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			to, err := parseInt("to", args[1])
			if err != nil {
				return err
			}
			ok, err := e.conv.HasNextPage(thread, to)
			if err != nil {
				return err
			}
			return e.printValue(cmd.OutOrStdout(), "has_next", ok)
		},
	}
}

func newHasPrevCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "has-prev <thread> <from>",
		Short: "Report whether messages exist after <from>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			from, err := parseInt("from", args[1])
			if err != nil {
				return err
			}
			ok, err := e.conv.HasPreviousPage(thread, from)
			if err != nil {
				return err
			}
			return e.printValue(cmd.OutOrStdout(), "has_previous", ok)
		},
	}
}

func newPrevPageCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "prev-page <thread> <from>",
		Short: "Show the anchor timestamp of the page after <from>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			from, err := parseInt("from", args[1])
			if err != nil {
				return err
			}
			ts, err := e.conv.PreviousPage(thread, from, limit)
			if err != nil {
				return err
			}
			return e.printValue(cmd.OutOrStdout(), "timestamp", ts)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	return cmd
}

func newPositionCmd(e *env) *cobra.Command {
	var reverse, quote bool
	cmd := &cobra.Command{
		Use:   "position <thread> <sent> <address>",
		Short: "Show the zero-based position of a message in its thread",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			sent, err := parseInt("sent", args[1])
			if err != nil {
				return err
			}
			var pos int
			if quote {
				pos, err = e.conv.QuotedMessagePosition(thread, sent, args[2])
			} else {
				pos, err = e.conv.MessagePositionInConversation(thread, sent, args[2], reverse)
			}
			if err != nil {
				return err
			}
			return e.printValue(cmd.OutOrStdout(), "position", pos)
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "count from the newest message")
	cmd.Flags().BoolVar(&quote, "quote", false, "resolve a quote reference (always newest first)")
	return cmd
}

func newLastOutgoingCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "last-outgoing <thread>",
		Short: "Show the sent time of the newest outgoing message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			ts, err := e.conv.LastOutgoingTimestamp(thread)
			if err != nil {
				return err
			}
			return e.printValue(cmd.OutOrStdout(), "timestamp", ts)
		},
	}
}

func newCountCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "count <thread>",
		Short: "Show total and unread message counts of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			total, err := e.conv.ConversationCount(thread)
			if err != nil {
				return err
			}
			unread, err := e.conv.UnreadCount(thread)
			if err != nil {
				return err
			}
			last, err := e.conv.LastMessageTimestamp(thread)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return e.output(w, map[string]any{"total": total, "unread": unread, "last_message": last}, func() {
				fmt.Fprintf(w, "total: %d\nunread: %d\nlast message: %d\n", total, unread, last)
			})
		},
	}
}

func newUnreadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "List unread messages across threads, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := e.conv.Unread()
			return e.printReader(cmd.OutOrStdout(), r, err)
		},
	}
}

func newReceiptCmd(e *env) *cobra.Command {
	parent := &cobra.Command{
		Use:   "receipt",
		Short: "Record delivery or read receipts",
	}
	for _, kind := range []string{"delivery", "read"} {
		var at int64
		sub := &cobra.Command{
			Use:   kind + " <address> <sync-timestamp>",
			Short: "Record a " + kind + " receipt for messages sent at <sync-timestamp>",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ts, err := parseInt("sync-timestamp", args[1])
				if err != nil {
					return err
				}
				if at == 0 {
					at = time.Now().UnixMilli()
				}
				id := message.SyncID{Address: args[0], Timestamp: ts}
				receiptKind := intsync.KindDeliveryReceipt
				if cmd.Name() == "read" {
					receiptKind = intsync.KindReadReceipt
				}
				if err := e.engine.ApplyReceipt(receiptKind, &intsync.Receipt{SyncID: id, Timestamp: at}); err != nil {
					return err
				}
				return e.printValue(cmd.OutOrStdout(), "ok", true)
			},
		}
		sub.Flags().Int64Var(&at, "at", 0, "receipt time in ms (default now)")
		parent.AddCommand(sub)
	}
	return parent
}

func newByAuthorCmd(e *env) *cobra.Command {
	var idsOnly bool
	cmd := &cobra.Command{
		Use:   "by-author <thread> <address>",
		Short: "List every message in a thread from one author",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseInt("thread", args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if idsOnly {
				ids, err := e.conv.AllMessageIDsFromSenderInThread(thread, args[1])
				if err != nil {
					return err
				}
				return e.output(w, ids, func() {
					for _, id := range ids {
						fmt.Fprintln(w, id)
					}
				})
			}
			recs, err := e.conv.AllMessagesFromSenderInThread(thread, args[1])
			if err != nil {
				return err
			}
			return e.printRecords(w, recs)
		},
	}
	cmd.Flags().BoolVar(&idsOnly, "ids", false, "print message ids only")
	return cmd
}
