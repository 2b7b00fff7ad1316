package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/fitmsg/internal/api"
	"github.com/matheus3301/fitmsg/internal/config"
	"github.com/matheus3301/fitmsg/internal/ctlclient"
	"github.com/matheus3301/fitmsg/internal/lock"
	"github.com/matheus3301/fitmsg/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	timeout := flag.Duration("timeout", 40*time.Second, "request timeout")
	flag.Parse()

	paths := profile.DefaultPaths()
	cfg, err := config.LoadOrDefault(paths.ConfigPath())
	if err != nil {
		fail(err)
	}
	name := profile.Resolve(*profileFlag, cfg)
	if err := paths.Validate(name); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "profiles" {
		cmdProfiles(paths, *jsonFlag)
		return
	}

	c := ctlclient.New(paths.SocketPath(name))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out := output{json: *jsonFlag}
	switch args[0] {
	case "status":
		out.status(must(c.Status(ctx)))
	case "conversations", "unread":
		out.conversations(must(c.Conversations(ctx, args[0] == "unread")))
	case "contacts":
		out.contacts(must(c.Contacts(ctx, strings.Join(args[1:], " "))))
	case "open":
		need(args, 2, "open <peer-id>")
		out.thread(must(c.Open(ctx, parseID(args[1]))))
	case "thread":
		out.thread(must(c.Thread(ctx)))
	case "close":
		if err := c.CloseThread(ctx); err != nil {
			fail(err)
		}
	case "read":
		need(args, 2, "read <peer-id>")
		if err := c.MarkRead(ctx, parseID(args[1])); err != nil {
			fail(err)
		}
	case "notifications":
		filter := "all"
		if len(args) > 1 {
			filter = args[1]
		}
		out.feed(must(c.Notifications(ctx, filter)))
	case "select":
		need(args, 2, "select <item-id>")
		out.selection(must(c.Select(ctx, args[1])))
	case "read-all":
		out.feed(must(c.ReadAll(ctx)))
	case "refresh":
		out.feed(must(c.Refresh(ctx)))
	case "draft":
		out.draft(must(c.Draft(ctx)))
	case "cancel":
		out.draft(must(c.CancelDraft(ctx)))
	case "send":
		need(args, 3, "send <peer-id> <text>")
		must(c.SetRecipient(ctx, parseID(args[1])))
		must(c.SetBody(ctx, strings.Join(args[2:], " ")))
		out.receipt(must(c.Submit(ctx)))
	case "reply":
		need(args, 3, "reply <message-id> <text>")
		must(c.ReplyTo(ctx, parseID(args[1])))
		must(c.SetBody(ctx, strings.Join(args[2:], " ")))
		out.receipt(must(c.Submit(ctx)))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: fitmsgctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                       Show daemon and sync status")
	fmt.Fprintln(os.Stderr, "  conversations                List conversations")
	fmt.Fprintln(os.Stderr, "  unread                       List conversations with unread messages")
	fmt.Fprintln(os.Stderr, "  contacts [query]             Search the contact directory")
	fmt.Fprintln(os.Stderr, "  open <peer-id>               Open a conversation")
	fmt.Fprintln(os.Stderr, "  thread                       Show the open conversation")
	fmt.Fprintln(os.Stderr, "  close                        Close the open conversation")
	fmt.Fprintln(os.Stderr, "  read <peer-id>               Mark a conversation read")
	fmt.Fprintln(os.Stderr, "  notifications [filter]       Show notifications (all|messages|schedule|system)")
	fmt.Fprintln(os.Stderr, "  select <item-id>             Open or acknowledge a notification")
	fmt.Fprintln(os.Stderr, "  read-all                     Mark all notifications read")
	fmt.Fprintln(os.Stderr, "  refresh                      Sync now")
	fmt.Fprintln(os.Stderr, "  draft | cancel               Show or discard the draft")
	fmt.Fprintln(os.Stderr, "  send <peer-id> <text>        Send a message")
	fmt.Fprintln(os.Stderr, "  reply <message-id> <text>    Reply to a message in the open conversation")
	fmt.Fprintln(os.Stderr, "  profiles                     List known profiles")
}

func must[T any](v T, err error) T {
	if err != nil {
		fail(err)
	}
	return v
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: fitmsgctl %s\n", usage)
		os.Exit(1)
	}
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fail(fmt.Errorf("invalid id %q", s))
	}
	return id
}

func fail(err error) {
	var ce *ctlclient.Error
	if !errors.As(err, &ce) && strings.Contains(err.Error(), "connect") {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon (is fitmsgd running?): %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdProfiles(paths profile.Paths, jsonOut bool) {
	entries, err := os.ReadDir(filepath.Join(paths.DataDir, "profiles"))
	if err != nil && !os.IsNotExist(err) {
		fail(err)
	}
	type row struct {
		Name    string `json:"name"`
		Running bool   `json:"running"`
		PID     int    `json:"pid,omitempty"`
	}
	var rows []row
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		owner, held, _ := lock.Probe(paths.Dir(e.Name()))
		rows = append(rows, row{Name: e.Name(), Running: held, PID: owner.PID})
	}
	if jsonOut {
		outputJSON(rows)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No profiles found.")
		return
	}
	for _, r := range rows {
		state := "stopped"
		if r.Running {
			state = fmt.Sprintf("running (pid %d)", r.PID)
		}
		fmt.Printf("%-20s %s\n", r.Name, state)
	}
}

type output struct {
	json bool
}

func (o output) status(v api.StatusView) {
	if o.json {
		outputJSON(v)
		return
	}
	fmt.Printf("Profile:       %s (%s)\n", v.Profile, v.Role)
	fmt.Printf("Sync:          %s since %s\n", v.State, humanize.Time(v.Since))
	if v.LastError != "" {
		fmt.Printf("Last error:    %s\n", v.LastError)
	}
	fmt.Printf("Conversations: %d (%d contacts)\n", v.Conversations, v.Contacts)
	fmt.Printf("Unread:        %d\n", v.TotalUnread)
	if !v.FetchedAt.IsZero() {
		fmt.Printf("Last fetch:    %s\n", humanize.Time(v.FetchedAt))
	}
	fmt.Printf("Uptime:        %s\n", strings.TrimSuffix(humanize.RelTime(v.StartedAt, time.Now(), "", ""), " "))
}

func (o output) conversations(v api.ConversationsView) {
	if o.json {
		outputJSON(v)
		return
	}
	if len(v.Conversations) == 0 {
		fmt.Println("No conversations.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PEER\tNAME\tROLE\tUNREAD\tLAST\tWHEN")
	for _, c := range v.Conversations {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.PeerID, c.PeerName, c.PeerRole, unread(c.UnreadCount), truncate(c.LastMessage, 40), when(c.LastMessageAt))
	}
	_ = w.Flush()
}

func (o output) contacts(v []api.ContactView) {
	if o.json {
		outputJSON(v)
		return
	}
	if len(v) == 0 {
		fmt.Println("No contacts.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tROLE\tLABEL\tEMAIL")
	for _, c := range v {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Role, c.Label, c.Email)
	}
	_ = w.Flush()
}

func (o output) thread(v api.ThreadView) {
	if o.json {
		outputJSON(v)
		return
	}
	name := v.PeerName
	if name == "" {
		name = fmt.Sprintf("user %d", v.PeerID)
	}
	fmt.Printf("Conversation with %s\n", name)
	if v.Error != "" {
		fmt.Printf("(load failed: %s)\n", v.Error)
	}
	for _, m := range v.Messages {
		who := name
		if m.IsMine {
			who = "you"
		}
		fmt.Printf("  [%d] %-12s %s: %s\n", m.ID, when(m.CreatedAt), who, m.Body)
	}
}

func (o output) feed(v api.FeedView) {
	if o.json {
		outputJSON(v)
		return
	}
	fmt.Printf("Unread: %d (messages %d, other %d)\n", v.TotalUnread, v.MessageUnread, v.SystemUnread)
	if len(v.Items) == 0 {
		fmt.Println("No notifications.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, it := range v.Items {
		mark := " "
		if !it.IsRead {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, it.ID, it.Type, it.Title, truncate(it.Body, 40), when(it.CreatedAt))
	}
	_ = w.Flush()
}

func (o output) selection(v api.SelectionView) {
	if o.json {
		outputJSON(v)
		return
	}
	if v.Opened && v.Thread != nil {
		o.thread(*v.Thread)
		return
	}
	fmt.Printf("Marked read: %s\n", v.Item.Title)
}

func (o output) draft(v api.DraftView) {
	if o.json {
		outputJSON(v)
		return
	}
	fmt.Printf("Mode: %s\n", v.Mode)
	if v.RecipientID != 0 {
		fmt.Printf("To:   %s (%d)\n", v.RecipientName, v.RecipientID)
	}
	if v.ReplyingTo != 0 {
		fmt.Printf("Re:   message %d\n", v.ReplyingTo)
	}
	fmt.Printf("Body: %s\n", v.Body)
}

func (o output) receipt(v api.ReceiptView) {
	if o.json {
		outputJSON(v)
		return
	}
	fmt.Printf("Sent message %d\n", v.MessageID)
}

func unread(n int) string {
	if n == 0 {
		return "-"
	}
	return humanize.Comma(int64(n))
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
