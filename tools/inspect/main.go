// Command inspect dumps the chat store of a stopped server without going
// through the API. Badger locks its directory, so a running server must be stopped first.
//
//	inspect -db ./data users
//	inspect -db ./data summaries <userID>
//	inspect -db ./data messages <userA> <userB>
package main

import (
	"chat-relay/domain"
	"chat-relay/projection"
	"chat-relay/repositories"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("usage: inspect [-db path] users | summaries <userID> | messages <userA> <userB>")
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	switch {
	case args[0] == "users":
		err = printUsers(users)
	case args[0] == "summaries" && len(args) == 2:
		err = printSummaries(users, messages, domain.UserID(args[1]))
	case args[0] == "messages" && len(args) == 3:
		err = printMessages(messages, args[1], args[2])
	default:
		err = fmt.Errorf("unknown command %q", strings.Join(args, " "))
	}
	if err != nil {
		log.Fatal(err)
	}
}

func printUsers(users *repositories.UserRepository) error {
	list, err := users.ListUsers()
	if err != nil {
		return err
	}
	table := newTable("ID", "Name", "Email", "Created")
	for _, u := range list {
		table.Append([]string{u.ID, u.Name, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	table.Render()
	return nil
}

func printSummaries(users *repositories.UserRepository, messages *repositories.MessageRepository, viewer domain.UserID) error {
	summaries, err := projection.NewSummaryBuilder(messages, users, 4).SummariesFor(context.Background(), viewer)
	if err != nil {
		return err
	}
	table := newTable("Counterpart", "Name", "Last message", "At", "Unread")
	for _, s := range summaries {
		last, at := "", ""
		if s.LastMessage != nil {
			last = preview(s.LastMessage.Text, s.LastMessage.ImageRef)
			if s.LastMessage.SenderID == viewer {
				last = "me: " + last
			}
		}
		if s.LastMessageTime != nil {
			at = s.LastMessageTime.Format("15:04:05")
		}
		unread := strconv.FormatUint(uint64(s.UnreadCount), 10)
		if s.UnreadCount > 0 {
			unread = color.Yellow.Sprint(unread)
		}
		table.Append([]string{string(s.Counterpart.ID), s.Counterpart.Name, last, at, unread})
	}
	table.Render()
	return nil
}

func printMessages(messages *repositories.MessageRepository, userA, userB string) error {
	list, err := messages.RangeBetween(userA, userB)
	if err != nil {
		return err
	}
	table := newTable("ID", "At", "From", "To", "Content", "Read")
	for _, m := range list {
		read := color.Red.Sprint("no")
		if m.Read {
			read = color.Green.Sprint("yes")
		}
		id := m.ID.String()
		table.Append([]string{id[:8], m.At.Format("15:04:05.000"), m.Sender, m.Receiver,
			preview(m.Text, m.ImageRef), read})
	}
	table.Render()
	return nil
}

func preview(text, imageRef string) string {
	if len(text) > 40 {
		text = text[:40] + "…"
	}
	if imageRef != "" {
		return strings.TrimSpace(text + " [image]")
	}
	return text
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
