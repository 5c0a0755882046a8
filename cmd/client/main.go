package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const usage = `Commands:
  /users          list contacts with unread badges
  /open <userID>  open a conversation
  /logout         go offline and leave
  /quit           leave
Any other line is sent to the open conversation.`

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Name != "" {
		_, err := client.NewAPI(config.ServerURL, nil).Register(ctx, config.Name, config.Email, config.Password)
		if err != nil && !stderrors.Is(err, errors.ErrUserAlreadyExists) {
			return exitRuntime, fmt.Errorf("register: %w", err)
		}
	}

	c := client.New(log, client.Options{
		BaseURL:       config.ServerURL,
		Credentials:   client.Credentials{Email: config.Email, Password: config.Password},
		TypingTimeout: config.TypingTimeout,
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	go render(ctx, c)

	color.Cyan.Println(usage)
	lines := readLines(ctx)
	for {
		select {
		case err := <-done:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				stop()
				return exitOK, <-done
			}
			if line == "/logout" {
				c.Logout()
				return exitOK, <-done
			}
			if err := handle(ctx, c, line); err != nil {
				color.Red.Println(err)
			}
		}
	}
}

func handle(ctx context.Context, c *client.Client, line string) error {
	switch {
	case line == "/users":
		printSummaries(c)
		return nil
	case strings.HasPrefix(line, "/open "):
		peer := domain.UserID(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		if err := c.OpenConversation(ctx, peer); err != nil {
			return err
		}
		for _, m := range c.Messages() {
			printMessage(c.Self().ID, m)
		}
		return nil
	case line == "":
		return c.SetDraft(ctx, "")
	default:
		_, err := c.Send(ctx, line, nil)
		return err
	}
}

func render(ctx context.Context, c *client.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.Updates():
			switch evt := e.(type) {
			case event.NewMessage:
				printMessage(c.Self().ID, evt.Message)
			case event.MessagesRead:
				color.Gray.Printf("%s read your messages\n", evt.ViewerID)
			case event.OnlineUsers:
				color.Gray.Printf("online: %v\n", evt.UserIDs)
			case event.TypingStateChanged:
				if evt.Signal.IsTyping {
					color.Gray.Printf("%s is typing...\n", evt.Signal.SenderID)
				}
			}
		}
	}
}

func printSummaries(c *client.Client) {
	for _, s := range c.Summaries() {
		badge := ""
		if s.UnreadCount > 0 {
			badge = color.Yellow.Sprintf(" (%d)", s.UnreadCount)
		}
		fmt.Printf("%s %s%s\n", s.Counterpart.ID, s.Counterpart.Name, badge)
	}
}

func printMessage(self domain.UserID, m domain.Message) {
	body := m.Text
	if m.ImageRef != "" {
		body = strings.TrimSpace(body + " [image " + m.ImageRef + "]")
	}
	stamp := m.CreatedAt.Local().Format(time.TimeOnly)
	if m.SenderID == self {
		mark := ""
		if m.Read {
			mark = " ✓"
		}
		color.Green.Printf("[%s] me: %s%s\n", stamp, body, mark)
		return
	}
	color.Blue.Printf("[%s] %s: %s\n", stamp, m.SenderID, body)
}

// readLines feeds stdin to the main loop; the channel closes on EOF.
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
