package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	appchat "studenthelper/internal/app/chat"
	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/api"
	"studenthelper/internal/infra/config"
	"studenthelper/internal/infra/obs"
	"studenthelper/internal/infra/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration invalid:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	sessions := session.NewStore(cfg.SessionFile)
	client, err := api.NewClient(api.Config{
		BaseURL:     cfg.APIBaseURL,
		CallTimeout: cfg.CallTimeout,
	}, sessions, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "client init failed:", err)
		os.Exit(1)
	}

	stdin := bufio.NewScanner(os.Stdin)
	notifier := consoleNotifier{}
	service, err := appchat.NewService(appchat.Options{
		API:          client,
		Sessions:     sessions,
		Notifier:     notifier,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		Confirm: func(prompt string) bool {
			fmt.Printf("%s [y/N]: ", prompt)
			if !stdin.Scan() {
				return false
			}
			answer := strings.ToLower(strings.TrimSpace(stdin.Text()))
			return answer == "y" || answer == "yes"
		},
		OnAuthExpired: func() {
			fmt.Println("! Session expired, please login again")
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "chat init failed:", err)
		os.Exit(1)
	}
	defer service.Close()

	repl{
		ctx:      ctx,
		client:   client,
		sessions: sessions,
		service:  service,
		stdin:    stdin,
	}.run()
}

type consoleNotifier struct{}

func (consoleNotifier) Error(msg string)   { fmt.Println("! " + msg) }
func (consoleNotifier) Success(msg string) { fmt.Println("* " + msg) }

type repl struct {
	ctx      context.Context
	client   *api.Client
	sessions *session.Store
	service  *appchat.Service
	stdin    *bufio.Scanner
}

func (r repl) run() {
	if sess, err := r.sessions.Load(); err == nil {
		fmt.Printf("Logged in as %s\n", sess.UserName)
		r.service.RefreshConversations(r.ctx)
		r.printConversations()
	} else {
		fmt.Println("Not logged in. Use: login <email> <password>")
	}

	for {
		fmt.Print("> ")
		if !r.stdin.Scan() {
			return
		}
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(r.stdin.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "login":
			r.login(rest)
		case "register":
			r.register(rest)
		case "conversations", "ls":
			r.service.RefreshConversations(r.ctx)
			r.printConversations()
		case "open":
			r.open(rest)
		case "messages":
			r.printMessages()
		case "send":
			r.service.Send(r.ctx, rest)
			r.printMessages()
		case "delete":
			r.service.DeleteMessage(r.ctx, rest)
		case "close":
			r.service.Select(r.ctx, nil)
			fmt.Println("Conversation closed")
		case "logout":
			r.service.Select(r.ctx, nil)
			if err := r.sessions.Clear(); err != nil {
				fmt.Println("! logout failed:", err)
			} else {
				fmt.Println("Logged out")
			}
		case "help":
			r.printHelp()
		case "quit", "exit":
			return
		default:
			fmt.Printf("Unknown command %q, try help\n", cmd)
		}
	}
}

func (r repl) login(args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		fmt.Println("Usage: login <email> <password>")
		return
	}
	sess, err := r.client.Login(r.ctx, fields[0], fields[1])
	if err != nil {
		fmt.Println("! login failed:", err)
		return
	}
	if err := r.sessions.Save(sess); err != nil {
		fmt.Println("! session save failed:", err)
		return
	}
	fmt.Printf("Logged in as %s\n", sess.UserName)
	r.service.RefreshConversations(r.ctx)
	r.printConversations()
}

func (r repl) register(args string) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		fmt.Println("Usage: register <name> <email> <password>")
		return
	}
	sess, err := r.client.Register(r.ctx, fields[0], fields[1], fields[2])
	if err != nil {
		fmt.Println("! registration failed:", err)
		return
	}
	if err := r.sessions.Save(sess); err != nil {
		fmt.Println("! session save failed:", err)
		return
	}
	fmt.Printf("Registered as %s\n", sess.UserName)
}

func (r repl) open(args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		fmt.Println("Usage: open <userId> [pg|hostel|item <entityId>]")
		return
	}
	sel := &domainchat.Selection{CorrespondentID: fields[0]}
	if len(fields) == 3 {
		kind := domainchat.RelatedType(strings.ToLower(fields[1]))
		if kind.Valid() {
			sel.Related = &domainchat.RelatedEntity{Type: kind, ID: fields[2]}
		}
	}
	r.service.Select(r.ctx, sel)
	r.printMessages()
}

func (r repl) printConversations() {
	conversations := r.service.Conversations()
	if len(conversations) == 0 {
		fmt.Println("No conversations")
		return
	}
	for _, conv := range conversations {
		unread := ""
		if conv.Unread > 0 {
			unread = fmt.Sprintf(" (%d unread)", conv.Unread)
		}
		tag := ""
		if conv.Related != nil {
			tag = fmt.Sprintf(" [%s %s]", conv.Related.Type, conv.Related.ID)
		}
		fmt.Printf("  %s %s%s%s: %s\n",
			conv.CorrespondentID, conv.CorrespondentName, tag, unread, conv.LastMessage)
	}
}

func (r repl) printMessages() {
	active := r.service.Active()
	if active == nil {
		fmt.Println("No conversation open")
		return
	}
	messages := r.service.Messages()
	if len(messages) == 0 {
		fmt.Println(domainchat.NoMessagesPlaceholder)
		return
	}
	for _, msg := range messages {
		marker := ""
		if msg.Provisional {
			marker = " (sending...)"
		}
		fmt.Printf("  [%s] %s %s: %s%s\n",
			msg.ID, msg.SentAt.Local().Format(time.Kitchen), msg.SenderName, msg.Text, marker)
	}
}

func (r repl) printHelp() {
	fmt.Print(`Commands:
  login <email> <password>
  register <name> <email> <password>
  conversations               refresh and list threads
  open <userId> [type id]     open a thread, starts background polling
  messages                    print the open thread
  send <text>                 send to the open thread
  delete <messageId>          delete one of your messages
  close                       close the open thread
  logout
  quit
`)
}
