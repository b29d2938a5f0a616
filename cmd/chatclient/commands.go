package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jrsteele09/go-chat-client/chat"
	"github.com/jrsteele09/go-chat-client/credentials/pebblerepo"
	"github.com/jrsteele09/go-chat-client/gateway"
	"github.com/jrsteele09/go-chat-client/internal/config"
	"github.com/jrsteele09/go-chat-client/internal/logging"
	"github.com/jrsteele09/go-chat-client/realtime"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

// app holds the client shared by every subcommand of one invocation.
type app struct {
	cfg    config.Config
	client *chat.Client
	quiet  bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "chatclient",
		Short:         "Command line client for the chat service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "do not print the banner")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.usersCmd(),
		a.roomsCmd(),
		a.historyCmd(),
		a.sendCmd(),
		a.listenCmd(),
	)
	return root
}

func (a *app) open(out io.Writer) error {
	a.cfg = config.New()
	logging.Setup(a.cfg.GetEnv(), os.Stderr)
	if !a.quiet {
		displayAppname(a.cfg.GetAppName())
	}

	repo, err := pebblerepo.Open(a.cfg.GetDataFolder())
	if err != nil {
		return errors.Wrap(err, "open credential store")
	}
	client, err := chat.NewClient(a.cfg, repo)
	if err != nil {
		_ = repo.Close()
		return err
	}
	client.Chat.OnSessionEnded(func(error) {
		fmt.Fprintln(out, "Your session has expired. Please sign in again.")
	})
	a.client = client
	return nil
}

// execute runs the command line and always releases the credential store,
// including when the command failed.
func (a *app) execute(args []string, out io.Writer) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	if out != nil {
		root.SetOut(out)
	}
	err := root.Execute()
	if a.client != nil {
		if cerr := a.client.Close(); err == nil {
			err = cerr
		}
		a.client = nil
	}
	return err
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

// failure turns a failed outcome into a command error carrying the user-facing message.
func failure(f *gateway.Failure) error {
	if f == nil {
		return errors.New("request failed")
	}
	return errors.New(f.Message())
}

func (a *app) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return errors.Wrap(err, "read password")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()
			out := a.client.Auth.Login(ctx, args[0], password)
			if !out.OK {
				return failure(out.Failure)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", out.Data.Username, out.Data.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", os.Getenv("CHAT_PASSWORD"), "account password (prompted when empty)")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			if err := a.client.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := a.client.Auth.CurrentUser()
			if !ok {
				return errors.New("not signed in")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", id.Username, id.Email)
			return nil
		},
	}
}

func (a *app) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the other users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out := a.client.Chat.FetchUsers(ctx)
			if !out.OK {
				return failure(out.Failure)
			}
			for _, u := range out.Data {
				state := "offline"
				if u.IsOnline != nil && *u.IsOnline {
					state = "online"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-20s %s\n", u.Email, u.Username, state)
			}
			return nil
		},
	}
}

func (a *app) roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List conversations with their unread counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out := a.client.Chat.FetchRooms(ctx)
			if !out.OK {
				return failure(out.Failure)
			}
			for _, room := range out.Data {
				last := ""
				if room.LastMessage != nil {
					last = room.LastMessage.Content
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %3d unread  %s\n", room.OtherUserEmail, room.UnreadCount, last)
			}
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	var markRead bool
	cmd := &cobra.Command{
		Use:   "history <email>",
		Short: "Show the conversation with another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out := a.client.Chat.FetchHistory(ctx, args[0], limit)
			if !out.OK {
				return failure(out.Failure)
			}
			for _, m := range out.Data {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", m.Timestamp, m.SenderEmail, m.Content)
			}
			if markRead {
				if res := a.client.Chat.MarkAllRead(ctx, args[0]); !res.OK {
					return failure(res.Failure)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", chat.DefaultHistoryLimit, "maximum number of messages")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "mark the conversation as read")
	return cmd
}

func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <email> <message>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delivered := make(chan struct{}, 1)
			a.client.Chat.OnMessageSent(func(realtime.MessageSent) {
				select {
				case delivered <- struct{}{}:
				default:
				}
			})
			if _, err := a.client.Chat.SendMessage(args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}

			select {
			case <-delivered:
				fmt.Fprintln(cmd.OutOrStdout(), "Sent")
				return nil
			case <-time.After(requestTimeout):
				return errors.New("message was not acknowledged")
			}
		},
	}
}

func (a *app) listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print live events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			a.client.Chat.OnChatMessage(func(m realtime.ChatMessage) {
				fmt.Fprintf(out, "%s: %s\n", m.SenderEmail, m.Content)
			})
			a.client.Chat.OnTyping(func(t realtime.Typing) {
				if t.IsTyping {
					fmt.Fprintf(out, "%s is typing...\n", t.SenderEmail)
				}
			})
			a.client.Chat.OnReadReceipt(func(r realtime.ReadReceipt) {
				fmt.Fprintf(out, "%s read your messages\n", r.ReaderEmail)
			})
			a.client.Chat.OnUserStatus(func(s realtime.UserStatus) {
				state := "offline"
				if s.IsOnline {
					state = "online"
				}
				fmt.Fprintf(out, "%s is %s\n", s.UserEmail, state)
			})
			a.client.Chat.OnServerError(func(e realtime.ServerError) {
				fmt.Fprintf(out, "server error: %s\n", e.Message)
			})
			a.client.Chat.OnConnectionStatus(func(connected bool) {
				if connected {
					fmt.Fprintln(out, "connected")
				} else {
					fmt.Fprintln(out, "disconnected")
				}
			})
			a.client.Chat.OnSessionEnded(func(error) {
				fmt.Fprintln(out, "Your session has expired. Please sign in again.")
				stop()
			})

			if err := a.client.Chat.Start(); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}
