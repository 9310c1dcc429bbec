// Package cli is the terminal inbox: it drives a chatsync.Session against the
// dashboard API and keeps the cache between invocations.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"waba-admin/internal/chatsync"
	"waba-admin/internal/domain"
)

// Backend is the dashboard API plus the session lookup used at start-up.
type Backend interface {
	chatsync.Backend
	Session(ctx context.Context) (chatsync.SessionInfo, error)
}

type inbox struct {
	apiURL    string
	token     string
	cacheFile string
	redisURL  string

	newBackend func(apiURL, token string) (Backend, error)
	now        func() time.Time
	loc        *time.Location

	session *chatsync.Session
	memory  *chatsync.MemoryStore
	closers []func() error
}

func defaultBackend(apiURL, token string) (Backend, error) {
	return chatsync.NewAPIClient(apiURL, chatsync.WithAccessToken(token))
}

func defaultCacheFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".waba-inbox.cache"
	}
	return filepath.Join(dir, "waba-admin", "inbox.cache")
}

// NewRootCmd builds the inbox command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&inbox{newBackend: defaultBackend, now: time.Now, loc: time.Local})
}

func newRootCmd(in *inbox) *cobra.Command {
	root := &cobra.Command{
		Use:           "inbox",
		Short:         "Read and answer WhatsApp Business conversations",
		Long:          `Terminal inbox for the WABA admin dashboard. Contacts and conversations are cached for one hour.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return in.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return in.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&in.apiURL, "api-url", os.Getenv("WABA_API_URL"), "dashboard API base URL")
	flags.StringVar(&in.token, "token", os.Getenv("WABA_ACCESS_TOKEN"), "Supabase access token")
	flags.StringVar(&in.cacheFile, "cache-file", defaultCacheFile(), "file backing the local cache")
	flags.StringVar(&in.redisURL, "redis-url", os.Getenv("REDIS_URL"), "share the cache through Redis instead of a file")

	root.AddCommand(
		in.contactsCmd(),
		in.messagesCmd(),
		in.sendCmd(),
		in.newChatCmd(),
		in.refreshCmd(),
		in.clearCacheCmd(),
	)
	return root
}

func (in *inbox) open(ctx context.Context) error {
	backend, err := in.newBackend(in.apiURL, in.token)
	if err != nil {
		return err
	}
	info, err := backend.Session(ctx)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	var store chatsync.Store
	if in.redisURL != "" {
		rs, err := chatsync.NewRedisStore(ctx, in.redisURL)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, rs.Close)
		store = rs
	} else {
		in.memory = chatsync.NewMemoryStore()
		if in.cacheFile != "" {
			if err := in.memory.LoadFile(in.cacheFile); err != nil {
				log.Warn().Err(err).Str("file", in.cacheFile).Msg("ignoring unreadable cache file")
			}
		}
		store = in.memory
	}

	in.session, err = chatsync.NewSession(backend, chatsync.NewCache(store, in.now), info.Credentials, chatsync.WithClock(in.now))
	return err
}

func (in *inbox) close() error {
	var errs []error
	if in.memory != nil && in.cacheFile != "" {
		if err := os.MkdirAll(filepath.Dir(in.cacheFile), 0o700); err != nil {
			errs = append(errs, err)
		} else if err := in.memory.SaveFile(in.cacheFile); err != nil {
			errs = append(errs, fmt.Errorf("save cache: %w", err))
		}
	}
	for _, c := range in.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func (in *inbox) contactsCmd() *cobra.Command {
	var refresh bool
	var search string
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List contacts, most recent conversation first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.session.FetchContacts(cmd.Context(), refresh); err != nil {
				return in.sessionError(err)
			}
			in.printContacts(cmd.OutOrStdout(), search)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached contact list")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only contacts containing this text")
	return cmd
}

func (in *inbox) messagesCmd() *cobra.Command {
	var more int
	var search string
	cmd := &cobra.Command{
		Use:   "messages <contact>",
		Short: "Show the latest messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := in.openConversation(ctx, args[0]); err != nil {
				return err
			}
			for i := 0; i < more; i++ {
				if !in.session.View().HasMore {
					break
				}
				if err := in.session.LoadMore(ctx); err != nil {
					return in.sessionError(err)
				}
			}
			in.printMessages(cmd.OutOrStdout(), search)
			return nil
		},
	}
	cmd.Flags().IntVar(&more, "more", 0, "load this many older pages")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only messages containing this text")
	return cmd
}

func (in *inbox) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <contact> <text>...",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := in.openConversation(ctx, args[0]); err != nil {
				return err
			}
			res, err := in.session.Send(ctx, strings.Join(args[1:], " "))
			if err != nil {
				return in.sessionError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", res.MessageID)
			return nil
		},
	}
}

func (in *inbox) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <number>",
		Short: "Start a conversation with a number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := in.session.FetchContacts(ctx, false); err != nil {
				return in.sessionError(err)
			}
			if err := in.session.NewChat(ctx, args[0]); err != nil {
				return in.sessionError(err)
			}
			in.printMessages(cmd.OutOrStdout(), "")
			return nil
		},
	}
}

func (in *inbox) refreshCmd() *cobra.Command {
	var contact string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reload contacts and, with --contact, that conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if contact != "" {
				if err := in.openConversation(ctx, contact); err != nil {
					return err
				}
			}
			if err := in.session.Refresh(ctx); err != nil {
				return in.sessionError(err)
			}
			in.printContacts(cmd.OutOrStdout(), "")
			return nil
		},
	}
	cmd.Flags().StringVar(&contact, "contact", "", "conversation to reload as well")
	return cmd
}

func (in *inbox) clearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove every cached entry of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.session.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}

func (in *inbox) openConversation(ctx context.Context, contact string) error {
	if err := in.session.FetchContacts(ctx, false); err != nil {
		return in.sessionError(err)
	}
	if err := in.session.Select(ctx, contact); err != nil {
		return in.sessionError(err)
	}
	return nil
}

// sessionError prefers the message the session recorded for display.
func (in *inbox) sessionError(err error) error {
	if msg := in.session.View().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func (in *inbox) printContacts(w io.Writer, search string) {
	v := in.session.View()
	contacts := chatsync.FilterContacts(v.Contacts, search)
	if len(contacts) == 0 {
		fmt.Fprintln(w, "no contacts")
		return
	}
	now := in.now()
	for _, c := range contacts {
		p := chatsync.Preview(c, v.LastMessages, now, in.loc)
		fmt.Fprintf(w, "%-16s %-10s %s\n", c, p.Time, p.Text)
	}
}

func (in *inbox) printMessages(w io.Writer, search string) {
	v := in.session.View()
	msgs := chatsync.FilterMessages(v.Messages, search)
	if len(msgs) == 0 {
		fmt.Fprintln(w, "no messages")
		return
	}
	if v.HasMore {
		fmt.Fprintln(w, "(older messages available: --more 1)")
	}
	now := in.now()
	for _, m := range msgs {
		who := v.Selected
		if m.Direction == domain.DirectionOut {
			who = "you"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", chatsync.FormatMessageTime(m.Timestamp, now, in.loc), who, m.Message)
	}
}
