// Package cli implements the threadview commands on top of a thread.Store.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/example/threadkit/internal/thread"
)

var ErrUsage = errors.New("usage error")

const usage = `usage: threadview [-order newest|oldest] <command> [flags] [args]

commands:
  show [-json] [-more]          print the thread, expanding every loaded parent
  add [-file path] <text> [parent-id]
  edit [-file path] [-rm-attach] <comment-id> <text>
  delete <comment-id>
  like <comment-id>
  dislike <comment-id>
  watch                         print count updates until interrupted
`

// Watcher streams count updates for the open post until ctx ends.
type Watcher func(ctx context.Context, fn func(thread.CountUpdate)) error

type App struct {
	Store *thread.Store
	Out   io.Writer
	// Watch backs the watch command. Nil disables it.
	Watch Watcher
	// ReadFile loads attachments; defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Out, usage)
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "show":
		return a.show(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "like":
		return a.react(ctx, rest, thread.Like)
	case "dislike":
		return a.react(ctx, rest, thread.Dislike)
	case "watch":
		return a.watch(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(a.Out, usage)
		return nil
	default:
		fmt.Fprint(a.Out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	return fs
}

// Node is one comment with its loaded children, as printed by show.
type Node struct {
	thread.Comment
	Replies []Node `json:"replies,omitempty"`
}

func (a *App) show(ctx context.Context, args []string) error {
	fs := a.flags("show")
	asJSON := fs.Bool("json", false, "print the tree as JSON")
	more := fs.Bool("more", false, "load every page of every list")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if *more {
		if err := a.drain(ctx, ""); err != nil {
			return err
		}
	}
	roots := a.Store.RootComments()
	for _, r := range roots {
		if err := a.expandAll(ctx, r, *more); err != nil {
			return err
		}
	}

	tree := a.tree()
	if *asJSON {
		out := struct {
			Post     thread.Post `json:"post"`
			Total    int         `json:"total"`
			HasMore  bool        `json:"has_more"`
			Comments []Node      `json:"comments"`
		}{a.Store.Post(), a.Store.TotalCount(), a.Store.RootHasMore(), tree}
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	p := a.Store.Post()
	fmt.Fprintf(a.Out, "%s: %s\n", p.AuthorHandle, p.Text)
	fmt.Fprintf(a.Out, "%d comments\n", a.Store.TotalCount())
	for _, n := range tree {
		printNode(a.Out, n)
	}
	if a.Store.RootHasMore() {
		fmt.Fprintln(a.Out, "(more comments available)")
	}
	return nil
}

func (a *App) expandAll(ctx context.Context, c thread.Comment, more bool) error {
	if c.Depth == thread.DepthNested || c.ReplyCount == 0 {
		return nil
	}
	if err := a.Store.Expand(ctx, c.ID); err != nil && !errors.Is(err, thread.ErrLoadInFlight) {
		return err
	}
	if more {
		if err := a.drain(ctx, c.ID); err != nil {
			return err
		}
	}
	if c.Depth == thread.DepthRoot {
		for _, r := range a.Store.Replies(c.ID) {
			if err := a.expandAll(ctx, r, more); err != nil {
				return err
			}
		}
	}
	return nil
}

// drain loads pages of parentID's list until the service has no more.
func (a *App) drain(ctx context.Context, parentID string) error {
	for {
		loaded, err := a.Store.LoadMore(ctx, parentID)
		if err != nil {
			return err
		}
		if !loaded {
			return nil
		}
	}
}

func (a *App) tree() []Node {
	var out []Node
	for _, r := range a.Store.RootComments() {
		rn := Node{Comment: r}
		for _, rep := range a.Store.Replies(r.ID) {
			pn := Node{Comment: rep}
			for _, n := range a.Store.NestedReplies(rep.ID) {
				pn.Replies = append(pn.Replies, Node{Comment: n})
			}
			rn.Replies = append(rn.Replies, pn)
		}
		out = append(out, rn)
	}
	return out
}

func printNode(w io.Writer, n Node) {
	indent := strings.Repeat("  ", int(n.Depth))
	mark := ""
	switch {
	case n.UserLiked:
		mark = " [liked]"
	case n.UserDisliked:
		mark = " [disliked]"
	}
	fmt.Fprintf(w, "%s- %s (%s) +%d/-%d%s: %s\n", indent, n.AuthorHandle, n.ID, n.LikeCount, n.DislikeCount, mark, n.Text)
	if n.Attachment != nil {
		fmt.Fprintf(w, "%s  [%s] %s\n", indent, n.Attachment.Kind, n.Attachment.URL)
	}
	for _, c := range n.Replies {
		printNode(w, c)
	}
	if loaded := len(n.Replies); n.Depth != thread.DepthNested && n.ReplyCount > loaded {
		fmt.Fprintf(w, "%s  (%d more replies)\n", indent, n.ReplyCount-loaded)
	}
}

func (a *App) add(ctx context.Context, args []string) error {
	fs := a.flags("add")
	file := fs.String("file", "", "attach an image or video")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() < 1 && *file == "" || fs.NArg() > 2 {
		return fmt.Errorf("%w: add [-file path] <text> [parent-id]", ErrUsage)
	}

	d := thread.Draft{Text: fs.Arg(0)}
	if *file != "" {
		up, err := a.upload(*file)
		if err != nil {
			return err
		}
		d.Upload = up
	}
	parentID := fs.Arg(1)
	if parentID != "" {
		if err := a.locate(ctx, parentID); err != nil {
			return err
		}
	}

	c, err := a.Store.AddComment(ctx, d, parentID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "added %s (%s) total=%d\n", c.ID, c.Depth, a.Store.TotalCount())
	return nil
}

func (a *App) edit(ctx context.Context, args []string) error {
	fs := a.flags("edit")
	file := fs.String("file", "", "replace the attachment")
	rm := fs.Bool("rm-attach", false, "remove the attachment")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: edit [-file path] [-rm-attach] <comment-id> <text>", ErrUsage)
	}

	e := thread.CommentEdit{Text: fs.Arg(1), RemoveAttachment: *rm}
	if *file != "" {
		up, err := a.upload(*file)
		if err != nil {
			return err
		}
		e.Upload = up
	}
	if err := a.locate(ctx, fs.Arg(0)); err != nil {
		return err
	}
	c, err := a.Store.EditComment(ctx, fs.Arg(0), e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "edited %s\n", c.ID)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <comment-id>", ErrUsage)
	}
	if err := a.locate(ctx, args[0]); err != nil {
		return err
	}
	if err := a.Store.DeleteComment(ctx, args[0], ""); err != nil {
		return err
	}
	a.Store.Wait()
	fmt.Fprintf(a.Out, "deleted %s total=%d\n", args[0], a.Store.TotalCount())
	return nil
}

func (a *App) react(ctx context.Context, args []string, r thread.Reaction) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s <comment-id>", ErrUsage, r)
	}
	if err := a.locate(ctx, args[0]); err != nil {
		return err
	}
	c, err := a.Store.SetReaction(ctx, args[0], r)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s +%d/-%d liked=%t disliked=%t\n", c.ID, c.LikeCount, c.DislikeCount, c.UserLiked, c.UserDisliked)
	return nil
}

func (a *App) watch(ctx context.Context) error {
	if a.Watch == nil {
		return errors.New("watch needs NATS_URL")
	}
	return a.Watch(ctx, func(u thread.CountUpdate) {
		fmt.Fprintf(a.Out, "%s %d\n", u.PostID, u.Count)
	})
}

// locate pages through the thread until id is loaded.
func (a *App) locate(ctx context.Context, id string) error {
	if _, ok := a.Store.Comment(id); ok {
		return nil
	}
	for {
		for _, r := range a.Store.RootComments() {
			if err := a.expandAll(ctx, r, true); err != nil {
				return err
			}
			if _, ok := a.Store.Comment(id); ok {
				return nil
			}
		}
		loaded, err := a.Store.LoadMore(ctx, "")
		if err != nil {
			return err
		}
		if !loaded {
			return fmt.Errorf("comment %s: %w", id, thread.ErrCommentNotFound)
		}
	}
}

func (a *App) upload(path string) (*thread.Upload, error) {
	read := a.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return &thread.Upload{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}
