package soundpuff

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/interact"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

// headerPath is the action row under a playlist's title: play, like, like
// count, edit and delete.
const headerPath = "//div[contains(@class,'flex items-center gap-4 mt-6')]"

var (
	likesLabel = locate.XPath("//span[contains(normalize-space(),'likes')]")
	// The like button sits right before the "N likes" label; the row's first
	// button is play, not like.
	likeByLabel = locate.XPath("//span[contains(normalize-space(),'likes')]/preceding-sibling::button[1]")
	likeByIcon  = locate.XPath(headerPath + "//button[.//*[name()='svg' and contains(@class,'w-8')]]")

	commentInput = locate.Attr("input", "placeholder", "Add a comment...")
	// Send button next to the comment input.
	commentSend = locate.XPath("//input[@placeholder='Add a comment...']/following-sibling::button")
)

// SubmitWith selects how a comment is sent.
type SubmitWith int

const (
	// SubmitEnter presses Enter in the comment input.
	SubmitEnter SubmitWith = iota
	// SubmitButton clicks the send button next to the input.
	SubmitButton
)

// PlaylistLikes reads the "N likes" label of the open playlist. An
// unparseable label counts as zero.
func (a *App) PlaylistLikes(ctx context.Context) (int, error) {
	text, err := a.Text(ctx, likesLabel)
	if err != nil {
		return 0, err
	}
	n, _ := leadingInt(text)
	return n, nil
}

// HeaderLikeButton finds the playlist like button.
func (a *App) HeaderLikeButton(ctx context.Context) (session.Element, error) {
	return a.LocateVisible(ctx, likeByLabel, likeByIcon)
}

// ToggleLike clicks the playlist like button and waits for the like count
// to change. It returns the counts before and after.
func (a *App) ToggleLike(ctx context.Context) (before, after int, err error) {
	if before, err = a.PlaylistLikes(ctx); err != nil {
		return 0, 0, err
	}
	btn, err := a.HeaderLikeButton(ctx)
	if err != nil {
		return before, 0, err
	}
	if err := interact.Click(ctx, a.s, btn, a.timeout); err != nil {
		return before, 0, err
	}
	after, err = a.waitCount(ctx, "playlist like count to change", before, a.PlaylistLikes)
	return before, after, err
}

func (a *App) waitCount(ctx context.Context, what string, from int, read func(context.Context) (int, error)) (int, error) {
	return wait.Until(ctx, wait.Options{Timeout: a.timeout, Interval: a.cfg.Wait.PollInterval, Message: what},
		func(ctx context.Context) (int, bool, error) {
			n, err := read(ctx)
			return n, err == nil && n != from, err
		})
}

// AddComment posts text on the open playlist and returns the comment
// container once it renders.
func (a *App) AddComment(ctx context.Context, text string, how SubmitWith) (session.Element, error) {
	input, err := a.LocateVisible(ctx, commentInput)
	if err != nil {
		return session.Element{}, err
	}
	if err := interact.Fill(ctx, a.s, input, text, a.timeout); err != nil {
		return session.Element{}, err
	}
	switch how {
	case SubmitButton:
		err = a.Click(ctx, commentSend)
	default:
		err = interact.PressEnter(ctx, a.s, input)
	}
	if err != nil {
		return session.Element{}, fmt.Errorf("submit comment: %w", err)
	}
	return a.Comment(ctx, text)
}

func commentPath(text string) string {
	return "//p[normalize-space()=" + locate.Literal(text) + "]/ancestor::div[contains(@class,'flex gap-3')][1]"
}

// Comment waits for the container of the comment whose text is text.
func (a *App) Comment(ctx context.Context, text string) (session.Element, error) {
	return a.Locate(ctx, locate.XPath(commentPath(text)))
}

// CommentLikes reads the like count next to a comment's like button.
func (a *App) CommentLikes(ctx context.Context, comment session.Element) (int, error) {
	count, err := locate.Locate(ctx, a.s, a.within(comment, a.timeout),
		locate.XPath(".//button[@aria-label='Like comment']/following-sibling::span[1]"),
		locate.XPath(".//button[.//*[name()='svg' and contains(@class,'lucide-heart')]]/following-sibling::span[1]"))
	if err != nil {
		return 0, err
	}
	text, err := interact.Text(ctx, a.s, count)
	if err != nil {
		return 0, err
	}
	n, _ := leadingInt(text)
	return n, nil
}

// LikeComment likes the comment whose text is text and returns its like
// count before and after.
func (a *App) LikeComment(ctx context.Context, text string) (before, after int, err error) {
	comment, err := a.Comment(ctx, text)
	if err != nil {
		return 0, 0, err
	}
	if before, err = a.CommentLikes(ctx, comment); err != nil {
		return 0, 0, err
	}
	btn, err := locate.Locate(ctx, a.s, a.within(comment, a.timeout),
		locate.XPath(".//button[@aria-label='Like comment']"),
		locate.XPath(".//button[.//*[name()='svg' and contains(@class,'lucide-heart')]]"))
	if err != nil {
		return before, 0, err
	}
	if err := interact.Click(ctx, a.s, btn, a.timeout); err != nil {
		return before, 0, err
	}
	// Re-resolve the comment on every read: the list may be re-rendered.
	after, err = a.waitCount(ctx, "comment like count to change", before, func(ctx context.Context) (int, error) {
		c, err := a.Comment(ctx, text)
		if err != nil {
			return 0, err
		}
		return a.CommentLikes(ctx, c)
	})
	return before, after, err
}

// DeleteComment deletes the comment whose text is text through its options
// menu, accepts the confirmation and waits until it is gone.
func (a *App) DeleteComment(ctx context.Context, text string) error {
	comment, err := a.Comment(ctx, text)
	if err != nil {
		return err
	}
	menu, err := locate.Locate(ctx, a.s, a.within(comment, a.timeout),
		locate.XPath(".//div[contains(@class,'absolute') and contains(@class,'top-2')]//button"))
	if err != nil {
		return fmt.Errorf("comment options: %w", err)
	}
	if err := interact.Click(ctx, a.s, menu, a.timeout); err != nil {
		return err
	}
	o := a.visible(a.timeout)
	o.Scope = &comment
	del, err := locate.Locate(ctx, a.s, o, locate.XPath(".//button[normalize-space()='Delete']"))
	if err != nil {
		return fmt.Errorf("comment delete item: %w", err)
	}
	since := time.Now()
	if err := interact.Click(ctx, a.s, del, a.timeout); err != nil {
		return err
	}
	if _, err := a.s.WaitDialog(ctx, since, "", a.timeout); err != nil {
		a.log.Debug("No confirmation dialog seen.", zap.Error(err))
	}
	return locate.Gone(ctx, a.s, a.opts(a.timeout), locate.XPath(commentPath(text)))
}

// PageContains reports whether the page body text contains text.
func (a *App) PageContains(ctx context.Context, text string) (bool, error) {
	res, err := locate.Find(ctx, a.s, a.opts(0), locate.XPath("//body[contains(., "+locate.Literal(text)+")]"))
	return res.Found, err
}
