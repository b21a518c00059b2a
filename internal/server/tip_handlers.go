package server

import (
	"errors"

	"aurafeed/internal/models"
	"aurafeed/internal/tipamount"
	"aurafeed/internal/tipping"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten signals that a helper already wrote the response.
// Handlers must return nil in that case.
var errResponseWritten = errors.New("response already written")

// button resolves the tip button for the :id post. On failure it writes a
// 404 and returns errResponseWritten.
func (s *Server) button(c *fiber.Ctx) (*tipping.Button, error) {
	id := c.Params("id")
	post, ok := s.feed.Post(id)
	if !ok {
		_ = models.Respond(c, models.NewNotFoundError("Post", id))
		return nil, errResponseWritten
	}
	return s.buttons.Button(post), nil
}

func respondStatus(c *fiber.Ctx, st tipping.Status, err error) error {
	if errors.Is(err, tipping.ErrBusy) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "A tip for this post is already in progress",
			"code":   models.CodeConflict,
			"status": st,
		})
	}
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(st)
}

// GetTipStatus returns the tip button state for a post.
func (s *Server) GetTipStatus(c *fiber.Ctx) error {
	b, err := s.button(c)
	if err != nil {
		return nil
	}
	return c.JSON(b.Status())
}

type clickRequest struct {
	Ratio    *float64 `json:"ratio"`
	X        *float64 `json:"x"`
	Width    *float64 `json:"width"`
	Keyboard bool     `json:"keyboard"`
}

func (r clickRequest) ratio() (float64, bool) {
	switch {
	case r.Keyboard:
		return tipamount.ClickRatio(0, 0, true), true
	case r.Ratio != nil:
		return tipamount.ClampRatio(*r.Ratio), true
	case r.X != nil && r.Width != nil:
		return tipamount.ClickRatio(*r.X, *r.Width, false), true
	}
	return 0, false
}

// ClickTip adds an increment and queues an automatic submission. The body
// carries either a ratio in [0,1], a click position {x,width}, or
// {keyboard:true}.
func (s *Server) ClickTip(c *fiber.Ctx) error {
	b, err := s.button(c)
	if err != nil {
		return nil
	}
	var req clickRequest
	if err := c.BodyParser(&req); err != nil {
		return models.Respond(c, models.NewValidationError("Invalid request body"))
	}
	ratio, ok := req.ratio()
	if !ok {
		return models.Respond(c, models.NewValidationError("ratio, x and width, or keyboard is required"))
	}
	st, err := b.Click(ratio)
	return respondStatus(c, st, err)
}

// EditTip switches the button to free-text entry.
func (s *Server) EditTip(c *fiber.Ctx) error {
	b, err := s.button(c)
	if err != nil {
		return nil
	}
	st, err := b.BeginEdit()
	return respondStatus(c, st, err)
}

// SetTipAmount updates the free-text amount.
func (s *Server) SetTipAmount(c *fiber.Ctx) error {
	b, err := s.button(c)
	if err != nil {
		return nil
	}
	var req struct {
		Text *string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || req.Text == nil {
		return models.Respond(c, models.NewValidationError("text is required"))
	}
	st, err := b.SetText(*req.Text)
	return respondStatus(c, st, err)
}

// BlurTip leaves free-text entry and queues an automatic submission.
func (s *Server) BlurTip(c *fiber.Ctx) error {
	b, err := s.button(c)
	if err != nil {
		return nil
	}
	return c.JSON(b.Blur())
}

// SubmitTip sends the current amount now. With ?wait=true the response
// carries the final status; otherwise it returns 202 once the submission
// has started.
func (s *Server) SubmitTip(c *fiber.Ctx) error {
	b, err := s.button(c)
	if err != nil {
		return nil
	}
	if c.QueryBool("wait") {
		st, err := b.SubmitWait(c.UserContext())
		return respondStatus(c, st, err)
	}
	st, err := b.Submit(c.UserContext())
	if err != nil {
		return respondStatus(c, st, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(st)
}

// CancelTip drops a pending automatic submission and clears messages.
func (s *Server) CancelTip(c *fiber.Ctx) error {
	b, err := s.button(c)
	if err != nil {
		return nil
	}
	return c.JSON(b.Cancel())
}

// GetTips lists the ledger records, most recently tipped first.
func (s *Server) GetTips(c *fiber.Ctx) error {
	state := s.ledger.State()
	return c.JSON(fiber.Map{
		"records":         s.ledger.Records(),
		"last_updated_at": state.LastUpdatedAt,
		"loaded_from":     s.ledger.Source(),
	})
}

// GetTip returns the ledger record for one post.
func (s *Server) GetTip(c *fiber.Ctx) error {
	id := c.Params("postId")
	rec, ok := s.ledger.GetTip(id)
	if !ok {
		return models.Respond(c, models.NewNotFoundError("Tip record", id))
	}
	return c.JSON(rec)
}
