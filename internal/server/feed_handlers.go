package server

import (
	"context"

	"aurafeed/internal/models"
	"aurafeed/internal/ranking"

	"github.com/gofiber/fiber/v2"
)

// GetPosts returns the merged feed. ?mode=personalized|chronological
// overrides the feed toggle for this request.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	mode := s.feed.Mode()
	if raw := c.Query("mode"); raw != "" {
		m, err := ranking.ParseMode(raw)
		if err != nil {
			return models.Respond(c, models.NewValidationError(err.Error()))
		}
		mode = m
	}

	posts := s.feed.Posts(mode)
	return c.JSON(fiber.Map{
		"posts":  posts,
		"mode":   mode.String(),
		"source": s.feed.SourceName(),
		"count":  len(posts),
	})
}

// GetPost returns one merged post with the viewer's tip state.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id := c.Params("id")
	post, ok := s.feed.Post(id)
	if !ok {
		return models.Respond(c, models.NewNotFoundError("Post", id))
	}
	return c.JSON(fiber.Map{
		"post":       post,
		"has_tipped": s.feed.HasTipped(id),
	})
}

type invalidator interface {
	Invalidate(ctx context.Context) error
}

func (s *Server) feedMode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"personalized": s.feed.Personalized(),
		"mode":         s.feed.Mode().String(),
	})
}

// GetFeedMode reports the ordering toggle.
func (s *Server) GetFeedMode(c *fiber.Ctx) error {
	return s.feedMode(c)
}

// SetFeedMode sets the ordering toggle. An empty body flips it.
func (s *Server) SetFeedMode(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		s.feed.TogglePersonalized()
		return s.feedMode(c)
	}

	var req struct {
		Personalized *bool `json:"personalized"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.Respond(c, models.NewValidationError("Invalid request body"))
	}
	if req.Personalized == nil {
		return models.Respond(c, models.NewValidationError("personalized is required"))
	}
	s.feed.SetPersonalized(*req.Personalized)
	return s.feedMode(c)
}

// RefreshFeed drops the cached snapshot and reloads posts from the source.
func (s *Server) RefreshFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if cached, ok := s.source.(invalidator); ok {
		_ = cached.Invalidate(ctx)
	}
	if err := s.feed.Refresh(ctx); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"source": s.feed.SourceName(),
		"count":  len(s.feed.Posts(ranking.Chronological)),
	})
}
