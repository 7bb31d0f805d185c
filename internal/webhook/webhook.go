// Package webhook serves intents over HTTP for voice platforms that deliver
// recognized slots as JSON.
package webhook

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"grocat/internal/skill"
	"grocat/internal/utils"
)

// Runner runs one named intent. *skill.Skill implements it.
type Runner interface {
	Handle(ctx context.Context, name string, slots skill.Slots, v skill.Voice) error
}

// IntentResponse is the body returned for every intent request.
type IntentResponse struct {
	Intent     string   `json:"intent"`
	Speech     []string `json:"speech"`
	Prompts    []string `json:"prompts,omitempty"`
	Error      string   `json:"error,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Server is the HTTP front-end. Intents are run one at a time.
type Server struct {
	app    *fiber.App
	runner Runner
	mu     sync.Mutex
}

// New creates a server running intents through runner. Request logs go to
// logOutput; nil disables them.
func New(runner Runner, logOutput io.Writer) *Server {
	s := &Server{runner: runner}

	app := fiber.New(fiber.Config{
		AppName:               "grocat",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	if logOutput != nil {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
			Output: logOutput,
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/intents", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"intents": skill.Intents()})
	})
	app.Post("/intents/:intent", s.handleIntent)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	utils.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleIntent(c *fiber.Ctx) error {
	name := c.Params("intent")

	var slots skill.Slots
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&slots); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "slots must be a JSON object of strings")
		}
	}

	rec := &recorder{}
	s.mu.Lock()
	err := s.runner.Handle(c.UserContext(), name, slots, rec)
	s.mu.Unlock()

	resp := IntentResponse{
		Intent:  name,
		Speech:  rec.speech,
		Prompts: rec.prompts,
	}
	if resp.Speech == nil {
		resp.Speech = []string{}
	}
	if err == nil {
		return c.JSON(resp)
	}

	utils.Debugf("intent %s failed: %v", name, err)
	resp.Error = err.Error()
	var sugg *utils.ErrorWithSuggestion
	if errors.As(err, &sugg) {
		resp.Error = sugg.Err.Error()
		resp.Suggestion = sugg.Suggestion
	}
	return c.Status(statusFor(err)).JSON(resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, skill.ErrUnknownIntent), errors.Is(err, utils.ErrListNotFound):
		return fiber.StatusNotFound
	case skill.IsUserError(err):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusBadGateway
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}

// recorder collects speech; a follow-up over HTTP is always unanswered.
type recorder struct {
	speech  []string
	prompts []string
}

func (r *recorder) Speak(text string) {
	r.speech = append(r.speech, text)
}

func (r *recorder) RequestFollowUp(_ context.Context, prompt string) (string, bool, error) {
	r.prompts = append(r.prompts, prompt)
	return "", false, nil
}
