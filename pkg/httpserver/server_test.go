package httpserver

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func TestErrorHandlerOption(t *testing.T) {
	s := New(logger.New("error"), Port("0"), ErrorHandler(func(c *fiber.Ctx, err error) error {
		return c.Status(fiber.StatusTeapot).SendString(err.Error())
	}))

	s.App.Get("/boom", func(*fiber.Ctx) error { return errors.New("boom") })

	resp, err := s.App.Test(httptest.NewRequest("GET", "/boom", nil))
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != fiber.StatusTeapot {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusTeapot)
	}
}

func TestDefaults(t *testing.T) {
	s := New(logger.New("error"))

	if s.address != _defaultAddr {
		t.Fatalf("address = %q, want %q", s.address, _defaultAddr)
	}

	if got := s.App.Config().BodyLimit; got != _defaultBodyLimit {
		t.Fatalf("body limit = %d, want %d", got, _defaultBodyLimit)
	}
}
