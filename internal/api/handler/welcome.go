package handler

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed static/welcome.html
var welcomePage []byte

// Welcome GET / - static landing page with an upload form
func Welcome(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(welcomePage)
}
