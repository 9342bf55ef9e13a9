// Package status exposes a small read-only HTTP view of a running relay.
package status

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Roster is implemented by the chat server.
type Roster interface {
	OnlineUsers() []string
}

// UsersResponse is the body of GET /users.
type UsersResponse struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// New builds the status app.  Access logs go to logOut, or stdout if nil.
func New(roster Roster, logOut io.Writer) *fiber.App {
	if logOut == nil {
		logOut = os.Stdout
	}
	app := fiber.New(fiber.Config{
		AppName:               "nickchat status",
		DisableStartupMessage: true,
	})
	app.Use(logger.New(logger.Config{
		Format: "[status] ${time} ${status} ${method} ${path} ${latency}\n",
		Output: logOut,
	}))

	app.Get("/health", health)
	app.Get("/users", users(roster))
	return app
}

func health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func users(roster Roster) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names := roster.OnlineUsers()
		if names == nil {
			names = []string{}
		}
		return c.JSON(UsersResponse{Count: len(names), Users: names})
	}
}
