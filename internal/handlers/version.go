package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/purrfect/backend/pkg/utils"
)

// Version is stamped at build time:
//
//	go build -ldflags "-X github.com/purrfect/backend/internal/handlers.Version=v1.2.3"
var Version = "dev"

func GetVersion(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"version":    Version,
		"apiVersion": "v1",
	})
}
