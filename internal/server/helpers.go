package server

import (
	"errors"
	"io"
	"strings"
	"unicode"

	"bloghub/internal/middleware"
	"bloghub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// pageParams reads ?page= and ?page_size=. Services clamp the values.
func pageParams(c *fiber.Ctx) (page, size int) {
	return c.QueryInt("page", 1), c.QueryInt("page_size", 0)
}

// parseBody decodes a JSON or form body into dst.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// currentUserID is the id stored by SessionManager.AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// optionalUserID resolves the caller on public routes.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	if id := currentUserID(c); id != 0 {
		return id
	}
	id, ok := s.sessions.OptionalUser(c)
	if !ok {
		return 0
	}
	c.Locals("userID", id)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), id))
	return id
}

// currentUser loads the authenticated user, reusing one loaded by a guard.
func (s *Server) currentUser(c *fiber.Ctx) (*models.User, error) {
	if u, ok := c.Locals("user").(*models.User); ok {
		return u, nil
	}
	u, err := s.userService.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewUnauthenticatedError("Account no longer exists")
		}
		return nil, err
	}
	c.Locals("user", u)
	return u, nil
}

// StaffRequired rejects callers who are neither moderators nor admins.
// Must be placed after AuthRequired.
func (s *Server) StaffRequired() fiber.Handler {
	return s.roleGuard("Staff access required", (*models.User).IsStaff)
}

// AdminRequired rejects non-admin callers with 403.
func (s *Server) AdminRequired() fiber.Handler {
	return s.roleGuard("Admin access required", (*models.User).IsAdmin)
}

func (s *Server) roleGuard(msg string, allowed func(*models.User) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.currentUser(c)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !allowed(user) {
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewUnauthorizedError(msg))
		}
		return c.Next()
	}
}

// formFile reads an optional multipart upload. A missing field yields nil.
func formFile(c *fiber.Ctx, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	return data, nil
}
