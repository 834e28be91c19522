package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func send(c *fiber.Ctx, status int, resp APIResponse) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	if resp.Message == "" {
		if resp.Success {
			resp.Message = "success"
		} else {
			resp.Message = "error"
		}
	}
	return c.Status(status).JSON(resp)
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return send(c, fiber.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// SendCreated answers 201 with the created resource.
func SendCreated(c *fiber.Ctx, message string, data interface{}) error {
	return send(c, fiber.StatusCreated, APIResponse{Success: true, Message: message, Data: data})
}

// SendError answers a failure with only a message.
func SendError(c *fiber.Ctx, status int, message string) error {
	return send(c, status, APIResponse{Message: message})
}

// SendErrorWithDetails answers a failure carrying field level details,
// typically validator output.
func SendErrorWithDetails(c *fiber.Ctx, status int, message string, details interface{}) error {
	return send(c, status, APIResponse{Message: message, Details: details})
}

// SendFailure answers a failure that still has a body worth reading, such as a
// degraded health report.
func SendFailure(c *fiber.Ctx, status int, message string, data interface{}) error {
	return send(c, status, APIResponse{Message: message, Data: data})
}
