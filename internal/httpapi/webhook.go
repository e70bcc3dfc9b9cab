package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"horse.fit/tariqi/internal/auth"
	"horse.fit/tariqi/internal/ingest"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type updateIngester interface {
	IngestTelegramUpdate(ctx context.Context, payload json.RawMessage) (ingest.Result, error)
}

// handleTelegramWebhook answers 200 for saved and skipped updates so the bot platform does not redeliver them.
func (s *Server) handleTelegramWebhook(c echo.Context) error {
	if hash := s.opts.WebhookSecretHash; hash != "" {
		token := strings.TrimSpace(c.Request().Header.Get(telegramSecretHeader))
		if token == "" || !auth.VerifySecret(token, hash) {
			return fail(c, http.StatusUnauthorized, "Invalid webhook secret")
		}
	}
	if s.ingester == nil {
		return serverError(c, http.StatusInternalServerError)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var tooLarge *echo.HTTPError
		if errors.As(err, &tooLarge) {
			return fail(c, tooLarge.Code, "Request body too large")
		}
		return fail(c, http.StatusBadRequest, "Unable to read request body")
	}

	result, err := s.ingester.IngestTelegramUpdate(c.Request().Context(), body)
	if err != nil {
		var validationErr *ingest.ValidationError
		if errors.As(err, &validationErr) {
			status := http.StatusUnprocessableEntity
			if validationErr.Malformed {
				status = http.StatusBadRequest
			}
			return fail(c, status, validationErr.Error())
		}
		s.logger.Error().Err(err).Msg("telegram webhook ingest failed")
		return serverError(c, http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, result)
}

func parseUUID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}
