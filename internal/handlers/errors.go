package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/auth"
	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/message"
	"github.com/tellerdesk/tellerdesk/internal/notification"
	"github.com/tellerdesk/tellerdesk/internal/presence"
	"github.com/tellerdesk/tellerdesk/internal/requests"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
)

var errForbidden = errors.New("forbidden")

// ErrorResponse is the body echo writes for every HTTPError.
type ErrorResponse struct {
	Message string `json:"message"`
}

// statusTable maps domain sentinels to HTTP status codes. Order matters only for
// errors that wrap several sentinels.
var statusTable = []struct {
	err    error
	status int
}{
	{accounts.ErrInvalidCredentials, http.StatusUnauthorized},

	{errForbidden, http.StatusForbidden},
	{accounts.ErrUserInactive, http.StatusForbidden},
	{conversation.ErrPermissionDenied, http.StatusForbidden},
	{conversation.ErrStaffOnly, http.StatusForbidden},
	{tickets.ErrTicketForbidden, http.StatusForbidden},
	{requests.ErrRequestForbidden, http.StatusForbidden},
	{message.ErrReadOnly, http.StatusForbidden},
	{message.ErrNotAuthor, http.StatusForbidden},
	{message.ErrNotParticipant, http.StatusForbidden},

	{accounts.ErrUserNotFound, http.StatusNotFound},
	{accounts.ErrBranchNotFound, http.StatusNotFound},
	{accounts.ErrTeamNotFound, http.StatusNotFound},
	{tickets.ErrTicketNotFound, http.StatusNotFound},
	{tickets.ErrTeamNotFound, http.StatusNotFound},
	{requests.ErrRequestNotFound, http.StatusNotFound},
	{conversation.ErrConversationNotFound, http.StatusNotFound},
	{conversation.ErrParticipantNotFound, http.StatusNotFound},
	{message.ErrMessageNotFound, http.StatusNotFound},
	{notification.ErrNotificationNotFound, http.StatusNotFound},

	{accounts.ErrEmailTaken, http.StatusConflict},
	{accounts.ErrDuplicateName, http.StatusConflict},
	{conversation.ErrInvalidTransition, http.StatusConflict},
	{conversation.ErrNotActive, http.StatusConflict},
	{conversation.ErrOwnerRemoval, http.StatusConflict},
	{conversation.ErrDirectImmutable, http.StatusConflict},
	{message.ErrMessageDeleted, http.StatusConflict},
	{message.ErrEditWindowClosed, http.StatusConflict},

	{accounts.ErrInvalidRole, http.StatusBadRequest},
	{accounts.ErrTeamBranchMismatch, http.StatusBadRequest},
	{tickets.ErrInvalidStatus, http.StatusBadRequest},
	{tickets.ErrInvalidPriority, http.StatusBadRequest},
	{tickets.ErrInvalidAssignee, http.StatusBadRequest},
	{tickets.ErrSubjectRequired, http.StatusBadRequest},
	{requests.ErrInvalidStatus, http.StatusBadRequest},
	{requests.ErrInvalidAssignee, http.StatusBadRequest},
	{requests.ErrInvalidRequest, http.StatusBadRequest},
	{conversation.ErrTitleRequired, http.StatusBadRequest},
	{conversation.ErrSelfDirect, http.StatusBadRequest},
	{conversation.ErrInvalidRole, http.StatusBadRequest},
	{conversation.ErrIneligibleParticipant, http.StatusBadRequest},
	{message.ErrEmptyMessage, http.StatusBadRequest},
	{message.ErrContentTooLong, http.StatusBadRequest},
	{message.ErrTooManyAttachments, http.StatusBadRequest},
	{message.ErrAttachmentTooLarge, http.StatusBadRequest},
	{message.ErrInvalidAttachment, http.StatusBadRequest},
	{message.ErrInvalidReply, http.StatusBadRequest},
	{presence.ErrInvalidStatus, http.StatusBadRequest},
	{presence.ErrInvalidUser, http.StatusBadRequest},
	{notification.ErrInvalidUser, http.StatusBadRequest},
	{notification.ErrInvalidNotification, http.StatusBadRequest},
}

// httpError converts a service error into an echo.HTTPError. Unknown errors become a
// 500 whose cause is kept for the request log but not sent to the client.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return echo.NewHTTPError(entry.status, err.Error())
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

// bindAndValidate decodes the body and runs the struct validator.
func bindAndValidate(c echo.Context, into any) error {
	if err := c.Bind(into); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Validate(into)
}

func requireUserID(c echo.Context) (string, error) {
	return auth.UserIDFromContext(c)
}

func pathID(c echo.Context, name string) (string, error) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	return id, nil
}
