package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
	ErrExternalDependency = errors.New("external dependency failed")
)

// Ошибки валидации. Все оборачивают ErrValidationFailed.
var (
	ErrInvalidCategory          = fmt.Errorf("%w: unknown category", ErrValidationFailed)
	ErrInvalidStatus            = fmt.Errorf("%w: unknown response status", ErrValidationFailed)
	ErrTitleRequired            = fmt.Errorf("%w: title is required", ErrValidationFailed)
	ErrStartRequired            = fmt.Errorf("%w: start time is required", ErrValidationFailed)
	ErrEndBeforeStart           = fmt.Errorf("%w: end must not be before start", ErrValidationFailed)
	ErrEmptyWeekdays            = fmt.Errorf("%w: recurrence needs at least one weekday", ErrValidationFailed)
	ErrInvalidWeekday           = fmt.Errorf("%w: weekdays must be between 0 (Sunday) and 6 (Saturday)", ErrValidationFailed)
	ErrInvalidRecurrence        = fmt.Errorf("%w: invalid recurrence", ErrValidationFailed)
	ErrUntilBeforeStart         = fmt.Errorf("%w: recurrence end date is before the first occurrence", ErrValidationFailed)
	ErrTooManyOccurrences       = fmt.Errorf("%w: recurrence produces too many occurrences", ErrValidationFailed)
	ErrPitchTypeUnknown         = fmt.Errorf("%w: pitch type does not match any home venue", ErrValidationFailed)
	ErrDeadlineHoursOutOfRange  = fmt.Errorf("%w: rsvp deadline hours must be between 0 and 168", ErrValidationFailed)
	ErrArrivalMinutesOutOfRange = fmt.Errorf("%w: arrival minutes must be between 0 and 240", ErrValidationFailed)
	ErrInviteeNotMember         = fmt.Errorf("%w: invited user is not a member of the team", ErrValidationFailed)
	ErrTentativeClosed          = fmt.Errorf("%w: tentative is no longer allowed less than one hour before the rsvp deadline", ErrValidationFailed)
	ErrSeriesParamsRequired     = fmt.Errorf("%w: reshaping a series requires weekdays and an end date", ErrValidationFailed)
	ErrNotInSeries              = fmt.Errorf("%w: occurrence does not belong to a series", ErrValidationFailed)
	ErrInvalidTimeRange         = fmt.Errorf("%w: invalid time range", ErrValidationFailed)
)

// Ошибки «не найдено». Все оборачивают ErrNotFound.
var (
	ErrOccurrenceNotFound = fmt.Errorf("%w: occurrence not found", ErrNotFound)
	ErrTeamNotFound       = fmt.Errorf("%w: team not found", ErrNotFound)
	ErrMemberNotFound     = fmt.Errorf("%w: team member not found", ErrNotFound)
)

// Ошибки доступа.
var (
	ErrTrainerRoleRequired = fmt.Errorf("%w: trainer role required", ErrForbiddenOperation)
	ErrNotTeamMember       = fmt.Errorf("%w: not a member of this team", ErrForbiddenOperation)
)

// Внешние зависимости.
var (
	ErrFeedNotConfigured = fmt.Errorf("%w: fixture feed is not configured for this team", ErrExternalDependency)
)
