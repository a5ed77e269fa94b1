package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	eventValidator     *validator.Validate
	eventValidatorOnce sync.Once
)

func getEventValidator() *validator.Validate {
	eventValidatorOnce.Do(func() {
		eventValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return eventValidator
}

// DecodeBuildEvent parses a queue message body into a BuildEvent and checks the
// structurally required fields. Any failure wraps ErrMalformedEvent: such a
// message can never succeed and must not be retried.
func DecodeBuildEvent(body []byte) (*BuildEvent, error) {
	var ev BuildEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, NewAppError(ErrCodeValidationMalformedEvent, "body is not a JSON build event",
			fmt.Errorf("%w: %v", ErrMalformedEvent, err))
	}
	if err := ValidateBuildEvent(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ValidateBuildEvent reports which of type, payload and metadata are missing.
func ValidateBuildEvent(ev *BuildEvent) error {
	if ev == nil {
		return NewAppError(ErrCodeValidationMalformedEvent, "event is nil", ErrMalformedEvent)
	}
	ev.Type = strings.TrimSpace(ev.Type)

	err := getEventValidator().Struct(ev)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, strings.ToLower(fe.Field()))
		}
		return NewAppError(ErrCodeValidationMissingField,
			"missing required fields: "+strings.Join(missing, ", "),
			ErrMalformedEvent,
		).WithDetails(map[string]any{"fields": missing})
	}
	return NewAppError(ErrCodeValidationMalformedEvent, "event validation failed",
		fmt.Errorf("%w: %v", ErrMalformedEvent, err))
}
