package journey

import (
	"errors"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/geo"
)

// Notice is a user-facing description of a failed action.
type Notice struct {
	Title       string
	Description string
	// SignIn asks the UI to redirect to the sign-in page.
	SignIn bool
}

// Describe maps an action error to a Notice. Classification uses the error
// kinds set where the error was produced; message text is never inspected.
func Describe(err error) Notice {
	switch geo.KindOf(err) {
	case geo.Timeout:
		return Notice{Title: "Location timed out", Description: "We couldn't get your location in time. Move to an open area and try again."}
	case geo.PermissionDenied:
		return Notice{Title: "Location permission denied", Description: "Allow location access for this site in your browser settings, then try again."}
	case geo.Unsupported:
		return Notice{Title: "Location not supported", Description: "This device does not provide location. Try another device."}
	case geo.InsecureContext:
		return Notice{Title: "Secure connection required", Description: "Location is only available over https."}
	case geo.Unavailable:
		return Notice{Title: "Location unavailable", Description: "Your position could not be determined. Try again in a moment."}
	case geo.Canceled:
		return Notice{Title: "Location request canceled", Description: "The location request was stopped before it finished. Try again."}
	}

	switch {
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return Notice{Title: "Please sign in", Description: "Your session has expired. Sign in to continue tracking.", SignIn: true}
	case errors.Is(err, domain.ErrLegNotFound):
		return Notice{Title: "Drive not found", Description: "This travel leg no longer exists. Reload the appointment."}
	case errors.Is(err, domain.ErrLegAlreadyCompleted):
		return Notice{Title: "Already recorded", Description: "This travel leg was already completed."}
	case errors.Is(err, domain.ErrLegInProgress):
		return Notice{Title: "Drive in progress", Description: "Finish your current drive before starting another."}
	case errors.Is(err, ErrNoCurrentLeg):
		return Notice{Title: "No active drive", Description: "There is no drive in progress to complete."}
	case errors.Is(err, ErrBusy):
		return Notice{Title: "Please wait", Description: "The previous action is still running."}
	case errors.Is(err, domain.ErrValidation):
		return Notice{Title: "Invalid request", Description: err.Error()}
	}
	return Notice{Title: "Something went wrong", Description: "The action could not be completed. Please try again."}
}
