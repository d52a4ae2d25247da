package lifecycle

import (
	"fmt"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
)

// Action is an operation an actor attempts on a job
type Action string

const (
	ActionCreate           Action = "create"
	ActionView             Action = "view"
	ActionEdit             Action = "edit"
	ActionApply            Action = "apply"
	ActionHire             Action = "hire"
	ActionComplete         Action = "complete"
	ActionCancel           Action = "cancel"
	ActionListApplications Action = "list_applications"
)

// Authorize is the single capability check for job operations.
// job may be nil only for ActionCreate. A denial wraps domain.ErrPermission.
func Authorize(actor domain.Actor, job *domain.Job, action Action) error {
	if actor.ID == "" {
		return fmt.Errorf("%w: unauthenticated actor", domain.ErrPermission)
	}

	if action == ActionCreate {
		if actor.Role == domain.RoleClient || actor.IsAdmin() {
			return nil
		}
		return fmt.Errorf("%w: only clients can post jobs", domain.ErrPermission)
	}

	if job == nil {
		return fmt.Errorf("%w: no job for action %s", domain.ErrPermission, action)
	}

	switch action {
	case ActionView:
		if actor.IsAdmin() || job.IsOwnedBy(actor.ID) || job.Status == domain.JobStatusOpen {
			return nil
		}
		return fmt.Errorf("%w: job is not visible", domain.ErrPermission)

	case ActionApply:
		if job.IsOwnedBy(actor.ID) {
			return fmt.Errorf("%w: cannot apply to your own job", domain.ErrPermission)
		}
		return nil

	case ActionEdit, ActionHire, ActionComplete, ActionCancel, ActionListApplications:
		if actor.IsAdmin() || job.IsOwnedBy(actor.ID) {
			return nil
		}
		return fmt.Errorf("%w: only the job owner can %s", domain.ErrPermission, actionVerb(action))

	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrPermission, action)
	}
}

func actionVerb(action Action) string {
	switch action {
	case ActionEdit:
		return "edit this job"
	case ActionHire:
		return "hire for this job"
	case ActionComplete:
		return "complete this job"
	case ActionCancel:
		return "cancel this job"
	case ActionListApplications:
		return "view its applications"
	default:
		return string(action)
	}
}
