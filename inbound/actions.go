package inbound

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-webhooks/core"
)

// requiredActionFields lists the mapped fields each action handler needs
// before it can run. Validation failures are deterministic for a given
// payload and are therefore never retried.
var requiredActionFields = map[core.ActionType][]string{
	core.ActionCreateCustomer:    {"name"},
	core.ActionUpdateCustomer:    {"customer_id"},
	core.ActionAddStakeholder:    {"customer_id", "name"},
	core.ActionLogActivity:       {"customer_id", "description"},
	core.ActionCreateTask:        {"title"},
	core.ActionCreateRiskSignal:  {"customer_id", "signal"},
	core.ActionUpdateHealthScore: {"customer_id", "score"},
}

// RequiredFields returns the mapped fields an action validates before
// dispatch.
func RequiredFields(action core.ActionType) []string {
	return append([]string(nil), requiredActionFields[action]...)
}

// ValidateActionFields checks that every required field is present and
// non-empty in the mapped payload.
func ValidateActionFields(action core.ActionType, fields map[string]any) error {
	if err := action.Validate(); err != nil {
		return err
	}
	missing := make([]string, 0)
	for _, name := range requiredActionFields[action] {
		value, ok := fields[name]
		if !ok || isEmptyFieldValue(value) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return inboundBadInput(
		fmt.Sprintf("inbound: action %s requires fields: %s", action, strings.Join(missing, ", ")),
		map[string]any{"action_type": string(action), "missing_fields": missing},
	)
}

func isEmptyFieldValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	default:
		return false
	}
}
