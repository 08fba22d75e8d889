package jenkins

import "encoding/json"

type causeAction struct {
	Class  string          `json:"_class"`
	Causes json.RawMessage `json:"causes"`
}

// ExtractCommitter returns the userId of the first cause of the build's
// CauseAction. Only the first CauseAction is considered. Any missing or
// malformed piece yields nil.
func ExtractCommitter(actions []json.RawMessage) *string {
	for _, raw := range actions {
		var action causeAction
		if err := json.Unmarshal(raw, &action); err != nil {
			continue
		}
		if action.Class != CauseActionClass {
			continue
		}
		return firstCauseUser(action.Causes)
	}
	return nil
}

func firstCauseUser(raw json.RawMessage) *string {
	var causes []json.RawMessage
	if err := json.Unmarshal(raw, &causes); err != nil || len(causes) == 0 {
		return nil
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(causes[0], &first); err != nil {
		return nil
	}

	userID, ok := first["userId"]
	if !ok {
		return nil
	}

	var user *string
	if err := json.Unmarshal(userID, &user); err != nil {
		return nil
	}
	return user
}
