package mapping

import (
	"strings"

	"github.com/ynput/ayon-ftrack/internal/ftrack"
)

// HubUser is the slice of a hub account the user mapping needs.
type HubUser struct {
	Name  string
	Email string
}

// MapUsers matches tracker accounts to hub accounts. Lowercased email
// is tried first, then the tracker username's local part against the
// hub account name. Each hub account is claimed at most once; tracker
// accounts with no match map to the empty string.
func MapUsers(trackerUsers []ftrack.User, hubUsers []HubUser) map[string]string {
	out := make(map[string]string, len(trackerUsers))
	for _, u := range trackerUsers {
		out[u.ID] = ""
	}

	claimed := make(map[string]bool, len(hubUsers))
	byEmail := make(map[string]HubUser, len(hubUsers))
	byName := make(map[string]HubUser, len(hubUsers))
	for _, u := range hubUsers {
		if u.Email != "" {
			byEmail[strings.ToLower(u.Email)] = u
		}
		byName[strings.ToLower(u.Name)] = u
	}

	remaining := make([]ftrack.User, 0, len(trackerUsers))
	for _, tu := range trackerUsers {
		hu, ok := byEmail[strings.ToLower(tu.Email)]
		if ok && tu.Email != "" && !claimed[hu.Name] {
			out[tu.ID] = hu.Name
			claimed[hu.Name] = true
			continue
		}
		remaining = append(remaining, tu)
	}

	for _, tu := range remaining {
		local, _, _ := strings.Cut(tu.Username, "@")
		hu, ok := byName[strings.ToLower(local)]
		if ok && !claimed[hu.Name] {
			out[tu.ID] = hu.Name
			claimed[hu.Name] = true
		}
	}
	return out
}
