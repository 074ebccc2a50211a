// Package mapping resolves identity between tracker and hub
// entities: id pairs, custom attribute configurations per hub
// attribute, tracker-to-hub user matching, and attribute value
// conversion.
package mapping

// Hub attribute keys holding a hub entity's tracker identity.
const (
	TrackerIDKey   = "ftrackId"
	TrackerPathKey = "ftrackPath"
)

// RemovedIDValue marks a hub entity whose tracker counterpart is
// gone. The sentinel keeps the attribute set so it never re-matches a
// new tracker entity by accident.
const RemovedIDValue = "removed"

// Tracker custom attribute keys the sync writes back. They must exist
// on the tracker before a full pull may run.
const (
	HubIDAttr      = "ayon_id"
	HubPathAttr    = "ayon_path"
	SyncFailedAttr = "ayon_sync_failed"
)

// AutoSyncAttr is the tracker project toggle that switches automatic
// synchronization on. Flipping it to on triggers a full pull.
const AutoSyncAttr = "auto_sync_enabled"

// MandatoryTrackerAttrs lists the tracker custom attributes the sync
// cannot run without.
var MandatoryTrackerAttrs = []string{HubIDAttr, HubPathAttr, SyncFailedAttr}

// Tracker custom attribute groups recognized for automatic hub
// attribute mapping.
var recognizedGroups = map[string]bool{
	"ayon":     true,
	"openpype": true,
	"custom":   true,
}

// Tracker entity_type values used by custom attribute
// configurations.
const (
	ConfEntityTypeProject = "show"
	ConfEntityTypeContext = "task"
)

// FPSKeys are hub attribute names whose values pass through fps
// parsing before comparison.
var FPSKeys = map[string]bool{"fps": true, "fps_string": true}
