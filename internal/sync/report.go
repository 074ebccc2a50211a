package sync

import (
	"fmt"
	"strings"
)

// ReportItem is one noteworthy outcome of a sync run.
type ReportItem struct {
	TrackerID string
	HubID     string
	Name      string
	Detail    string
}

// Report collects everything a sync run could not, or chose not to,
// resolve automatically.
type Report struct {
	// NotFound lists hub entities whose tracker counterpart
	// disappeared.
	NotFound []ReportItem

	// RenamedBack lists tracker renames reverted because the hub
	// subtree carries published output and its name wins.
	RenamedBack []ReportItem

	// MovedBack lists tracker moves reverted for the same reason.
	MovedBack []ReportItem

	// Recreated lists published hub folders whose tracker
	// counterpart disappeared and was created anew.
	Recreated []ReportItem

	// DuplicatedNames lists tracker siblings whose name collided
	// with an already-claimed hub entity.
	DuplicatedNames []ReportItem

	// Failed lists entities the back-propagation flagged as failed
	// on the tracker side.
	Failed []ReportItem
}

// Empty reports a clean run.
func (r *Report) Empty() bool {
	return len(r.NotFound) == 0 && len(r.RenamedBack) == 0 &&
		len(r.MovedBack) == 0 && len(r.Recreated) == 0 &&
		len(r.DuplicatedNames) == 0 && len(r.Failed) == 0
}

// Summary renders a short human-readable account of the run.
func (r *Report) Summary() string {
	if r.Empty() {
		return "sync finished without conflicts"
	}
	var b strings.Builder
	section := func(title string, items []ReportItem) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s (%d):\n", title, len(items))
		for _, item := range items {
			fmt.Fprintf(&b, "  - %s", item.Name)
			if item.Detail != "" {
				fmt.Fprintf(&b, ": %s", item.Detail)
			}
			b.WriteByte('\n')
		}
	}
	section("tracker entities not found", r.NotFound)
	section("tracker renames reverted on published subtrees", r.RenamedBack)
	section("tracker moves reverted on published subtrees", r.MovedBack)
	section("tracker entities recreated for published subtrees", r.Recreated)
	section("duplicated names", r.DuplicatedNames)
	section("entities flagged as failed", r.Failed)
	return strings.TrimRight(b.String(), "\n")
}
