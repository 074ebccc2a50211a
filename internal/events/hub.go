package events

import (
	"fmt"
	"strings"
)

// Hub event topics the transmitter consumes.
//
// SourceTopics is the enroll filter; every topic follows the
// entity.<type>.<change> shape.
var SourceTopics = []string{
	"entity.task.renamed",
	"entity.task.status_changed",
	"entity.task.attrib_changed",
	"entity.task.assignees_changed",
	"entity.folder.renamed",
	"entity.folder.status_changed",
	"entity.folder.attrib_changed",
	"entity.version.status_changed",
}

// IsSourceTopic reports whether the transmitter consumes the topic.
func IsSourceTopic(topic string) bool {
	for _, t := range SourceTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// HubTopic is a parsed entity.<type>.<change> topic.
type HubTopic struct {
	EntityType string
	Change     string
}

// ParseHubTopic splits an entity event topic.
func ParseHubTopic(topic string) (HubTopic, error) {
	parts := strings.SplitN(topic, ".", 3)
	if len(parts) != 3 || parts[0] != "entity" {
		return HubTopic{}, fmt.Errorf("events: not an entity topic: %q", topic)
	}
	return HubTopic{EntityType: parts[1], Change: parts[2]}, nil
}

// UpdateKey normalizes a topic change name to the hub field it
// describes: "renamed" means the name field, "*_changed" suffixes are
// stripped, and a bare type change resolves to the per-entity-type
// field name.
func (t HubTopic) UpdateKey() string {
	key := t.Change
	if key == "renamed" {
		return "name"
	}
	key = strings.TrimSuffix(key, "_changed")
	if key == "type" {
		switch t.EntityType {
		case "folder":
			return "folderType"
		case "task":
			return "taskType"
		case "product":
			return "productType"
		}
	}
	return key
}
