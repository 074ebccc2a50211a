package mapping

import (
	"github.com/ynput/ayon-ftrack/internal/ftrack"
)

// HubAttribute describes one attribute of the hub's entity schema.
type HubAttribute struct {
	// Name is the hub-side attribute key.
	Name string

	// Type is the hub value type: string, integer, float, boolean,
	// datetime, list_of_strings.
	Type string

	// Builtin marks attributes shipped with the hub rather than
	// added by a user.
	Builtin bool
}

// MappingItem is one user-configured mapping row: a hub attribute and
// the tracker attribute keys that feed it.
type MappingItem struct {
	HubName      string   `yaml:"hub" json:"name"`
	TrackerNames []string `yaml:"tracker" json:"attr"`
}

// MappingSettings is the attribute-mapping section of the addon
// settings.
type MappingSettings struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Items   []MappingItem `yaml:"items" json:"mapping"`
}

// MappedAttribute binds one hub attribute to the tracker custom
// attribute configurations that can carry its value. A hierarchical
// configuration serves every entity type; standard configurations are
// scoped per entity type and object type.
type MappedAttribute struct {
	HubName string
	Configs []ftrack.CustomAttributeConfig
}

// IsHierarchical reports whether the first (preferred) configuration
// is hierarchical.
func (a *MappedAttribute) IsHierarchical() bool {
	return len(a.Configs) > 0 && a.Configs[0].IsHierarchical
}

// ConfigFor returns the first configuration valid for the entity,
// identified by its configuration entity type (ConfEntityTypeProject
// or ConfEntityTypeContext) and, for contexts, its object type id.
// Hierarchical configurations match everything.
func (a *MappedAttribute) ConfigFor(confEntityType, objectTypeID string) *ftrack.CustomAttributeConfig {
	for i := range a.Configs {
		c := &a.Configs[i]
		if c.IsHierarchical {
			return c
		}
		if c.EntityType != confEntityType {
			continue
		}
		if confEntityType == ConfEntityTypeContext && c.ObjectTypeID != objectTypeID {
			continue
		}
		return c
	}
	return nil
}

// ConfigIDs returns the ids of all bound configurations.
func (a *MappedAttribute) ConfigIDs() []string {
	ids := make([]string, 0, len(a.Configs))
	for _, c := range a.Configs {
		ids = append(ids, c.ID)
	}
	return ids
}

// CustomAttributesMapping resolves hub attributes to tracker custom
// attribute configurations. Every hub attribute has an entry, even
// when no configuration serves it.
type CustomAttributesMapping struct {
	byHubName map[string]*MappedAttribute
}

// Get returns the entry for a hub attribute name.
func (m *CustomAttributesMapping) Get(hubName string) (*MappedAttribute, bool) {
	a, ok := m.byHubName[hubName]
	return a, ok
}

// All returns every entry.
func (m *CustomAttributesMapping) All() []*MappedAttribute {
	out := make([]*MappedAttribute, 0, len(m.byHubName))
	for _, a := range m.byHubName {
		out = append(out, a)
	}
	return out
}

// ConfigIDs returns the ids of every bound configuration across all
// entries, deduplicated.
func (m *CustomAttributesMapping) ConfigIDs() []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range m.byHubName {
		for _, id := range a.ConfigIDs() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// ByConfigID returns the entry owning the given configuration id.
func (m *CustomAttributesMapping) ByConfigID(configID string) (*MappedAttribute, bool) {
	for _, a := range m.byHubName {
		for _, c := range a.Configs {
			if c.ID == configID {
				return a, true
			}
		}
	}
	return nil, false
}

// BuildAttributesMapping resolves the mapping from the hub attribute
// schema, the tracker's custom attribute configurations, and the
// addon settings.
//
// With mapping disabled, hierarchical tracker attributes are
// auto-mapped onto hub attributes of the same name, but only when the
// configuration is builtin to the sync or sits in a recognized group.
// With mapping enabled, the user's rows decide: a hierarchical match
// yields a single configuration, standard matches yield one per
// entity type scope.
func BuildAttributesMapping(hubAttrs []HubAttribute, configs []ftrack.CustomAttributeConfig, settings MappingSettings) *CustomAttributesMapping {
	out := &CustomAttributesMapping{byHubName: make(map[string]*MappedAttribute, len(hubAttrs))}
	for _, attr := range hubAttrs {
		out.byHubName[attr.Name] = &MappedAttribute{HubName: attr.Name}
	}

	builtinNames := make(map[string]bool, len(hubAttrs))
	for _, attr := range hubAttrs {
		if attr.Builtin {
			builtinNames[attr.Name] = true
		}
	}

	if !settings.Enabled {
		for _, conf := range configs {
			if !conf.IsHierarchical {
				continue
			}
			entry, ok := out.byHubName[conf.Key]
			if !ok {
				continue
			}
			if !builtinNames[conf.Key] && !recognizedGroups[conf.Group.Name] {
				continue
			}
			entry.Configs = append(entry.Configs, conf)
		}
		return out
	}

	for _, item := range settings.Items {
		entry, ok := out.byHubName[item.HubName]
		if !ok {
			continue
		}
		wanted := make(map[string]bool, len(item.TrackerNames))
		for _, name := range item.TrackerNames {
			wanted[name] = true
		}
		// Hierarchical configurations win; a single one covers the
		// whole hierarchy so the search stops there.
		for _, conf := range configs {
			if conf.IsHierarchical && wanted[conf.Key] {
				entry.Configs = []ftrack.CustomAttributeConfig{conf}
				break
			}
		}
		if len(entry.Configs) > 0 {
			continue
		}
		for _, conf := range configs {
			if !conf.IsHierarchical && wanted[conf.Key] {
				entry.Configs = append(entry.Configs, conf)
			}
		}
	}
	return out
}
