package sync

import (
	"context"
	"sort"

	"github.com/ynput/ayon-ftrack/internal/ftrack"
)

// writeIdentityAttributes records the tracker operations needed to
// make the identity custom attributes match the expected rows, and
// commits them. expected maps tracker entity id to attribute key to
// value; confs maps attribute key to its configuration. Rows already
// holding the expected value produce no operation.
func writeIdentityAttributes(ctx context.Context, session *ftrack.Session, confs map[string]*ftrack.CustomAttributeConfig, expected map[string]map[string]any) error {
	if len(expected) == 0 {
		return nil
	}
	entityIDs := make([]string, 0, len(expected))
	for id := range expected {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	confIDs := make([]string, 0, len(confs))
	for _, conf := range confs {
		if conf != nil {
			confIDs = append(confIDs, conf.ID)
		}
	}
	current, err := session.CustomAttributeValues(ctx, entityIDs, confIDs)
	if err != nil {
		return err
	}
	existing := map[string]map[string]any{}
	for _, v := range current {
		if existing[v.EntityID] == nil {
			existing[v.EntityID] = map[string]any{}
		}
		existing[v.EntityID][v.ConfigurationID] = v.Value
	}

	for _, entityID := range entityIDs {
		for key, value := range expected[entityID] {
			conf := confs[key]
			if conf == nil {
				continue
			}
			stored, hasRow := existing[entityID][conf.ID]
			if hasRow && attrValuesEqual(stored, value) {
				continue
			}
			if hasRow {
				session.Update(ftrack.EntityTypeContextAttrValue,
					[]string{entityID, conf.ID},
					map[string]any{"value": value})
			} else {
				session.Create(ftrack.EntityTypeContextAttrValue, map[string]any{
					"entity_id":        entityID,
					"configuration_id": conf.ID,
					"value":            value,
				})
			}
		}
	}
	if session.PendingOperations() == 0 {
		return nil
	}
	return session.Commit(ctx)
}
