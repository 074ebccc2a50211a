package mapping

// IDMapping is a bidirectional mapping between tracker entity ids and
// hub entity ids. Both directions are kept in lockstep: Set always
// writes both maps, so a lookup on either side stays consistent.
//
// The zero value is not usable; call NewIDMapping.
type IDMapping struct {
	trackerToHub map[string]string
	hubToTracker map[string]string
}

// NewIDMapping returns an empty mapping.
func NewIDMapping() *IDMapping {
	return &IDMapping{
		trackerToHub: make(map[string]string),
		hubToTracker: make(map[string]string),
	}
}

// Set records the pair. A tracker id or hub id that was already mapped
// is re-pointed: the previous counterpart is unlinked first so each id
// appears in at most one pair.
func (m *IDMapping) Set(trackerID, hubID string) {
	if prev, ok := m.trackerToHub[trackerID]; ok && prev != hubID {
		delete(m.hubToTracker, prev)
	}
	if prev, ok := m.hubToTracker[hubID]; ok && prev != trackerID {
		delete(m.trackerToHub, prev)
	}
	m.trackerToHub[trackerID] = hubID
	m.hubToTracker[hubID] = trackerID
}

// HubID returns the hub id mapped to trackerID.
func (m *IDMapping) HubID(trackerID string) (string, bool) {
	id, ok := m.trackerToHub[trackerID]
	return id, ok
}

// TrackerID returns the tracker id mapped to hubID.
func (m *IDMapping) TrackerID(hubID string) (string, bool) {
	id, ok := m.hubToTracker[hubID]
	return id, ok
}

// Len reports the number of pairs.
func (m *IDMapping) Len() int {
	return len(m.trackerToHub)
}
