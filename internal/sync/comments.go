package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

// noteMetadataKey marks a tracker note as a mirror of a hub comment
// so it is never mirrored twice.
const noteMetadataKey = "ayon_activity_id"

// minNoteSpacing is the spacing enforced between note creations on
// the same entity; the tracker collapses faster bursts.
const minNoteSpacing = time.Second

// SyncComments mirrors hub comment activities created after the
// watermark as tracker notes. The tracker note id is written back
// into the activity data, which makes redelivery idempotent. It
// returns the new watermark to persist.
func (t *Transmitter) SyncComments(ctx context.Context, project, watermark string) (string, error) {
	activities, err := t.client.ListComments(ctx, project, watermark)
	if err != nil {
		return watermark, fmt.Errorf("list hub comments: %w", err)
	}
	if len(activities) == 0 {
		return watermark, nil
	}

	trackerUsers, err := t.session.ActiveUsers(ctx)
	if err != nil {
		return watermark, err
	}
	hubUsers, err := t.client.ListUsers(ctx)
	if err != nil {
		return watermark, err
	}
	userMap := mapping.MapUsers(trackerUsers, mappingUsers(hubUsers))
	trackerUserByHubName := map[string]string{}
	for trackerID, hubName := range userMap {
		if hubName != "" {
			trackerUserByHubName[hubName] = trackerID
		}
	}

	newWatermark := watermark
	lastNotePerEntity := map[string]time.Time{}
	for _, activity := range activities {
		if activity.CreatedAt > newWatermark {
			newWatermark = activity.CreatedAt
		}
		if _, done := activity.ActivityData["ftrack_id"]; done {
			continue
		}
		trackerEntityID, err := t.trackerIDForActivity(ctx, project, activity)
		if err != nil {
			t.logger.Warn("comment target has no tracker counterpart",
				"activity", activity.ID, "error", err)
			continue
		}
		if trackerEntityID == "" {
			continue
		}

		if last, ok := lastNotePerEntity[trackerEntityID]; ok {
			if wait := minNoteSpacing - time.Since(last); wait > 0 {
				select {
				case <-ctx.Done():
					return newWatermark, ctx.Err()
				case <-time.After(wait):
				}
			}
		}

		noteID, err := t.createNote(ctx, trackerEntityID, activity, trackerUserByHubName)
		if err != nil {
			t.logger.Warn("note creation failed",
				"activity", activity.ID, "error", err)
			continue
		}
		lastNotePerEntity[trackerEntityID] = time.Now()

		if err := t.client.UpdateActivityData(ctx, project, activity.ID,
			map[string]any{"ftrack_id": noteID}); err != nil {
			t.logger.Warn("could not record note id on activity",
				"activity", activity.ID, "note", noteID, "error", err)
		}
	}
	return newWatermark, nil
}

// trackerIDForActivity resolves the tracker entity behind a comment's
// hub entity.
func (t *Transmitter) trackerIDForActivity(ctx context.Context, project string, activity ayon.Activity) (string, error) {
	var attribs map[string]any
	switch activity.EntityType {
	case "folder":
		model, err := t.client.GetFolder(ctx, project, activity.EntityID)
		if err != nil {
			return "", err
		}
		attribs = model.Attrib
	case "task":
		model, err := t.client.GetTask(ctx, project, activity.EntityID)
		if err != nil {
			return "", err
		}
		attribs = model.Attrib
	case "version":
		model, err := t.client.GetVersion(ctx, project, activity.EntityID)
		if err != nil {
			return "", err
		}
		attribs = model.Attrib
	default:
		return "", nil
	}
	trackerID, _ := attribs[mapping.TrackerIDKey].(string)
	if trackerID == mapping.RemovedIDValue {
		return "", nil
	}
	return trackerID, nil
}

// createNote writes one note plus its marker metadata row in a
// single commit and returns the note id. The id is minted client
// side, matching how tracker sessions create entities.
func (t *Transmitter) createNote(ctx context.Context, trackerEntityID string, activity ayon.Activity, trackerUserByHubName map[string]string) (string, error) {
	noteID := uuid.NewString()
	data := map[string]any{
		"id":          noteID,
		"parent_id":   trackerEntityID,
		"parent_type": "TypedContext",
		"content":     activity.Body,
	}
	if userID, ok := trackerUserByHubName[activity.Author]; ok {
		data["user_id"] = userID
	}
	t.session.Create(ftrack.EntityTypeNote, data)
	t.session.Create(ftrack.EntityTypeMetadata, map[string]any{
		"parent_id":   noteID,
		"parent_type": "Note",
		"key":         noteMetadataKey,
		"value":       activity.ID,
	})
	if err := t.session.Commit(ctx); err != nil {
		t.session.Rollback()
		return "", err
	}
	return noteID, nil
}
