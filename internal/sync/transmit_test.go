package sync

import (
	"context"
	"testing"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

func TestHandleEventSkipsUnconsumedTopics(t *testing.T) {
	// The topic filter runs before any server round trip; a nil
	// client would panic if it did not.
	tr := NewTransmitter(nil, nil, mapping.MappingSettings{}, nil)
	tests := []string{
		"entity.folder.tags_changed",
		"entity.task.created",
		"server.restarted",
	}
	for _, topic := range tests {
		t.Run(topic, func(t *testing.T) {
			if err := tr.HandleEvent(context.Background(), &ayon.Event{Topic: topic}); err != nil {
				t.Errorf("HandleEvent(%q) err = %v, want skipped", topic, err)
			}
		})
	}
}

func TestValidStatuses(t *testing.T) {
	tr := NewTransmitter(nil, nil, mapping.MappingSettings{}, nil)
	schema := &ftrack.ProjectSchema{
		AssetVersionWorkflow: ftrack.WorkflowSchema{Statuses: []ftrack.Status{
			{ID: "s-v", Name: "Approved"},
		}},
		TaskWorkflowSchema: ftrack.WorkflowSchema{Statuses: []ftrack.Status{
			{ID: "s-t", Name: "In Progress"},
		}},
		Schemas: []ftrack.Schema{
			{ObjectTypeID: "ot-shot", WorkflowSchema: ftrack.WorkflowSchema{Statuses: []ftrack.Status{
				{ID: "s-f", Name: "Omitted"},
			}}},
		},
	}

	tests := []struct {
		name   string
		entity *hubEntity
		want   []string
	}{
		{
			name:   "version uses asset version workflow",
			entity: &hubEntity{kind: "version"},
			want:   []string{"Approved"},
		},
		{
			name:   "folder uses its object type schema",
			entity: &hubEntity{kind: "folder", objectTypeID: "ot-shot"},
			want:   []string{"Omitted"},
		},
		{
			name:   "folder with unknown object type gets nothing",
			entity: &hubEntity{kind: "folder", objectTypeID: "ot-seq"},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.validStatuses(context.Background(), schema, tt.entity)
			if len(got) != len(tt.want) {
				t.Fatalf("validStatuses() = %v, want names %v", got, tt.want)
			}
			for i, st := range got {
				if st.Name != tt.want[i] {
					t.Errorf("validStatuses()[%d] = %q, want %q", i, st.Name, tt.want[i])
				}
			}
		})
	}
}
