package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	storyID := uuid.New()

	tests := []struct {
		name    string
		req     *Request
		wantErr bool
	}{
		{
			name: "valid",
			req:  NewGenerateSceneRequest(storyID, nil),
		},
		{
			name:    "missing story",
			req:     NewGenerateSceneRequest(uuid.Nil, nil),
			wantErr: true,
		},
		{
			name:    "missing request id",
			req:     &Request{Type: RequestTypeGenerateScene, StoryID: storyID},
			wantErr: true,
		},
		{
			name:    "unknown type",
			req:     &Request{RequestID: "r1", Type: "chat", StoryID: storyID},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequest_JSON(t *testing.T) {
	req := NewGenerateSceneRequest(uuid.New(), []string{"Aria promised to return."})

	data, err := req.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"story_id":"`+req.StoryID.String()+`"`)

	parsed, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, req.StoryID, parsed.StoryID)
	assert.Equal(t, req.RelevantConversations, parsed.RelevantConversations)

	_, err = FromJSON([]byte(`{"story_id":"not-a-uuid"}`))
	assert.Error(t, err)
}
