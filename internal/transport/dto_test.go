package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/elearning/internal/models"
)

func TestCourseRequest_Model(t *testing.T) {
	t.Parallel()

	req := CourseRequest{
		Name:       "  Go  ",
		Benefits:   []TitleDTO{{Title: "b"}},
		CourseData: []ContentDTO{{Title: "s0"}, {Title: "s1", Links: []LinkDTO{{Title: "l", URL: "u"}}}},
	}
	m := req.Model()
	assert.Equal(t, "Go", m.Name)
	require.Len(t, m.Benefits, 1)
	assert.Nil(t, m.Prerequisites)
	require.Len(t, m.Content, 2)
	assert.Equal(t, 1, m.Content[1].Position)
	assert.Len(t, m.Content[1].Links, 1)
}

func TestPreviewOf_StripsPaidFields(t *testing.T) {
	t.Parallel()

	c := &models.Course{
		Name: "Go",
		Content: []models.CourseContent{{
			Title:      "intro",
			VideoURL:   "secret-video",
			Suggestion: "secret-suggestion",
			Links:      []models.Link{{URL: "secret-link"}},
			Questions:  []models.Question{{Text: "secret-question"}},
		}},
	}
	raw, err := json.Marshal(PreviewOf(c))
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"intro"`)
	for _, s := range []string{"secret-video", "secret-suggestion", "secret-link", "secret-question", "videoUrl"} {
		assert.NotContains(t, body, s)
	}
}
