package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/elearning/internal/models"
)

type stubTransport struct {
	status int
	body   string
	reqs   []*http.Request
	bodies []string
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.reqs = append(s.reqs, req)
	var b string
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		b = string(raw)
	}
	s.bodies = append(s.bodies, b)

	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: s.status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Request:    req,
	}, nil
}

func newTestIndex(t *testing.T, tr *stubTransport) *CourseIndex {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.local:9200"},
		Transport: tr,
	})
	require.NoError(t, err)
	return &CourseIndex{ES: client, Index: "courses"}
}

func TestCourseIndex_Search(t *testing.T) {
	tr := &stubTransport{
		status: http.StatusOK,
		body: `{"hits":{"total":{"value":2},"hits":[
			{"_source":{"id":"c1","name":"Go basics","price":10}},
			{"_source":{"id":"c2","name":"Advanced Go","price":20}}]}}`,
	}
	idx := newTestIndex(t, tr)

	total, docs, err := idx.Search(context.Background(), "go", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, docs, 2)
	assert.Equal(t, "c1", docs[0].ID)
	assert.Equal(t, "Advanced Go", docs[1].Name)

	require.Len(t, tr.reqs, 1)
	assert.Equal(t, "/courses/_search", tr.reqs[0].URL.Path)

	var q map[string]any
	require.NoError(t, json.Unmarshal([]byte(tr.bodies[0]), &q))
	mm := q["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "go", mm["query"])
	assert.EqualValues(t, 10, q["size"])
}

func TestCourseIndex_SearchError(t *testing.T) {
	idx := newTestIndex(t, &stubTransport{status: http.StatusBadRequest, body: `{"error":"bad"}`})

	_, _, err := idx.Search(context.Background(), "go", 0, 10)
	require.Error(t, err)
}

func TestCourseIndex_IndexAndDelete(t *testing.T) {
	tr := &stubTransport{status: http.StatusOK, body: `{"result":"created"}`}
	idx := newTestIndex(t, tr)

	c := &models.Course{Name: "Go basics", Tags: "go"}
	c.ID = "c1"
	require.NoError(t, idx.IndexCourse(context.Background(), c))
	assert.Equal(t, "/courses/_doc/c1", tr.reqs[0].URL.Path)
	assert.Contains(t, tr.bodies[0], `"name":"Go basics"`)

	tr.status = http.StatusNotFound
	require.NoError(t, idx.DeleteCourse(context.Background(), "missing"))
	assert.Equal(t, http.MethodDelete, tr.reqs[1].Method)
}
