package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/elearning/internal/models"
)

// Document is the searchable projection of a course.
type Document struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Tags        string  `json:"tags"`
	Categories  string  `json:"categories"`
	Level       string  `json:"level"`
	Price       float64 `json:"price"`
	Ratings     float64 `json:"ratings"`
}

func DocumentFrom(c *models.Course) Document {
	return Document{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Tags:        c.Tags,
		Categories:  c.Categories,
		Level:       c.Level,
		Price:       c.Price,
		Ratings:     c.Ratings,
	}
}

type CourseIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func (x *CourseIndex) IndexCourse(ctx context.Context, c *models.Course) error {
	body, err := json.Marshal(DocumentFrom(c))
	if err != nil {
		return fmt.Errorf("search: encode course: %w", err)
	}
	res, err := x.ES.Index(
		x.Index,
		bytes.NewReader(body),
		x.ES.Index.WithContext(ctx),
		x.ES.Index.WithDocumentID(c.ID),
	)
	if err != nil {
		return fmt.Errorf("search: index course: %w", err)
	}
	return checkResponse(res, "index course")
}

func (x *CourseIndex) DeleteCourse(ctx context.Context, id string) error {
	res, err := x.ES.Delete(x.Index, id, x.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search: delete course: %w", err)
	}
	if res.StatusCode == 404 {
		res.Body.Close()
		return nil
	}
	return checkResponse(res, "delete course")
}

func (x *CourseIndex) Search(ctx context.Context, query string, from, size int) (int64, []Document, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "tags", "categories"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := x.ES.Search(
		x.ES.Search.WithContext(ctx),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("search: query failed %s: %s", res.Status(), raw)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search: decode: %w", err)
	}

	docs := make([]Document, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}

func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search: %s failed %s: %s", op, res.Status(), raw)
	}
	return nil
}
