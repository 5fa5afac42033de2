package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []common.Candidate
	}{
		{
			name: "foods object with percentages",
			body: `{"foods":[{"name":"Chicken Curry","confidence":92,"portion":"Large","bbox":[10,20,110,220]}]}`,
			expected: []common.Candidate{{
				Name: "chicken_curry", Confidence: 0.92, Method: common.MethodDelegate, PortionHint: "large",
				BBox: &common.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220},
			}},
		},
		{
			name: "top-level array with xywh boxes",
			body: `[{"label":"rice","score":0.7,"box":{"x":5,"y":5,"width":20,"height":10}}]`,
			expected: []common.Candidate{{
				Name: "rice", Confidence: 0.7, Method: common.MethodDelegate,
				BBox: &common.BoundingBox{X1: 5, Y1: 5, X2: 25, Y2: 15},
			}},
		},
		{
			name: "detections with corner boxes and nameless items",
			body: `{"detections":[{"class":"dal","probability":0.4,"bounding_box":{"x1":1,"y1":2,"x2":3,"y2":4}},{"confidence":0.9}]}`,
			expected: []common.Candidate{{
				Name: "dal", Confidence: 0.4, Method: common.MethodDelegate,
				BBox: &common.BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4},
			}},
		},
		{
			name: "string labels and missing confidence",
			body: `{"labels":["String Hoppers"]}`,
			expected: []common.Candidate{{
				Name: "string_hoppers", Confidence: DefaultConfidence, Method: common.MethodDelegate,
			}},
		},
		{
			name: "case-insensitive keys and invalid box",
			body: `{"items":[{"Name":"Sambol","Confidence":1.7,"BBox":[5,5,1,1]}]}`,
			expected: []common.Candidate{{
				Name: "sambol", Confidence: 0.017, Method: common.MethodDelegate,
			}},
		},
		{
			name:     "empty list",
			body:     `{"detected_foods":[]}`,
			expected: []common.Candidate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.body))
			require.NoError(t, err)
			require.Len(t, got, len(tt.expected))
			for i := range tt.expected {
				assert.Equal(t, tt.expected[i].Name, got[i].Name)
				assert.InDelta(t, tt.expected[i].Confidence, got[i].Confidence, 1e-9)
				assert.Equal(t, tt.expected[i].Method, got[i].Method)
				assert.Equal(t, tt.expected[i].PortionHint, got[i].PortionHint)
				assert.Equal(t, tt.expected[i].BBox, got[i].BBox)
			}
		})
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: "  "},
		{name: "not json", body: "rice, curry"},
		{name: "no list", body: `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "fried_rice", NormalizeName("  Fried Rice "))
	assert.Equal(t, "string_hoppers", NormalizeName("string - hoppers"))
	assert.Equal(t, "", NormalizeName(""))
}

func TestHTTPBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "u-42", r.FormValue("user_id"))
		assert.Equal(t, "sri_lankan", r.FormValue("cultural_context"))

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("jpeg-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"foods":[{"name":"kottu","confidence":0.88}]}`))
	}))
	defer server.Close()

	b := NewHTTPBackend(server.URL, 2*time.Second, nil)
	got, err := b.Detect(context.Background(), Request{Image: []byte("jpeg-bytes"), UserID: "u-42", CulturalContext: "sri_lankan"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kottu", got[0].Name)
}

func TestHTTPBackendStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPBackend(server.URL, time.Second, nil).Detect(context.Background(), Request{Image: []byte("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "503")
}

func TestOpenAIBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": "```json\n{\"foods\":[{\"name\":\"hoppers\",\"confidence\":0.81,\"portion\":\"small\"}]}\n```",
				},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	b := NewOpenAIBackend("test-key", "gpt-4o-mini", server.URL, nil)
	got, err := b.Detect(context.Background(), Request{Image: []byte{0xff, 0xd8}, Text: "breakfast hoppers", CulturalContext: "sri_lankan"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hoppers", got[0].Name)
	assert.InDelta(t, 0.81, got[0].Confidence, 1e-9)
	assert.Equal(t, "small", got[0].PortionHint)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(" {\"a\":1} "))
}

// MockLabelDetector provides controllable Rekognition responses for testing.
type MockLabelDetector struct {
	output      *rekognition.DetectLabelsOutput
	shouldError bool
	lastInput   *rekognition.DetectLabelsInput
}

func (m *MockLabelDetector) DetectLabels(_ context.Context, params *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	m.lastInput = params
	if m.shouldError {
		return nil, errors.New("mock rekognition error")
	}
	return m.output, nil
}

func TestRekognitionBackend(t *testing.T) {
	mock := &MockLabelDetector{output: &rekognition.DetectLabelsOutput{
		Labels: []types.Label{
			{
				Name:       aws.String("Fried Rice"),
				Confidence: aws.Float32(87.5),
				Instances: []types.Instance{{BoundingBox: &types.BoundingBox{
					Left: aws.Float32(0.1), Top: aws.Float32(0.2), Width: aws.Float32(0.5), Height: aws.Float32(0.25),
				}}},
			},
			{Name: aws.String("Food"), Confidence: aws.Float32(99)},
			{Name: aws.String("")},
		},
	}}

	b := NewRekognitionBackendWithClient(mock, 20, 60, nil)
	got, err := b.Detect(context.Background(), Request{Image: []byte("img"), Width: 200, Height: 400})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "fried_rice", got[0].Name)
	assert.InDelta(t, 0.875, got[0].Confidence, 1e-6)
	require.NotNil(t, got[0].BBox)
	assert.InDelta(t, 20.0, got[0].BBox.X1, 1e-3)
	assert.InDelta(t, 80.0, got[0].BBox.Y1, 1e-3)
	assert.InDelta(t, 120.0, got[0].BBox.X2, 1e-3)
	assert.InDelta(t, 180.0, got[0].BBox.Y2, 1e-3)
	assert.Nil(t, got[1].BBox)

	assert.Equal(t, int32(20), aws.ToInt32(mock.lastInput.MaxLabels))
	assert.Equal(t, float32(60), aws.ToFloat32(mock.lastInput.MinConfidence))

	mock.shouldError = true
	_, err = b.Detect(context.Background(), Request{Image: []byte("img")})
	assert.Error(t, err)
}

func TestOCRBackend(t *testing.T) {
	reader := func(_ context.Context, _ []byte) ([]Word, error) {
		return []Word{
			{Text: "Today:", Box: image.Rect(0, 0, 40, 10)},
			{Text: "String", Box: image.Rect(0, 20, 40, 30)},
			{Text: "Hoppers", Box: image.Rect(45, 20, 90, 30)},
			{Text: "and", Box: image.Rect(0, 40, 20, 50)},
			{Text: "DAL.", Box: image.Rect(25, 40, 50, 50)},
			{Text: "ricecake", Box: image.Rect(0, 60, 50, 70)},
		}, nil
	}

	b := NewOCRBackendWithReader(reader, []string{"rice", "dal", "string_hoppers", "hoppers"}, nil)
	got, err := b.Detect(context.Background(), Request{Image: []byte("img")})
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, c := range got {
		names = append(names, c.Name)
		assert.Equal(t, OCRConfidence, c.Confidence)
	}
	assert.Equal(t, []string{"dal", "hoppers", "string_hoppers"}, names)
	require.NotNil(t, got[0].BBox)
	assert.Equal(t, 25.0, got[0].BBox.X1)
}

func TestOCRBackendReaderError(t *testing.T) {
	reader := func(context.Context, []byte) ([]Word, error) { return nil, errors.New("tesseract missing") }
	_, err := NewOCRBackendWithReader(reader, []string{"rice"}, nil).Detect(context.Background(), Request{})
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.DefaultConfig().Delegate

	b, err := New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	cfg.Backend = BackendHTTP
	cfg.Endpoint = "http://localhost:9/detect"
	b, err = New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendHTTP, b.Name())

	cfg.Backend = BackendOpenAI
	b, err = New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendOpenAI, b.Name())

	cfg.Backend = BackendOCR
	b, err = New(context.Background(), cfg, []string{"rice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendOCR, b.Name())

	cfg.Backend = "fax"
	_, err = New(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}
