package recommend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/models"
)

const testModel = `{
  "gamma": 0.5,
  "centroids": [
    {"numeric": [20, 6], "categorical": ["Female", "Student", "Bachelor", "Mobile"]},
    {"numeric": [45, 2], "categorical": ["Male", "Engineer", "Master", "Laptop"]},
    {"numeric": [70, 1], "categorical": ["Male", "Retired", "High School", "Tablet"]}
  ]
}`

const testDataset = `age,gender,occupation,education_level,device_type,daily_usage_hours,template,cluster
21,Female,Student,Bachelor,Mobile,5.5,"[{""name"":""Study Plan"",""type"":""todolist"",""items"":[{""task"":""Read chapter 1"",""done"":false}]},{""name"":""Reading Habits"",""type"":""habit"",""items"":[{""habit"":""Read 20 pages""}]}]",0
19,Female,Student,Bachelor,Mobile,7,"[{""name"":""study plan"",""type"":""todolist"",""items"":[]},{""name"":""Budget"",""type"":""table"",""columns"":[{""name"":""Item"",""type"":""text""},{""name"":""Cost"",""type"":""number""}],""values"":[[""Books"",""40""]]},{""name"":""Gym""}]",0
44,Male,Engineer,Master,Laptop,2.5,,1
not-a-number,Male,Engineer,Master,Laptop,2,"[]",1
`

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
}

func newTestRecommender(t *testing.T, opts ...Option) *Recommender {
	t.Helper()
	model, err := ParseModel([]byte(testModel))
	require.NoError(t, err)
	ds, err := ParseDataset(strings.NewReader(testDataset))
	require.NoError(t, err)
	return New(model, ds, document.New(document.WithClock(fixedClock)), nil, opts...)
}

func TestModel_Predict(t *testing.T) {
	t.Parallel()

	model, err := ParseModel([]byte(testModel))
	require.NoError(t, err)

	tests := []struct {
		name    string
		profile models.UserProfile
		want    int
	}{
		{
			name:    "student",
			profile: models.UserProfile{Age: 22, Gender: "Female", Occupation: "Student", EducationLevel: "Bachelor", DeviceType: "Mobile", DailyUsageHours: 5},
			want:    0,
		},
		{
			name:    "engineer with trailing spaces",
			profile: models.UserProfile{Age: 40, Gender: "Male ", Occupation: " Engineer", EducationLevel: "Master", DeviceType: "Laptop", DailyUsageHours: 3},
			want:    1,
		},
		{
			// numeric distance dominates categorical agreement
			name:    "older student",
			profile: models.UserProfile{Age: 68, Gender: "Female", Occupation: "Student", EducationLevel: "Bachelor", DeviceType: "Mobile", DailyUsageHours: 1},
			want:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, model.Predict(tt.profile))
		})
	}
}

func TestModel_GammaBreaksNumericTie(t *testing.T) {
	t.Parallel()

	model, err := ParseModel([]byte(`{"gamma": 1, "centroids": [
		{"numeric": [30, 4], "categorical": ["a", "b", "c", "d"]},
		{"numeric": [30, 4], "categorical": ["w", "x", "y", "z"]}
	]}`))
	require.NoError(t, err)

	p := models.UserProfile{Age: 30, Gender: "w", Occupation: "x", EducationLevel: "c", DeviceType: "z", DailyUsageHours: 4}
	assert.Equal(t, 1, model.Predict(p))

	p.Gender = "a"
	// two mismatches each way, the first centroid wins the tie
	assert.Equal(t, 0, model.Predict(p))
}

func TestParseModel_Invalid(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":       `{`,
		"no centroids":   `{"gamma": 1, "centroids": []}`,
		"negative gamma": `{"gamma": -1, "centroids": [{"numeric": [1, 2], "categorical": ["a","b","c","d"]}]}`,
		"short numeric":  `{"gamma": 1, "centroids": [{"numeric": [1], "categorical": ["a","b","c","d"]}]}`,
		"short category": `{"gamma": 1, "centroids": [{"numeric": [1, 2], "categorical": ["a"]}]}`,
	} {
		_, err := ParseModel([]byte(body))
		assert.Error(t, err, name)
	}
}

func TestParseDataset(t *testing.T) {
	t.Parallel()

	ds, err := ParseDataset(strings.NewReader(testDataset))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 1, ds.Skipped)

	students := ds.Cluster(0)
	require.Len(t, students, 2)
	assert.Equal(t, models.UserProfile{
		Age: 21, Gender: "Female", Occupation: "Student", EducationLevel: "Bachelor", DeviceType: "Mobile", DailyUsageHours: 5.5,
	}, students[0].Profile)
	assert.Len(t, students[0].Templates, 2)

	engineers := ds.Cluster(1)
	require.Len(t, engineers, 1)
	assert.Empty(t, engineers[0].Templates)
	assert.Empty(t, ds.Cluster(2))
}

func TestParseDataset_Header(t *testing.T) {
	t.Parallel()

	ds, err := ParseDataset(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())

	_, err = ParseDataset(strings.NewReader("age,gender\n30,Male\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")

	// reordered columns with a byte order mark
	ds, err = ParseDataset(strings.NewReader("\ufeffCluster,device_type,education_level,occupation,gender,daily_usage_hours,age\n2,Tablet,High School,Retired,Male,1.5,71.0\n"))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, 71, ds.Users[0].Profile.Age)
	assert.Equal(t, 2, ds.Users[0].Cluster)
}

func TestParseTemplates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cell string
		want []map[string]any
	}{
		{name: "empty", cell: "", want: nil},
		{name: "object", cell: `{"name":"A"}`, want: []map[string]any{{"name": "A"}}},
		{name: "array keeps objects only", cell: `[{"name":"A"}, "x", 3, {"name":"B"}]`, want: []map[string]any{{"name": "A"}, {"name": "B"}}},
		{name: "doubled single quotes", cell: `[{''name'':''A''}]`, want: []map[string]any{{"name": "A"}}},
		{name: "garbage", cell: `not json`, want: nil},
		{name: "scalar", cell: `42`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseTemplates(tt.cell))
		})
	}
}

func TestRecommender_ForUser(t *testing.T) {
	t.Parallel()
	r := newTestRecommender(t)

	profile := models.UserProfile{Age: 20, Gender: "Female", Occupation: "Student", EducationLevel: "Bachelor", DeviceType: "Mobile", DailyUsageHours: 6}
	rec, err := r.ForUser(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationModeInputUser, rec.Mode)
	assert.Equal(t, 0, rec.Cluster)
	assert.Equal(t, &profile, rec.User)
	assert.Empty(t, rec.Reason)

	// "study plan" repeats "Study Plan", so the third pick is the budget table
	require.Len(t, rec.Recommendations, MaxRecommendations)
	assert.Equal(t, "Study Plan", rec.Recommendations[0].Name)
	assert.Equal(t, []models.TodoItem{{Task: "Read chapter 1"}}, rec.Recommendations[0].Todos)
	assert.Equal(t, []models.HabitItem{{Habit: "Read 20 pages"}}, rec.Recommendations[1].Habits)
	assert.Equal(t, []models.Row{{"Books", float64(40)}}, rec.Recommendations[2].Values)
}

func TestRecommender_EmptyReasons(t *testing.T) {
	t.Parallel()
	r := newTestRecommender(t)

	engineer := models.UserProfile{Age: 45, Gender: "Male", Occupation: "Engineer", EducationLevel: "Master", DeviceType: "Laptop", DailyUsageHours: 2}
	rec, err := r.ForUser(context.Background(), engineer)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Cluster)
	assert.Equal(t, ReasonNoTemplates, rec.Reason)
	assert.Empty(t, rec.Recommendations)

	retired := models.UserProfile{Age: 72, Gender: "Male", Occupation: "Retired", EducationLevel: "High School", DeviceType: "Tablet", DailyUsageHours: 1}
	rec, err = r.ForUser(context.Background(), retired)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Cluster)
	assert.Equal(t, ReasonNoUsers, rec.Reason)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"recommendations":[]`)
}

func TestRecommender_Random(t *testing.T) {
	t.Parallel()
	r := newTestRecommender(t, WithPicker(func(n int) int { return 1 }))

	rec, err := r.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationModeRandom, rec.Mode)
	assert.Equal(t, 0, rec.Cluster)
	assert.Nil(t, rec.User)
	assert.Equal(t, map[string]any{
		"age": 19, "gender": "Female", "occupation": "Student", "education_level": "Bachelor",
		"device_type": "Mobile", "daily_usage_hours": float64(7),
	}, rec.UserUsed)
	assert.Len(t, rec.Recommendations, MaxRecommendations)
}

func TestRecommender_NotLoaded(t *testing.T) {
	t.Parallel()

	r := New(nil, nil, nil, nil)
	assert.ErrorIs(t, r.Ready(), ErrModelNotLoaded)
	_, err := r.Random(context.Background())
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	_, err = r.ForUser(context.Background(), models.UserProfile{})
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	model, err := ParseModel([]byte(testModel))
	require.NoError(t, err)
	r = New(model, nil, nil, nil)
	assert.NoError(t, r.Ready())
	_, err = r.Random(context.Background())
	assert.ErrorIs(t, err, ErrDatasetEmpty)
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// missing files leave the recommender unloaded
	r, err := Load(filepath.Join(dir, "model.json"), filepath.Join(dir, "users.csv"), nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Ready(), ErrModelNotLoaded)

	modelPath := filepath.Join(dir, "kproto_model.json")
	dataPath := filepath.Join(dir, "clustered.csv")
	require.NoError(t, os.WriteFile(modelPath, []byte(testModel), 0o600))
	require.NoError(t, os.WriteFile(dataPath, []byte(testDataset), 0o600))

	r, err = Load(modelPath, dataPath, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, r.Ready())
	assert.Equal(t, 3, r.dataset.Len())

	require.NoError(t, os.WriteFile(modelPath, []byte(`{"centroids": []}`), 0o600))
	_, err = Load(modelPath, dataPath, nil, nil)
	assert.Error(t, err)
}
