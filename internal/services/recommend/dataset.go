package recommend

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/benvon/smart-docs/internal/models"
)

// Dataset column names
const (
	columnAge             = "age"
	columnGender          = "gender"
	columnOccupation      = "occupation"
	columnEducationLevel  = "education_level"
	columnDeviceType      = "device_type"
	columnDailyUsageHours = "daily_usage_hours"
	columnTemplate        = "template"
	columnCluster         = "cluster"
)

var requiredColumns = []string{
	columnAge, columnGender, columnOccupation, columnEducationLevel,
	columnDeviceType, columnDailyUsageHours, columnCluster,
}

// ErrDatasetEmpty is returned when a random recommendation is asked for
// without any dataset users
var ErrDatasetEmpty = errors.New("user dataset is not loaded or empty")

// DatasetUser is one clustered user with the templates they picked
type DatasetUser struct {
	Profile   models.UserProfile
	Cluster   int
	Templates []map[string]any
}

// Dataset is the clustered user table
type Dataset struct {
	Users []DatasetUser
	// Skipped counts rows whose features could not be read
	Skipped int

	byCluster map[int][]int
}

// LoadDataset reads a clustered user CSV
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return ParseDataset(f)
}

// ParseDataset reads clustered users from CSV with a header row. Column order
// is free; the template column is optional.
func ParseDataset(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewDataset(nil), nil
		}
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("dataset is missing column %q", col)
		}
	}

	var users []DatasetUser
	skipped := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}
		user, ok := parseUser(record, index)
		if !ok {
			skipped++
			continue
		}
		users = append(users, user)
	}

	ds := NewDataset(users)
	ds.Skipped = skipped
	return ds, nil
}

// NewDataset indexes users by cluster
func NewDataset(users []DatasetUser) *Dataset {
	ds := &Dataset{Users: users, byCluster: make(map[int][]int)}
	for i, u := range users {
		ds.byCluster[u.Cluster] = append(ds.byCluster[u.Cluster], i)
	}
	return ds
}

// Len returns the number of users
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Users)
}

// Cluster returns the users assigned to a cluster
func (d *Dataset) Cluster(cluster int) []DatasetUser {
	if d == nil {
		return nil
	}
	idx := d.byCluster[cluster]
	out := make([]DatasetUser, 0, len(idx))
	for _, i := range idx {
		out = append(out, d.Users[i])
	}
	return out
}

func parseUser(record []string, index map[string]int) (DatasetUser, bool) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	age, err := strconv.ParseFloat(field(columnAge), 64)
	if err != nil {
		return DatasetUser{}, false
	}
	hours, err := strconv.ParseFloat(field(columnDailyUsageHours), 64)
	if err != nil {
		return DatasetUser{}, false
	}
	cluster, err := strconv.ParseFloat(field(columnCluster), 64)
	if err != nil {
		return DatasetUser{}, false
	}

	return DatasetUser{
		Profile: models.UserProfile{
			Age:             int(age),
			Gender:          field(columnGender),
			Occupation:      field(columnOccupation),
			EducationLevel:  field(columnEducationLevel),
			DeviceType:      field(columnDeviceType),
			DailyUsageHours: hours,
		},
		Cluster:   int(cluster),
		Templates: ParseTemplates(field(columnTemplate)),
	}, true
}

// ParseTemplates reads the template cell of a dataset row. The cell holds a
// JSON object or array, sometimes with doubled single quotes in place of
// double quotes. Anything unreadable yields no templates, and only object
// entries are kept.
func ParseTemplates(cell string) []map[string]any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	var v any
	if err := json.Unmarshal([]byte(strings.ReplaceAll(cell, "''", `"`)), &v); err != nil {
		if err := json.Unmarshal([]byte(cell), &v); err != nil {
			return nil
		}
	}

	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		var out []map[string]any
		for _, item := range t {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	default:
		return nil
	}
}

// profileFeatures is the sampled user as reported back to the client
func profileFeatures(p models.UserProfile) map[string]any {
	return map[string]any{
		columnAge:             p.Age,
		columnGender:          p.Gender,
		columnOccupation:      p.Occupation,
		columnEducationLevel:  p.EducationLevel,
		columnDeviceType:      p.DeviceType,
		columnDailyUsageHours: p.DailyUsageHours,
	}
}
