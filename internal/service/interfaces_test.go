package service

import (
	"testing"
	"time"

	"github.com/carbonclap/carbonclap/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRecordFilter_Matches(t *testing.T) {
	jun := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	may := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)

	record := &model.OperationalRecord{ID: "r1", Category: "energy", Amount: 10, Date: jun}

	tests := []struct {
		filter RecordFilter
		name   string
		want   bool
	}{
		{name: "empty filter matches", filter: RecordFilter{}, want: true},
		{name: "matching category", filter: RecordFilter{Category: "energy"}, want: true},
		{name: "other category", filter: RecordFilter{Category: "facilities"}, want: false},
		{name: "inside date range", filter: RecordFilter{StartDate: &may, EndDate: &jul}, want: true},
		{name: "before start", filter: RecordFilter{StartDate: &jul}, want: false},
		{name: "after end", filter: RecordFilter{EndDate: &may}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(record))
		})
	}
}
