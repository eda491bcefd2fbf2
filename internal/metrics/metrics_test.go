package metrics

import (
	"testing"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Publish(t *testing.T) {
	m := New()

	m.Publish(model.RatingEvent{Type: model.RatingSubmitted})
	m.Publish(model.RatingEvent{Type: model.RatingSubmitted})
	m.Publish(model.RatingEvent{Type: model.RatingDeleted})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ratingEvents.WithLabelValues("rating_submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ratingEvents.WithLabelValues("rating_deleted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ratingEvents.WithLabelValues("rating_updated")))
}

func TestMetrics_RecordReconciled(t *testing.T) {
	m := New()

	m.RecordReconciled(0)
	m.RecordReconciled(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.reconciled))
}
