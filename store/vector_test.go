package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMetricOperator(t *testing.T) {
	assert.Equal(t, "<=>", DistanceCosine.Operator())
	assert.Equal(t, "<->", DistanceL2.Operator())
	assert.Equal(t, "<#>", DistanceDot.Operator())
}

func TestDistanceMetricSimilarity(t *testing.T) {
	cosine := DistanceCosine.Similarity(0.2)
	require.NotNil(t, cosine)
	assert.InDelta(t, 0.8, *cosine, 1e-9)

	dot := DistanceDot.Similarity(-0.9)
	require.NotNil(t, dot)
	assert.InDelta(t, 0.9, *dot, 1e-9)

	// L2 has no bounded similarity; distance is reported as-is.
	assert.Nil(t, DistanceL2.Similarity(0.5))
}

func TestVectorSearchOptionsValidate(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	floor := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		opts    *VectorSearchOptions
		wantErr error
	}{
		{"valid defaults", &VectorSearchOptions{Vector: vec}, nil},
		{"empty vector", &VectorSearchOptions{}, ErrValidation},
		{"unknown metric", &VectorSearchOptions{Vector: vec, Metric: "hamming"}, ErrValidation},
		{"k negative", &VectorSearchOptions{Vector: vec, Limit: -1}, ErrInvalidRange},
		{"k too large", &VectorSearchOptions{Vector: vec, Limit: 1001}, ErrInvalidRange},
		{"k upper bound ok", &VectorSearchOptions{Vector: vec, Limit: 1000}, nil},
		{"minSimilarity below range", &VectorSearchOptions{Vector: vec, MinSimilarity: floor(-0.1)}, ErrInvalidRange},
		{"minSimilarity above range", &VectorSearchOptions{Vector: vec, MinSimilarity: floor(1.1)}, ErrInvalidRange},
		{"minSimilarity bounds ok", &VectorSearchOptions{Vector: vec, MinSimilarity: floor(1.0)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVectorSearchOptionsValidateDefaults(t *testing.T) {
	opts := &VectorSearchOptions{Vector: []float32{0.1}}

	require.NoError(t, opts.Validate())

	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, DistanceCosine, opts.Metric)
}

func TestUpsertVectorValidate(t *testing.T) {
	valid := func() *UpsertVector {
		return &UpsertVector{
			ProfileID:   "a4c135e8-3f6a-4f0e-9c2b-9a2f6f1f0001",
			ContentType: "api::article.article",
			ContentID:   "doc-1",
			FieldName:   "title",
			Embedding:   []float32{0.1, 0.2},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*UpsertVector)
	}{
		{"missing profile", func(u *UpsertVector) { u.ProfileID = "" }},
		{"missing content type", func(u *UpsertVector) { u.ContentType = "" }},
		{"missing content id", func(u *UpsertVector) { u.ContentID = "" }},
		{"missing field name", func(u *UpsertVector) { u.FieldName = "" }},
		{"empty embedding", func(u *UpsertVector) { u.Embedding = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upsert := valid()
			tt.mutate(upsert)
			assert.ErrorIs(t, upsert.Validate(), ErrValidation)
		})
	}
}
